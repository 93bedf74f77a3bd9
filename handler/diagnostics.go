package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/portfolio"
)

// GetPortfolioDiagnostics reports the freshness of every input feeding one
// portfolio's snapshot: latest signal, allocation, price and NAV dates plus
// the snapshot row state.
func GetPortfolioDiagnostics(c *fiber.Ctx) error {
	key, err := portfolio.ParseKey(c.Params("key"))
	if err != nil {
		log.Warn().Err(err).Str("Key", c.Params("key")).Msg("diagnostics requested for invalid portfolio key")
		return fiber.ErrBadRequest
	}

	diag, err := snapshots.Diagnose(c.Context(), key)
	if err != nil {
		log.Error().Stack().Err(err).Str("PortfolioKey", key.String()).Msg("could not diagnose portfolio")
		return fiber.ErrInternalServerError
	}
	return c.JSON(diag)
}

type snapshotStatus struct {
	Scope         string `json:"scope"`
	PortfolioKey  string `json:"portfolioKey"`
	RecomputeFrom string `json:"recomputeFrom,omitempty"`
}

// Diagnostics reports the snapshots awaiting recomputation. Empty output
// means every dashboard is fresh.
func Diagnostics(c *fiber.Ctx) error {
	dirty, err := snapshots.Snapshots.ListDirty(c.Context())
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not list dirty snapshots")
		return fiber.ErrInternalServerError
	}

	database.LogOpenTransactions()

	statuses := make([]snapshotStatus, len(dirty))
	for idx, snap := range dirty {
		status := snapshotStatus{
			Scope:        string(snap.Scope),
			PortfolioKey: snap.PortfolioKey,
		}
		if !snap.RecomputeFrom.IsZero() {
			status.RecomputeFrom = snap.RecomputeFrom.String()
		}
		statuses[idx] = status
	}
	return c.JSON(fiber.Map{"numDirty": len(statuses), "dirty": statuses})
}

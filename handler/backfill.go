package handler

import (
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/portfolio"
	"github.com/signalclub/roi-api/snapshot"
)

type backfillRequest struct {
	Days   int  `json:"days"`
	Strict bool `json:"strict"`
}

// Backfill forces a recomputation of one portfolio snapshot, bypassing the
// clean check. An optional days bound limits the rebuild to the trailing
// window; the default rebuilds from inception. With strict set a data gap
// fails the job instead of producing flat days. Admin surface for after
// manual data repairs.
func Backfill(c *fiber.Ctx) error {
	key, err := portfolio.ParseKey(c.Params("key"))
	if err != nil {
		log.Warn().Err(err).Str("Key", c.Params("key")).Msg("backfill requested for invalid portfolio key")
		return fiber.ErrBadRequest
	}

	var req backfillRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "body must be JSON with an optional days field")
		}
		if req.Days < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "days must not be negative")
		}
	}

	from := date.Date{} // zero means rebuild from inception
	if req.Days > 0 {
		from = date.Today().Add(-req.Days)
	}
	if err := snapshots.Snapshots.MarkDirty(c.Context(), snapshot.ScopePortfolio, key.String(), from); err != nil {
		log.Error().Stack().Err(err).Str("PortfolioKey", key.String()).Msg("could not mark snapshot dirty")
		return fiber.ErrInternalServerError
	}

	if err := snapshots.Refresh(c.Context(), key, snapshot.RefreshOptions{Force: true, Strict: req.Strict}); err != nil {
		log.Error().Stack().Err(err).Str("PortfolioKey", key.String()).Msg("backfill failed")
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if err := snapshots.RefreshGlobal(c.Context(), true); err != nil {
		log.Error().Stack().Err(err).Msg("global refresh after backfill failed")
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"status": "success", "portfolioKey": key.String(), "days": req.Days})
}

// Sweep recomputes every dirty snapshot now instead of waiting for the
// nightly schedule.
func Sweep(c *fiber.Ctx) error {
	if err := snapshots.Sweep(c.Context()); err != nil {
		log.Error().Stack().Err(err).Msg("sweep failed")
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	force, _ := strconv.ParseBool(c.Query("refreshGlobal", "false"))
	if force {
		if err := snapshots.RefreshGlobal(c.Context(), true); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(fiber.Map{"status": "success"})
}

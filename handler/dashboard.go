package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/portfolio"
	"github.com/signalclub/roi-api/snapshot"
)

// sendView writes a snapshot payload with its freshness headers. The
// checksum doubles as a strong ETag so unchanged dashboards answer 304.
func sendView(c *fiber.Ctx, view *snapshot.DashboardView) error {
	etag := `"` + view.Checksum + `"`
	c.Set(fiber.HeaderETag, etag)
	c.Set("X-As-Of-Date", view.AsOfDate.String())
	if view.Stale {
		c.Set("X-Snapshot-Stale", "true")
	}

	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(view.Payload)
}

func forceRefreshRequested(c *fiber.Ctx) bool {
	force, _ := strconv.ParseBool(c.Query("forceRefresh", "false"))
	return force
}

// GetDashboard serves the aggregate dashboard payload.
func GetDashboard(c *fiber.Ctx) error {
	if forceRefreshRequested(c) {
		if err := snapshots.RefreshGlobal(c.Context(), true); err != nil {
			log.Error().Stack().Err(err).Msg("forced global refresh failed")
			return fiber.ErrInternalServerError
		}
	}

	view, err := snapshots.Dashboard(c.Context(), snapshot.ScopeGlobal, data.GlobalKey)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return fiber.ErrNotFound
		}
		log.Error().Stack().Err(err).Msg("could not load global dashboard")
		return fiber.ErrInternalServerError
	}
	return sendView(c, view)
}

// GetPortfolioDashboard serves one portfolio's dashboard payload.
func GetPortfolioDashboard(c *fiber.Ctx) error {
	key, err := portfolio.ParseKey(c.Params("key"))
	if err != nil {
		log.Warn().Err(err).Str("Key", c.Params("key")).Msg("dashboard requested for invalid portfolio key")
		return fiber.ErrBadRequest
	}

	if forceRefreshRequested(c) {
		if err := snapshots.Refresh(c.Context(), key, snapshot.RefreshOptions{Force: true}); err != nil {
			log.Error().Stack().Err(err).Str("PortfolioKey", key.String()).Msg("forced refresh failed")
			return fiber.ErrInternalServerError
		}
	}

	view, err := snapshots.Dashboard(c.Context(), snapshot.ScopePortfolio, key.String())
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return fiber.ErrNotFound
		}
		log.Error().Stack().Err(err).Str("PortfolioKey", key.String()).Msg("could not load portfolio dashboard")
		return fiber.ErrInternalServerError
	}
	return sendView(c, view)
}

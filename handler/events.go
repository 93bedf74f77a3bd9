package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/portfolio"
)

// Event ingestion endpoints. These record what changed and return quickly;
// recomputation happens in the sweep.

type signalEvent struct {
	Tier        string    `json:"tier"`
	Category    string    `json:"category"`
	RiskProfile string    `json:"riskProfile"`
	Signal      string    `json:"signal"`
	PublishedAt time.Time `json:"publishedAt"`
}

// PostSignal ingests a newly published signal: derives its allocation
// snapshot and marks the affected portfolio for recomputation.
func PostSignal(c *fiber.Ctx) error {
	var event signalEvent
	if err := json.Unmarshal(c.Body(), &event); err != nil {
		log.Warn().Err(err).Msg("could not parse signal event body")
		return fiber.ErrBadRequest
	}
	if event.PublishedAt.IsZero() {
		event.PublishedAt = time.Now().UTC()
	}

	sig := &data.Signal{
		Tier:        event.Tier,
		Category:    event.Category,
		RiskProfile: event.RiskProfile,
		Signal:      event.Signal,
		PublishedAt: event.PublishedAt,
	}
	if err := snapshots.OnSignalPublished(c.Context(), sig); err != nil {
		switch {
		case errors.Is(err, portfolio.ErrInvalidTier),
			errors.Is(err, portfolio.ErrInvalidRiskProfile),
			errors.Is(err, portfolio.ErrCategoryRequired),
			errors.Is(err, portfolio.ErrCategoryForbidden),
			errors.Is(err, portfolio.ErrMissingAsset),
			errors.Is(err, portfolio.ErrNoPrimaryAsset):
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return fiber.ErrInternalServerError
	}
	return c.SendStatus(fiber.StatusAccepted)
}

type priceEvent struct {
	Symbols  []string `json:"symbols"`
	Earliest string   `json:"earliest"`
}

// PostPrices records that a price batch landed for the given symbols,
// dirtying every portfolio that holds them.
func PostPrices(c *fiber.Ctx) error {
	var event priceEvent
	if err := json.Unmarshal(c.Body(), &event); err != nil {
		log.Warn().Err(err).Msg("could not parse price event body")
		return fiber.ErrBadRequest
	}
	if len(event.Symbols) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "symbols is required")
	}

	earliest, err := date.Parse(event.Earliest)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "earliest must be YYYY-MM-DD")
	}

	if err := snapshots.OnPricesIngested(c.Context(), event.Symbols, earliest); err != nil {
		return fiber.ErrInternalServerError
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// PostSettingsChanged invalidates the aggregate payload after an admin edits
// annotations or dashboard settings.
func PostSettingsChanged(c *fiber.Ctx) error {
	if err := snapshots.OnSettingsChanged(c.Context()); err != nil {
		return fiber.ErrInternalServerError
	}
	return c.SendStatus(fiber.StatusAccepted)
}

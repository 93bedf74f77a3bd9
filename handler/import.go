package handler

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/benchmark"
	"github.com/signalclub/roi-api/data"
)

// ImportBenchmark accepts a date,value CSV upload for a benchmark series.
// Validation failures come back as a per-line error list and nothing is
// written.
func ImportBenchmark(c *fiber.Ctx) error {
	seriesType := data.SeriesType(strings.ToUpper(c.Params("ticker")))
	replaceExisting, err := strconv.ParseBool(c.Query("replaceExisting", "false"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "replaceExisting must be a boolean")
	}

	result, err := importer.Import(c.Context(), seriesType, bytes.NewReader(c.Body()), replaceExisting)
	if err != nil {
		if errors.Is(err, benchmark.ErrUnknownSeries) {
			return fiber.ErrNotFound
		}
		var parseErr *benchmark.ParseError
		if errors.As(err, &parseErr) {
			details := make([]fiber.Map, len(parseErr.Rows))
			for idx, row := range parseErr.Rows {
				details[idx] = fiber.Map{"line": row.Line, "message": row.Message}
			}
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"status": "error",
				"errors": details,
			})
		}
		log.Error().Stack().Err(err).Str("SeriesType", string(seriesType)).Msg("benchmark import failed")
		return fiber.ErrInternalServerError
	}

	return c.JSON(result)
}

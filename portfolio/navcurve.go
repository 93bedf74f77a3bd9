// Copyright 2022-2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package portfolio

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/dec"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// inceptionNAV is the baseline a portfolio starts from when no prior NAV
// point exists.
var inceptionNAV = dec.Hundred

// CurveRequest describes one equity-curve build.
type CurveRequest struct {
	Key Key

	// ForceStart overrides the watermark for administrative backfills
	// (includeClean). Zero means "respect the watermark".
	ForceStart date.Date
	// ForceEnd caps the range; zero means "today" (UTC).
	ForceEnd date.Date

	// Watermark is the snapshot's recompute-from date; zero when the
	// whole history is wanted.
	Watermark date.Date
	// Inception is the earliest date the portfolio exists.
	Inception date.Date

	// Strict turns gap days from flat days into a named failure.
	Strict bool

	// Now is the clock used to resolve "today"; zero means wall clock.
	Now time.Time
}

// CurveResult reports what a build computed, including the days it had to
// skip, for diagnostics.
type CurveResult struct {
	Key    Key
	Start  date.Date
	End    date.Date
	Points []data.SeriesPoint
	Gaps   []DayGap
}

// CurveBuilder produces and extends the MODEL_NAV series for a portfolio.
type CurveBuilder struct {
	Resolver *Resolver
	Series   *data.SeriesStore
}

func NewCurveBuilder(resolver *Resolver, series *data.SeriesStore) *CurveBuilder {
	return &CurveBuilder{Resolver: resolver, Series: series}
}

// startDate picks the later of force-start, watermark and inception. An
// explicit force-start takes the range back regardless of the watermark.
func (req *CurveRequest) startDate() (date.Date, error) {
	if !req.ForceStart.IsZero() {
		return date.Max(req.ForceStart, req.Inception), nil
	}
	start := date.Max(req.Watermark, req.Inception)
	if start.IsZero() {
		return date.Date{}, ErrNoStartDate
	}
	return start, nil
}

func (req *CurveRequest) endDate() date.Date {
	if !req.ForceEnd.IsZero() {
		return req.ForceEnd
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	return date.FromTime(now)
}

// Build walks [start, end] day by day, compounding weighted daily returns
// into NAV points, and upserts the result. Re-running the same range with
// the same inputs writes the same rows: the upsert key makes the whole
// operation idempotent.
func (b *CurveBuilder) Build(ctx context.Context, req *CurveRequest) (*CurveResult, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "curve.Build")
	defer span.End()

	subLog := log.With().Str("PortfolioKey", req.Key.String()).Logger()

	start, err := req.startDate()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no start date")
		subLog.Error().Stack().Err(err).Msg("cannot determine curve start date")
		return nil, err
	}
	end := req.endDate()

	result := &CurveResult{Key: req.Key, Start: start, End: end}
	if end.Before(start) {
		// nothing to compute; an empty result is not an error
		subLog.Debug().Str("Start", start.String()).Str("End", end.String()).Msg("empty curve range")
		return result, nil
	}

	if err := b.Resolver.Prime(ctx, req.Key, start, end); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not prime resolver")
		return nil, err
	}

	// Seed NAV at start-1 from the last persisted point, or the inception
	// baseline when the curve has never been computed.
	nav := inceptionNAV
	seed, err := b.Series.LastBefore(ctx, data.SeriesModelNav, req.Key.String(), start)
	switch {
	case err == nil:
		nav = seed.Value
	case errors.Is(err, data.ErrNotFound):
		// inception baseline
	default:
		subLog.Error().Stack().Err(err).Msg("could not read NAV seed")
		return nil, err
	}

	days := start.DaysUntil(end) + 1
	result.Points = make([]data.SeriesPoint, 0, days)

	for d := start; !d.After(end); d = d.Add(1) {
		_, priced, gap, err := b.Resolver.ResolveDay(d)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "day resolution failed")
			subLog.Error().Stack().Err(err).Str("Date", d.String()).Msg("hard data error while building curve")
			return nil, err
		}

		if gap != nil {
			result.Gaps = append(result.Gaps, *gap)
			if req.Strict {
				subLog.Warn().Object("Gap", gap).Msg("aborting curve build on gap (strict)")
				return result, ErrStrictGap
			}
			// flat day: weighted return is zero, NAV carries forward
			result.Points = append(result.Points, data.SeriesPoint{Date: d, Value: nav})
			continue
		}

		weightedReturn := dec.Zero
		for _, asset := range priced {
			assetReturn := dec.Sub(dec.SafeDiv(asset.Close, asset.Prior), dec.One)
			weightedReturn = dec.Add(weightedReturn, dec.Mul(asset.Weight, assetReturn))
		}

		nav = dec.Mul(nav, dec.Add(dec.One, weightedReturn))
		result.Points = append(result.Points, data.SeriesPoint{Date: d, Value: nav})
	}

	if err := b.Series.Upsert(ctx, data.SeriesModelNav, req.Key.String(), result.Points); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not upsert NAV points")
		return nil, err
	}

	subLog.Info().Int("NumPoints", len(result.Points)).Int("NumGaps", len(result.Gaps)).
		Str("Start", start.String()).Str("End", end.String()).Msg("curve built")
	return result, nil
}

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

package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/dec"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// SeriesStore persists performance time series. Writes are upserts keyed by
// (series_type, portfolio_key, event_date); recomputation of the same range
// converges instead of duplicating, which is what makes overlapping jobs
// safe.
type SeriesStore struct{}

func NewSeriesStore() *SeriesStore {
	return &SeriesStore{}
}

// Upsert writes a batch of points for one series.
func (s *SeriesStore) Upsert(ctx context.Context, seriesType SeriesType, portfolioKey string, points []SeriesPoint) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "series.Upsert")
	defer span.End()

	subLog := log.With().Str("SeriesType", string(seriesType)).Str("PortfolioKey", portfolioKey).Int("NumPoints", len(points)).Logger()

	if len(points) == 0 {
		return nil
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return err
	}

	for _, point := range points {
		_, err = trx.Exec(ctx,
			`INSERT INTO performance_series (series_type, portfolio_key, event_date, value)
			VALUES ($1, $2, $3, $4::numeric)
			ON CONFLICT (series_type, portfolio_key, event_date)
			DO UPDATE SET value = EXCLUDED.value`,
			string(seriesType), portfolioKey, point.Date.Time(), point.Value.String())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "db upsert failed")
			subLog.Error().Stack().Err(err).Str("Date", point.Date.String()).Msg("could not upsert series point")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return err
	}
	return nil
}

// Range returns series points in [begin, end], ascending. Zero begin/end
// widen the range to everything stored.
func (s *SeriesStore) Range(ctx context.Context, seriesType SeriesType, portfolioKey string, begin, end date.Date) ([]SeriesPoint, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "series.Range")
	defer span.End()

	subLog := log.With().Str("SeriesType", string(seriesType)).Str("PortfolioKey", portfolioKey).Logger()

	if begin.IsZero() {
		begin = date.New(1970, 1, 1)
	}
	if end.IsZero() {
		end = date.New(9999, 12, 31)
	}
	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}

	rows, err := trx.Query(ctx,
		`SELECT event_date, value::text FROM performance_series
		WHERE series_type=$1 AND portfolio_key=$2 AND event_date BETWEEN $3 AND $4
		ORDER BY event_date`,
		string(seriesType), portfolioKey, begin.Time(), end.Time())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		subLog.Error().Stack().Err(err).Msg("could not query series")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	points := make([]SeriesPoint, 0, 365)
	for rows.Next() {
		var eventDate time.Time
		var rawValue string
		if err := rows.Scan(&eventDate, &rawValue); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan series point")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		value, err := dec.FromString(rawValue)
		if err != nil {
			subLog.Error().Stack().Str("Raw", rawValue).Msg("could not parse stored series value")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, ErrBadValue
		}
		points = append(points, SeriesPoint{Date: date.FromTime(eventDate), Value: value})
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return points, nil
}

// LastBefore returns the most recent point strictly before the given date,
// or ErrNotFound. The curve builder seeds its NAV from this.
func (s *SeriesStore) LastBefore(ctx context.Context, seriesType SeriesType, portfolioKey string, d date.Date) (SeriesPoint, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "series.LastBefore")
	defer span.End()

	subLog := log.With().Str("SeriesType", string(seriesType)).Str("PortfolioKey", portfolioKey).Str("Date", d.String()).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return SeriesPoint{}, err
	}

	row := trx.QueryRow(ctx,
		`SELECT event_date, value::text FROM performance_series
		WHERE series_type=$1 AND portfolio_key=$2 AND event_date < $3
		ORDER BY event_date DESC LIMIT 1`,
		string(seriesType), portfolioKey, d.Time())

	var eventDate time.Time
	var rawValue string
	if err := row.Scan(&eventDate, &rawValue); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		if err == pgx.ErrNoRows || err == sql.ErrNoRows {
			return SeriesPoint{}, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		subLog.Error().Stack().Err(err).Msg("could not query last series point")
		return SeriesPoint{}, err
	}

	value, err := dec.FromString(rawValue)
	if err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return SeriesPoint{}, ErrBadValue
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return SeriesPoint{Date: date.FromTime(eventDate), Value: value}, nil
}

// Delete removes an entire series, used by benchmark imports with
// replaceExisting set.
func (s *SeriesStore) Delete(ctx context.Context, seriesType SeriesType, portfolioKey string) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "series.Delete")
	defer span.End()

	subLog := log.With().Str("SeriesType", string(seriesType)).Str("PortfolioKey", portfolioKey).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return err
	}

	_, err = trx.Exec(ctx,
		`DELETE FROM performance_series WHERE series_type=$1 AND portfolio_key=$2`,
		string(seriesType), portfolioKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db delete failed")
		subLog.Error().Stack().Err(err).Msg("could not delete series")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return err
	}
	return nil
}

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
	"fmt"
	"strings"
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

// PriceStore reads the daily close prices landed by the external price feed.
// Values come back as text and are parsed into decimals; floats never enter
// the pipeline here.
type PriceStore struct{}

func NewPriceStore() *PriceStore {
	return &PriceStore{}
}

// ClosePrices loads close prices for a set of canonical symbols over
// [begin, end], keyed symbol -> date string -> value.
func (p *PriceStore) ClosePrices(ctx context.Context, symbols []string, begin, end date.Date) (map[string]map[string]dec.Number, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "prices.ClosePrices")
	defer span.End()

	subLog := log.With().Strs("Symbols", symbols).Str("Begin", begin.String()).Str("End", end.String()).Logger()

	if end.Before(begin) {
		subLog.Warn().Stack().Msg("end before begin in call to ClosePrices")
		return nil, ErrInvalidTimeRange
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}

	// build SQL query
	args := make([]interface{}, len(symbols)+2)
	args[0] = begin.Time()
	args[1] = end.Time()

	symbolSet := make([]string, len(symbols))
	for idx, symbol := range symbols {
		symbolSet[idx] = fmt.Sprintf("$%d", idx+3)
		args[idx+2] = symbol
	}
	sqlQuery := fmt.Sprintf(
		"SELECT symbol, event_date, close::text FROM eod_prices WHERE event_date BETWEEN $1 AND $2 AND symbol IN (%s) ORDER BY event_date",
		strings.Join(symbolSet, ", "))

	rows, err := trx.Query(ctx, sqlQuery, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		subLog.Error().Stack().Err(err).Str("SQL", sqlQuery).Msg("could not query close prices")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	vals := make(map[string]map[string]dec.Number, len(symbols))
	for rows.Next() {
		var symbol, rawValue string
		var eventDate time.Time
		if err := rows.Scan(&symbol, &eventDate, &rawValue); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan close price")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		value, err := dec.FromString(rawValue)
		if err != nil {
			subLog.Error().Stack().Str("Raw", rawValue).Msg("could not parse stored close price")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, ErrBadValue
		}
		if _, ok := vals[symbol]; !ok {
			vals[symbol] = make(map[string]dec.Number)
		}
		vals[symbol][date.FromTime(eventDate).String()] = value
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return vals, nil
}

// CloseOnOrBefore returns the latest close for a symbol at or before the
// given date. Used to seed day-over-day returns at a range boundary.
func (p *PriceStore) CloseOnOrBefore(ctx context.Context, symbol string, d date.Date) (dec.Number, date.Date, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "prices.CloseOnOrBefore")
	defer span.End()

	subLog := log.With().Str("Symbol", symbol).Str("Date", d.String()).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return dec.Zero, date.Date{}, err
	}

	row := trx.QueryRow(ctx,
		`SELECT event_date, close::text FROM eod_prices
		WHERE symbol=$1 AND event_date <= $2
		ORDER BY event_date DESC LIMIT 1`, symbol, d.Time())

	var eventDate time.Time
	var rawValue string
	if err := row.Scan(&eventDate, &rawValue); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		if err == pgx.ErrNoRows || err == sql.ErrNoRows {
			return dec.Zero, date.Date{}, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		subLog.Error().Stack().Err(err).Msg("could not query close price")
		return dec.Zero, date.Date{}, err
	}

	value, err := dec.FromString(rawValue)
	if err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return dec.Zero, date.Date{}, ErrBadValue
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return value, date.FromTime(eventDate), nil
}

// LatestDate returns the most recent price date for any of the symbols, for
// the diagnostics view.
func (p *PriceStore) LatestDate(ctx context.Context, symbols []string) (date.Date, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "prices.LatestDate")
	defer span.End()

	if len(symbols) == 0 {
		return date.Date{}, ErrNotFound
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not get database transaction")
		return date.Date{}, err
	}

	args := make([]interface{}, len(symbols))
	symbolSet := make([]string, len(symbols))
	for idx, symbol := range symbols {
		symbolSet[idx] = fmt.Sprintf("$%d", idx+1)
		args[idx] = symbol
	}
	sqlQuery := fmt.Sprintf("SELECT MAX(event_date) FROM eod_prices WHERE symbol IN (%s)", strings.Join(symbolSet, ", "))

	var latest *time.Time
	if err := trx.QueryRow(ctx, sqlQuery, args...).Scan(&latest); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		log.Error().Stack().Err(err).Msg("could not query latest price date")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return date.Date{}, err
	}

	if err := trx.Commit(ctx); err != nil {
		log.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	if latest == nil {
		return date.Date{}, ErrNotFound
	}
	return date.FromTime(*latest), nil
}

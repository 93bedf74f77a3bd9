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

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/dec"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// AllocationStore persists derived allocation snapshots. Snapshots are
// immutable after creation; a signal change writes a new snapshot that
// supersedes the old one by date.
type AllocationStore struct{}

func NewAllocationStore() *AllocationStore {
	return &AllocationStore{}
}

// allocation items are stored as JSONB with decimal weights as strings so
// no float representation ever touches the weights
type allocationItemRow struct {
	Symbol string `json:"symbol"`
	Weight string `json:"weight"`
}

func encodeItems(items []AllocationItem) ([]byte, error) {
	rows := make([]allocationItemRow, len(items))
	for idx, item := range items {
		rows[idx] = allocationItemRow{Symbol: item.Symbol, Weight: item.Weight.String()}
	}
	return json.Marshal(rows)
}

func decodeItems(raw []byte) ([]AllocationItem, error) {
	var rows []allocationItemRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	items := make([]AllocationItem, len(rows))
	for idx, row := range rows {
		weight, err := dec.FromString(row.Weight)
		if err != nil {
			return nil, ErrBadValue
		}
		items[idx] = AllocationItem{Symbol: row.Symbol, Weight: weight}
	}
	return items, nil
}

// Save inserts a snapshot. A snapshot that already exists for the same
// (key, date) is left untouched: immutability over last-write.
func (s *AllocationStore) Save(ctx context.Context, snap *AllocationSnapshot) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "allocations.Save")
	defer span.End()

	subLog := log.With().Str("PortfolioKey", snap.PortfolioKey).Str("AsOfDate", snap.AsOfDate.String()).Logger()

	raw, err := encodeItems(snap.Items)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not serialize allocation items")
		return err
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return err
	}

	_, err = trx.Exec(ctx,
		`INSERT INTO allocation_snapshots (portfolio_key, as_of_date, items)
		VALUES ($1, $2, $3)
		ON CONFLICT (portfolio_key, as_of_date) DO NOTHING`,
		snap.PortfolioKey, snap.AsOfDate.Time(), raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db insert failed")
		subLog.Error().Stack().Err(err).Msg("could not save allocation snapshot")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
		return err
	}
	return nil
}

// OnOrBefore returns the allocation in effect on the given date: the most
// recent snapshot with as_of_date <= date, or ErrNotFound.
func (s *AllocationStore) OnOrBefore(ctx context.Context, portfolioKey string, d date.Date) (*AllocationSnapshot, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "allocations.OnOrBefore")
	defer span.End()

	subLog := log.With().Str("PortfolioKey", portfolioKey).Str("Date", d.String()).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}

	row := trx.QueryRow(ctx,
		`SELECT as_of_date, items FROM allocation_snapshots
		WHERE portfolio_key=$1 AND as_of_date <= $2
		ORDER BY as_of_date DESC LIMIT 1`, portfolioKey, d.Time())

	var asOf time.Time
	var raw []byte
	if err := row.Scan(&asOf, &raw); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		if err == pgx.ErrNoRows || err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		subLog.Error().Stack().Err(err).Msg("could not query allocation snapshot")
		return nil, err
	}

	items, err := decodeItems(raw)
	if err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		subLog.Error().Stack().Err(err).Msg("could not decode allocation items")
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	return &AllocationSnapshot{
		PortfolioKey: portfolioKey,
		AsOfDate:     date.FromTime(asOf),
		Items:        items,
	}, nil
}

// InRange returns every snapshot for a key with as_of_date <= end, ascending.
// The curve builder primes its in-memory resolver from this.
func (s *AllocationStore) InRange(ctx context.Context, portfolioKey string, end date.Date) ([]*AllocationSnapshot, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "allocations.InRange")
	defer span.End()

	subLog := log.With().Str("PortfolioKey", portfolioKey).Str("End", end.String()).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}

	rows, err := trx.Query(ctx,
		`SELECT as_of_date, items FROM allocation_snapshots
		WHERE portfolio_key=$1 AND as_of_date <= $2
		ORDER BY as_of_date`, portfolioKey, end.Time())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		subLog.Error().Stack().Err(err).Msg("could not query allocation snapshots")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	snaps := make([]*AllocationSnapshot, 0, 8)
	for rows.Next() {
		var asOf time.Time
		var raw []byte
		if err := rows.Scan(&asOf, &raw); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan allocation snapshot")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		items, err := decodeItems(raw)
		if err != nil {
			subLog.Error().Stack().Err(err).Msg("could not decode allocation items")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		snaps = append(snaps, &AllocationSnapshot{
			PortfolioKey: portfolioKey,
			AsOfDate:     date.FromTime(asOf),
			Items:        items,
		})
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return snaps, nil
}

// Latest returns the current snapshot for every portfolio key, used to
// decide which portfolios a price batch affects.
func (s *AllocationStore) Latest(ctx context.Context) ([]*AllocationSnapshot, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "allocations.Latest")
	defer span.End()

	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}

	rows, err := trx.Query(ctx,
		`SELECT DISTINCT ON (portfolio_key) portfolio_key, as_of_date, items
		FROM allocation_snapshots
		ORDER BY portfolio_key, as_of_date DESC`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		log.Error().Stack().Err(err).Msg("could not query latest allocations")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	snaps := make([]*AllocationSnapshot, 0, 16)
	for rows.Next() {
		var key string
		var asOf time.Time
		var raw []byte
		if err := rows.Scan(&key, &asOf, &raw); err != nil {
			log.Error().Stack().Err(err).Msg("could not scan latest allocation")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		items, err := decodeItems(raw)
		if err != nil {
			log.Error().Stack().Err(err).Msg("could not decode allocation items")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		snaps = append(snaps, &AllocationSnapshot{
			PortfolioKey: key,
			AsOfDate:     date.FromTime(asOf),
			Items:        items,
		})
	}

	if err := trx.Commit(ctx); err != nil {
		log.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return snaps, nil
}

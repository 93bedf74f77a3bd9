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

package snapshot

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Scope separates per-portfolio snapshots from the aggregate dashboard
// snapshot.
type Scope string

const (
	ScopePortfolio Scope = "portfolio"
	ScopeGlobal    Scope = "global"
)

// Snapshot is one cached dashboard artifact plus its recompute bookkeeping.
// A NULL recompute-from date on a dirty row means "from inception".
type Snapshot struct {
	Scope          Scope
	PortfolioKey   string
	Payload        []byte
	Checksum       string
	NeedsRecompute bool
	RecomputeFrom  date.Date
	AsOfDate       date.Date
	LastComputedAt time.Time
	LastError      string
}

// Store persists snapshot rows. All mutation paths are single-statement
// upserts so concurrent triggers and sweeps converge without locking.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Get returns the snapshot row for (scope, key), or data.ErrNotFound.
func (s *Store) Get(ctx context.Context, scope Scope, portfolioKey string) (*Snapshot, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.Get")
	defer span.End()

	subLog := log.With().Str("Scope", string(scope)).Str("PortfolioKey", portfolioKey).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}

	row := trx.QueryRow(ctx,
		`SELECT payload, checksum, needs_recompute, recompute_from_date, as_of_date, last_computed_at, last_error
		FROM roi_snapshots WHERE scope=$1 AND portfolio_key=$2`,
		string(scope), portfolioKey)

	snap := &Snapshot{Scope: scope, PortfolioKey: portfolioKey}
	var payload []byte
	var checksum, lastError *string
	var recomputeFrom, asOf, computedAt *time.Time
	if err := row.Scan(&payload, &checksum, &snap.NeedsRecompute, &recomputeFrom, &asOf, &computedAt, &lastError); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		if err == pgx.ErrNoRows || err == sql.ErrNoRows {
			return nil, data.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		subLog.Error().Stack().Err(err).Msg("could not query snapshot")
		return nil, err
	}

	snap.Payload = payload
	if checksum != nil {
		snap.Checksum = *checksum
	}
	if lastError != nil {
		snap.LastError = *lastError
	}
	if recomputeFrom != nil {
		snap.RecomputeFrom = date.FromTime(*recomputeFrom)
	}
	if asOf != nil {
		snap.AsOfDate = date.FromTime(*asOf)
	}
	if computedAt != nil {
		snap.LastComputedAt = *computedAt
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return snap, nil
}

// MarkDirty flags a snapshot for recomputation from the given date. Dirtying
// may only widen the pending range: an existing earlier watermark (or an
// existing whole-history mark) is never raised. A zero date means recompute
// from inception.
func (s *Store) MarkDirty(ctx context.Context, scope Scope, portfolioKey string, from date.Date) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.MarkDirty")
	defer span.End()

	subLog := log.With().Str("Scope", string(scope)).Str("PortfolioKey", portfolioKey).Str("From", from.String()).Logger()

	var fromArg interface{}
	if !from.IsZero() {
		fromArg = from.Time()
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return err
	}

	_, err = trx.Exec(ctx,
		`INSERT INTO roi_snapshots (scope, portfolio_key, needs_recompute, recompute_from_date)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (scope, portfolio_key) DO UPDATE SET
			needs_recompute = TRUE,
			recompute_from_date = CASE
				WHEN EXCLUDED.recompute_from_date IS NULL THEN NULL
				WHEN NOT roi_snapshots.needs_recompute THEN EXCLUDED.recompute_from_date
				WHEN roi_snapshots.recompute_from_date IS NULL THEN NULL
				ELSE LEAST(roi_snapshots.recompute_from_date, EXCLUDED.recompute_from_date)
			END`,
		string(scope), portfolioKey, fromArg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db upsert failed")
		subLog.Error().Stack().Err(err).Msg("could not mark snapshot dirty")
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

// ListDirty returns every snapshot awaiting recomputation.
func (s *Store) ListDirty(ctx context.Context) ([]*Snapshot, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.ListDirty")
	defer span.End()

	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}

	rows, err := trx.Query(ctx,
		`SELECT scope, portfolio_key, recompute_from_date FROM roi_snapshots
		WHERE needs_recompute ORDER BY scope DESC, portfolio_key`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		log.Error().Stack().Err(err).Msg("could not query dirty snapshots")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	dirty := make([]*Snapshot, 0, 16)
	for rows.Next() {
		snap := &Snapshot{NeedsRecompute: true}
		var scope string
		var recomputeFrom *time.Time
		if err := rows.Scan(&scope, &snap.PortfolioKey, &recomputeFrom); err != nil {
			log.Error().Stack().Err(err).Msg("could not scan dirty snapshot")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		snap.Scope = Scope(scope)
		if recomputeFrom != nil {
			snap.RecomputeFrom = date.FromTime(*recomputeFrom)
		}
		dirty = append(dirty, snap)
	}

	if err := trx.Commit(ctx); err != nil {
		log.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return dirty, nil
}

// SaveResult stores a computed payload and clears the dirty flag, but only
// when no newer dirty mark arrived while the computation ran: if the row's
// watermark no longer matches the one the computation observed, the row
// stays dirty for the next sweep.
func (s *Store) SaveResult(ctx context.Context, snap *Snapshot, observedFrom date.Date) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.SaveResult")
	defer span.End()

	subLog := log.With().Str("Scope", string(snap.Scope)).Str("PortfolioKey", snap.PortfolioKey).Logger()

	var observedArg interface{}
	if !observedFrom.IsZero() {
		observedArg = observedFrom.Time()
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return err
	}

	_, err = trx.Exec(ctx,
		`INSERT INTO roi_snapshots
			(scope, portfolio_key, payload, checksum, needs_recompute, recompute_from_date, as_of_date, last_computed_at, last_error)
		VALUES ($1, $2, $3, $4, FALSE, NULL, $5, $6, NULL)
		ON CONFLICT (scope, portfolio_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			checksum = EXCLUDED.checksum,
			as_of_date = EXCLUDED.as_of_date,
			last_computed_at = EXCLUDED.last_computed_at,
			last_error = NULL,
			needs_recompute = (roi_snapshots.recompute_from_date IS DISTINCT FROM $7),
			recompute_from_date = CASE
				WHEN roi_snapshots.recompute_from_date IS DISTINCT FROM $7 THEN roi_snapshots.recompute_from_date
				ELSE NULL
			END`,
		string(snap.Scope), snap.PortfolioKey, snap.Payload, snap.Checksum,
		snap.AsOfDate.Time(), time.Now().UTC(), observedArg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db upsert failed")
		subLog.Error().Stack().Err(err).Msg("could not save snapshot result")
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

// SaveError records a failed computation. The row stays dirty and keeps its
// last good payload; readers get staleness, not an outage.
func (s *Store) SaveError(ctx context.Context, scope Scope, portfolioKey string, computeErr error) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.SaveError")
	defer span.End()

	subLog := log.With().Str("Scope", string(scope)).Str("PortfolioKey", portfolioKey).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return err
	}

	_, err = trx.Exec(ctx,
		`INSERT INTO roi_snapshots (scope, portfolio_key, needs_recompute, last_error)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (scope, portfolio_key) DO UPDATE SET
			needs_recompute = TRUE,
			last_error = EXCLUDED.last_error`,
		string(scope), portfolioKey, computeErr.Error())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db upsert failed")
		subLog.Error().Stack().Err(err).Msg("could not record snapshot error")
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

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

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// SignalStore reads the signal publication feed. Signals are written by the
// editorial workflow; this engine only ever reads them.
type SignalStore struct{}

func NewSignalStore() *SignalStore {
	return &SignalStore{}
}

// LatestSignal returns the most recently published signal for a
// (tier, category) pair, or ErrNotFound.
func (s *SignalStore) LatestSignal(ctx context.Context, tier, category string) (*Signal, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "signals.LatestSignal")
	defer span.End()

	subLog := log.With().Str("Tier", tier).Str("Category", category).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}

	row := trx.QueryRow(ctx,
		`SELECT tier, COALESCE(category, ''), risk_profile, signal, published_at
		FROM portfolio_signals
		WHERE tier=$1 AND COALESCE(category, '')=$2
		ORDER BY published_at DESC LIMIT 1`, tier, category)

	sig := &Signal{}
	err = row.Scan(&sig.Tier, &sig.Category, &sig.RiskProfile, &sig.Signal, &sig.PublishedAt)
	if err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		if err == pgx.ErrNoRows || err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		subLog.Error().Stack().Err(err).Msg("could not query latest signal")
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return sig, nil
}

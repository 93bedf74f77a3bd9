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

package database

import (
	"context"

	"github.com/rs/zerolog/log"
)

// The unique constraints below are correctness invariants, not performance
// indexes: idempotent recomputation rests on the performance_series primary
// key, and last-writer-wins snapshot behavior rests on roi_snapshots'.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS portfolio_signals (
		id BIGSERIAL PRIMARY KEY,
		tier TEXT NOT NULL,
		category TEXT,
		risk_profile TEXT NOT NULL,
		signal TEXT NOT NULL,
		published_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS portfolio_signals_effect_idx
		ON portfolio_signals (tier, category, published_at DESC)`,
	`CREATE TABLE IF NOT EXISTS allocation_snapshots (
		portfolio_key TEXT NOT NULL,
		as_of_date DATE NOT NULL,
		items JSONB NOT NULL,
		PRIMARY KEY (portfolio_key, as_of_date)
	)`,
	`CREATE TABLE IF NOT EXISTS eod_prices (
		symbol TEXT NOT NULL,
		event_date DATE NOT NULL,
		close NUMERIC NOT NULL,
		PRIMARY KEY (symbol, event_date)
	)`,
	`CREATE TABLE IF NOT EXISTS performance_series (
		series_type TEXT NOT NULL,
		portfolio_key TEXT NOT NULL,
		event_date DATE NOT NULL,
		value NUMERIC NOT NULL,
		PRIMARY KEY (series_type, portfolio_key, event_date)
	)`,
	`CREATE TABLE IF NOT EXISTS roi_snapshots (
		scope TEXT NOT NULL,
		portfolio_key TEXT NOT NULL,
		payload JSONB,
		checksum TEXT,
		needs_recompute BOOLEAN NOT NULL DEFAULT TRUE,
		recompute_from_date DATE,
		as_of_date DATE,
		last_computed_at TIMESTAMPTZ,
		last_error TEXT,
		PRIMARY KEY (scope, portfolio_key)
	)`,
	`CREATE TABLE IF NOT EXISTS change_log_events (
		id BIGSERIAL PRIMARY KEY,
		event_date DATE NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS dashboard_settings (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// EnsureSchema applies idempotent DDL for every table the engine owns.
func EnsureSchema(ctx context.Context) error {
	trx, err := Trx(ctx)
	if err != nil {
		return err
	}

	for _, stmt := range schemaStatements {
		if _, err := trx.Exec(ctx, stmt); err != nil {
			log.Error().Stack().Err(err).Str("Query", stmt).Msg("could not apply schema statement")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit schema changes")
		return err
	}
	return nil
}

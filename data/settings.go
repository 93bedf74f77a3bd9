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
	"time"

	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// SettingsStore reads admin-curated chart annotations and dashboard
// settings. Mutations arrive through the admin surface (an external
// collaborator); the engine reads them into the snapshot payload.
type SettingsStore struct{}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{}
}

// ChangeLogEvents returns annotations in chronological order.
func (s *SettingsStore) ChangeLogEvents(ctx context.Context) ([]ChangeLogEvent, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "settings.ChangeLogEvents")
	defer span.End()

	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}

	rows, err := trx.Query(ctx,
		`SELECT id, event_date, title, body FROM change_log_events ORDER BY event_date, id`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		log.Error().Stack().Err(err).Msg("could not query change log events")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	events := make([]ChangeLogEvent, 0, 16)
	for rows.Next() {
		var event ChangeLogEvent
		var eventDate time.Time
		if err := rows.Scan(&event.ID, &eventDate, &event.Title, &event.Body); err != nil {
			log.Error().Stack().Err(err).Msg("could not scan change log event")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		event.EventDate = date.FromTime(eventDate)
		events = append(events, event)
	}

	if err := trx.Commit(ctx); err != nil {
		log.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return events, nil
}

// Settings returns the dashboard settings map (inception date, benchmark
// toggles, disclaimer text).
func (s *SettingsStore) Settings(ctx context.Context) (map[string]string, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "settings.Settings")
	defer span.End()

	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}

	rows, err := trx.Query(ctx, `SELECT name, value FROM dashboard_settings`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		log.Error().Stack().Err(err).Msg("could not query dashboard settings")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	settings := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			log.Error().Stack().Err(err).Msg("could not scan dashboard setting")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		settings[name] = value
	}

	if err := trx.Commit(ctx); err != nil {
		log.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return settings, nil
}

// InceptionDate reads the configured portfolio inception date, defaulting to
// the earliest signal when unset. ErrNotFound means no setting and no
// signals at all.
func (s *SettingsStore) InceptionDate(ctx context.Context) (date.Date, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return date.Date{}, err
	}
	if raw, ok := settings["inception_date"]; ok {
		return date.Parse(raw)
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not get database transaction")
		return date.Date{}, err
	}

	var earliest *time.Time
	if err := trx.QueryRow(ctx, `SELECT MIN(published_at) FROM portfolio_signals`).Scan(&earliest); err != nil {
		log.Error().Stack().Err(err).Msg("could not query earliest signal date")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return date.Date{}, err
	}
	if err := trx.Commit(ctx); err != nil {
		log.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	if earliest == nil {
		return date.Date{}, ErrNotFound
	}
	return date.FromTime(*earliest), nil
}

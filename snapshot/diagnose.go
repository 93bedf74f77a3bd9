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
	"errors"
	"time"

	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"github.com/signalclub/roi-api/portfolio"
	"go.opentelemetry.io/otel"
)

// Diagnostics answers "why does this dashboard look the way it does": the
// freshness of every input feeding one portfolio's snapshot, plus the
// snapshot row's own state.
type Diagnostics struct {
	PortfolioKey     string     `json:"portfolioKey"`
	SignalPublished  *time.Time `json:"signalPublished,omitempty"`
	AllocationAsOf   string     `json:"allocationAsOf,omitempty"`
	Holdings         []string   `json:"holdings,omitempty"`
	LatestPriceDate  string     `json:"latestPriceDate,omitempty"`
	LatestNavDate    string     `json:"latestNavDate,omitempty"`
	SnapshotAsOf     string     `json:"snapshotAsOf,omitempty"`
	NeedsRecompute   bool       `json:"needsRecompute"`
	RecomputeFrom    string     `json:"recomputeFrom,omitempty"`
	LastComputedAt   *time.Time `json:"lastComputedAt,omitempty"`
	LastError        string     `json:"lastError,omitempty"`
	SnapshotChecksum string     `json:"snapshotChecksum,omitempty"`
}

// Diagnose collects the latest signal, allocation, price and NAV dates for
// one portfolio. Missing inputs are reported as absent fields rather than
// errors so the view stays useful for a half-provisioned portfolio.
func (svc *Service) Diagnose(ctx context.Context, key portfolio.Key) (*Diagnostics, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.Diagnose")
	defer span.End()

	diag := &Diagnostics{PortfolioKey: key.String()}

	sig, err := svc.Signals.LatestSignal(ctx, key.Tier, key.Category)
	switch {
	case err == nil:
		published := sig.PublishedAt
		diag.SignalPublished = &published
	case errors.Is(err, data.ErrNotFound):
	default:
		return nil, err
	}

	alloc, err := svc.Alloc.OnOrBefore(ctx, key.String(), date.Today())
	switch {
	case err == nil:
		diag.AllocationAsOf = alloc.AsOfDate.String()
		symbols := make([]string, len(alloc.Items))
		for idx, item := range alloc.Items {
			symbols[idx] = item.Symbol
		}
		diag.Holdings = symbols

		priceDate, err := svc.Prices.LatestDate(ctx, symbols)
		switch {
		case err == nil:
			diag.LatestPriceDate = priceDate.String()
		case errors.Is(err, data.ErrNotFound):
		default:
			return nil, err
		}
	case errors.Is(err, data.ErrNotFound):
	default:
		return nil, err
	}

	nav, err := svc.Series.LastBefore(ctx, data.SeriesModelNav, key.String(), date.Today().Add(1))
	switch {
	case err == nil:
		diag.LatestNavDate = nav.Date.String()
	case errors.Is(err, data.ErrNotFound):
	default:
		return nil, err
	}

	row, err := svc.Snapshots.Get(ctx, ScopePortfolio, key.String())
	switch {
	case err == nil:
		diag.NeedsRecompute = row.NeedsRecompute
		diag.SnapshotChecksum = row.Checksum
		if !row.AsOfDate.IsZero() {
			diag.SnapshotAsOf = row.AsOfDate.String()
		}
		if !row.RecomputeFrom.IsZero() {
			diag.RecomputeFrom = row.RecomputeFrom.String()
		}
		if !row.LastComputedAt.IsZero() {
			computedAt := row.LastComputedAt
			diag.LastComputedAt = &computedAt
		}
		if row.LastError != "" {
			diag.LastError = row.LastError
		}
	case errors.Is(err, data.ErrNotFound):
	default:
		return nil, err
	}

	return diag, nil
}

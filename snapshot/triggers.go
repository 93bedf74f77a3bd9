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

	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/common"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"github.com/signalclub/roi-api/portfolio"
	"go.opentelemetry.io/otel"
)

// Triggers invalidate, they never compute. Each handler records what changed
// and from when, drops the affected cache entries, and leaves the heavy
// lifting to the sweeper.

// OnSignalPublished derives the allocation snapshot a new signal implies and
// dirties the affected portfolio from the publication date.
func (svc *Service) OnSignalPublished(ctx context.Context, sig *data.Signal) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.OnSignalPublished")
	defer span.End()

	subLog := log.With().Str("Tier", sig.Tier).Str("Category", sig.Category).Str("RiskProfile", sig.RiskProfile).Logger()

	key, err := portfolio.NewKey(sig.Tier, sig.Category, sig.RiskProfile)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("published signal has invalid portfolio key")
		return err
	}

	assets, err := portfolio.ParseSignalAssets(sig.Signal)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not extract assets from signal text")
		return err
	}

	items, err := portfolio.DeriveAllocations(key.Risk, assets)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not derive allocations from signal")
		return err
	}

	asOf := date.FromTime(sig.PublishedAt)
	snap := &data.AllocationSnapshot{
		PortfolioKey: key.String(),
		AsOfDate:     asOf,
		Items:        items,
	}
	if err := svc.Alloc.Save(ctx, snap); err != nil {
		return err
	}

	if err := svc.Snapshots.MarkDirty(ctx, ScopePortfolio, key.String(), asOf); err != nil {
		return err
	}
	if err := svc.Snapshots.MarkDirty(ctx, ScopeGlobal, data.GlobalKey, asOf); err != nil {
		return err
	}

	common.CacheDelete(cacheKey(ScopePortfolio, key.String()))
	common.CacheDelete(cacheKey(ScopeGlobal, data.GlobalKey))

	subLog.Info().Str("PortfolioKey", key.String()).Str("AsOfDate", asOf.String()).Int("NumAssets", len(items)).Msg("signal processed")
	return nil
}

// OnPricesIngested dirties every portfolio currently holding one of the
// updated symbols, from the earliest updated date. Late price corrections
// lower the watermark and the affected history is recompounded.
func (svc *Service) OnPricesIngested(ctx context.Context, symbols []string, earliest date.Date) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.OnPricesIngested")
	defer span.End()

	subLog := log.With().Strs("Symbols", symbols).Str("Earliest", earliest.String()).Logger()

	updated := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		updated[svc.Tickers.Canonical(symbol)] = true
	}

	latest, err := svc.Alloc.Latest(ctx)
	if err != nil {
		return err
	}

	dirtied := 0
	for _, snap := range latest {
		affected := false
		for _, item := range snap.Items {
			if updated[svc.Tickers.Canonical(item.Symbol)] {
				affected = true
				break
			}
		}
		if !affected {
			continue
		}
		if err := svc.Snapshots.MarkDirty(ctx, ScopePortfolio, snap.PortfolioKey, earliest); err != nil {
			return err
		}
		common.CacheDelete(cacheKey(ScopePortfolio, snap.PortfolioKey))
		dirtied++
	}

	if dirtied > 0 {
		if err := svc.Snapshots.MarkDirty(ctx, ScopeGlobal, data.GlobalKey, earliest); err != nil {
			return err
		}
		common.CacheDelete(cacheKey(ScopeGlobal, data.GlobalKey))
	}

	subLog.Info().Int("NumDirtied", dirtied).Msg("price batch processed")
	return nil
}

// OnSettingsChanged dirties only the global snapshot: annotations and
// settings live in its payload but never alter any curve, so the watermark
// stays at today.
func (svc *Service) OnSettingsChanged(ctx context.Context) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.OnSettingsChanged")
	defer span.End()

	if err := svc.Snapshots.MarkDirty(ctx, ScopeGlobal, data.GlobalKey, date.Today()); err != nil {
		return err
	}
	common.CacheDelete(cacheKey(ScopeGlobal, data.GlobalKey))
	return nil
}

// MarkDirtyAsync records an invalidation without holding up the caller.
// Errors are logged; the nightly sweep recomputes everything regardless.
func (svc *Service) MarkDirtyAsync(scope Scope, portfolioKey string, from date.Date) {
	go func() {
		if err := svc.Snapshots.MarkDirty(context.Background(), scope, portfolioKey, from); err != nil {
			log.Error().Stack().Err(err).Str("Scope", string(scope)).Str("PortfolioKey", portfolioKey).Msg("async dirty mark failed")
		}
	}()
}

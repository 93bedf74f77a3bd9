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

	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/common"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"github.com/signalclub/roi-api/portfolio"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Service drives the snapshot lifecycle: triggers dirty rows, the sweeper
// recomputes them, readers get the last good payload with an honest
// staleness flag in between.
type Service struct {
	Signals   *data.SignalStore
	Alloc     *data.AllocationStore
	Prices    *data.PriceStore
	Series    *data.SeriesStore
	Settings  *data.SettingsStore
	Tickers   *data.TickerTable
	Snapshots *Store
}

func NewService(tickers *data.TickerTable) *Service {
	return &Service{
		Signals:   data.NewSignalStore(),
		Alloc:     data.NewAllocationStore(),
		Prices:    data.NewPriceStore(),
		Series:    data.NewSeriesStore(),
		Settings:  data.NewSettingsStore(),
		Tickers:   tickers,
		Snapshots: NewStore(),
	}
}

// DashboardView is what the read path hands the HTTP layer: the stored
// payload plus honesty about its freshness.
type DashboardView struct {
	Payload  []byte
	Checksum string
	AsOfDate date.Date
	Stale    bool
}

func cacheKey(scope Scope, portfolioKey string) string {
	return "snapshot:" + string(scope) + ":" + portfolioKey
}

// RefreshOptions controls one snapshot recomputation.
type RefreshOptions struct {
	// Force recomputes even when the row is clean; with no watermark the
	// whole curve is rebuilt from inception.
	Force bool
	// Strict aborts on data gaps instead of carrying the NAV flat.
	Strict bool
}

// Refresh recomputes one portfolio snapshot. Clean rows are returned as-is
// unless Force is set.
func (svc *Service) Refresh(ctx context.Context, key portfolio.Key, opts RefreshOptions) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.Refresh")
	defer span.End()

	subLog := log.With().Str("PortfolioKey", key.String()).Bool("Force", opts.Force).Logger()

	observedFrom := date.Date{}
	row, err := svc.Snapshots.Get(ctx, ScopePortfolio, key.String())
	switch {
	case err == nil:
		if !row.NeedsRecompute && !opts.Force {
			subLog.Debug().Msg("snapshot clean; skipping refresh")
			return nil
		}
		observedFrom = row.RecomputeFrom
	case errors.Is(err, data.ErrNotFound):
		// first computation for this key
	default:
		return err
	}

	if err := svc.computePortfolio(ctx, key, observedFrom, opts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot computation failed")
		subLog.Error().Stack().Err(err).Msg("snapshot computation failed")
		if saveErr := svc.Snapshots.SaveError(ctx, ScopePortfolio, key.String(), err); saveErr != nil {
			subLog.Error().Stack().Err(saveErr).Msg("could not record snapshot error")
		}
		return err
	}
	return nil
}

func (svc *Service) computePortfolio(ctx context.Context, key portfolio.Key, watermark date.Date, opts RefreshOptions) error {
	subLog := log.With().Str("PortfolioKey", key.String()).Logger()

	inception, err := svc.Settings.InceptionDate(ctx)
	if err != nil && !errors.Is(err, data.ErrNotFound) {
		return err
	}

	req := &portfolio.CurveRequest{
		Key:       key,
		Watermark: watermark,
		Inception: inception,
		Strict:    opts.Strict,
	}
	if opts.Force && watermark.IsZero() {
		req.ForceStart = inception
	}

	resolver := portfolio.NewResolver(svc.Alloc, svc.Prices, svc.Tickers)
	builder := portfolio.NewCurveBuilder(resolver, svc.Series)
	curve, err := builder.Build(ctx, req)
	if err != nil {
		return err
	}

	// metrics always run over the full persisted series, not just the
	// recomputed suffix
	nav, err := svc.Series.Range(ctx, data.SeriesModelNav, key.String(), date.Date{}, date.Date{})
	if err != nil {
		return err
	}
	if len(nav) == 0 {
		return portfolio.ErrEmptySeries
	}

	metrics, err := portfolio.ComputeMetrics(nav)
	if err != nil {
		return err
	}
	drawdowns, _, err := portfolio.Drawdowns(nav)
	if err != nil {
		return err
	}
	monthly, err := portfolio.MonthlyReturns(nav)
	if err != nil {
		return err
	}

	benchmarks, err := svc.benchmarkPayloads(ctx, nav[0].Date, nav[len(nav)-1].Date)
	if err != nil {
		return err
	}

	payload := &PortfolioPayload{
		PortfolioKey: key.String(),
		AsOfDate:     nav[len(nav)-1].Date.String(),
		GeneratedAt:  time.Now().UTC(),
		Nav:          pointsPayload(nav),
		Drawdowns:    drawdownsPayload(drawdowns),
		Benchmarks:   benchmarks,
		Monthly:      monthlyPayload(monthly),
		Metrics:      metricsPayload(metrics, nav),
		Gaps:         curve.Gaps,
	}

	raw, checksum, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	snap := &Snapshot{
		Scope:        ScopePortfolio,
		PortfolioKey: key.String(),
		Payload:      raw,
		Checksum:     checksum,
		AsOfDate:     nav[len(nav)-1].Date,
	}
	if err := svc.Snapshots.SaveResult(ctx, snap, watermark); err != nil {
		return err
	}

	if err := common.CacheSet(cacheKey(ScopePortfolio, key.String()), raw); err != nil {
		subLog.Warn().Err(err).Msg("could not populate snapshot cache")
	}
	subLog.Info().Object("Curve", curve).Object("Metrics", metrics).Msg("portfolio snapshot refreshed")
	return nil
}

func (svc *Service) benchmarkPayloads(ctx context.Context, begin, end date.Date) (map[string][]PointPayload, error) {
	benchmarks := make(map[string][]PointPayload, len(data.BenchmarkTypes))
	for _, seriesType := range data.BenchmarkTypes {
		points, err := svc.Series.Range(ctx, seriesType, data.GlobalKey, begin, end)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			continue
		}
		benchmarks[string(seriesType)] = pointsPayload(points)
	}
	return benchmarks, nil
}

// RefreshGlobal rebuilds the aggregate dashboard payload from the latest
// per-portfolio series plus the shared overlays.
func (svc *Service) RefreshGlobal(ctx context.Context, force bool) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.RefreshGlobal")
	defer span.End()

	observedFrom := date.Date{}
	row, err := svc.Snapshots.Get(ctx, ScopeGlobal, data.GlobalKey)
	switch {
	case err == nil:
		if !row.NeedsRecompute && !force {
			return nil
		}
		observedFrom = row.RecomputeFrom
	case errors.Is(err, data.ErrNotFound):
	default:
		return err
	}

	if err := svc.computeGlobal(ctx, observedFrom); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "global snapshot computation failed")
		log.Error().Stack().Err(err).Msg("global snapshot computation failed")
		if saveErr := svc.Snapshots.SaveError(ctx, ScopeGlobal, data.GlobalKey, err); saveErr != nil {
			log.Error().Stack().Err(saveErr).Msg("could not record global snapshot error")
		}
		return err
	}
	return nil
}

func (svc *Service) computeGlobal(ctx context.Context, watermark date.Date) error {
	latest, err := svc.Alloc.Latest(ctx)
	if err != nil {
		return err
	}

	asOf := date.Date{}
	summaries := make([]PortfolioSummary, 0, len(latest))
	for _, snap := range latest {
		nav, err := svc.Series.Range(ctx, data.SeriesModelNav, snap.PortfolioKey, date.Date{}, date.Date{})
		if err != nil {
			return err
		}
		if len(nav) == 0 {
			continue
		}
		metrics, err := portfolio.ComputeMetrics(nav)
		if err != nil {
			return err
		}
		last := nav[len(nav)-1].Date
		asOf = date.Max(asOf, last)
		summaries = append(summaries, PortfolioSummary{
			PortfolioKey: snap.PortfolioKey,
			AsOfDate:     last.String(),
			Metrics:      metricsPayload(metrics, nav),
			Nav:          pointsPayload(nav),
		})
	}

	benchmarks, err := svc.benchmarkPayloads(ctx, date.Date{}, date.Date{})
	if err != nil {
		return err
	}
	changeLog, err := svc.Settings.ChangeLogEvents(ctx)
	if err != nil {
		return err
	}
	settings, err := svc.Settings.Settings(ctx)
	if err != nil {
		return err
	}

	payload := &GlobalPayload{
		AsOfDate:    asOf.String(),
		GeneratedAt: time.Now().UTC(),
		Portfolios:  summaries,
		Benchmarks:  benchmarks,
		ChangeLog:   changeLog,
		Settings:    settings,
	}

	raw, checksum, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	snap := &Snapshot{
		Scope:        ScopeGlobal,
		PortfolioKey: data.GlobalKey,
		Payload:      raw,
		Checksum:     checksum,
		AsOfDate:     asOf,
	}
	if err := svc.Snapshots.SaveResult(ctx, snap, watermark); err != nil {
		return err
	}

	if err := common.CacheSet(cacheKey(ScopeGlobal, data.GlobalKey), raw); err != nil {
		log.Warn().Err(err).Msg("could not populate global snapshot cache")
	}
	log.Info().Int("NumPortfolios", len(summaries)).Msg("global snapshot refreshed")
	return nil
}

// Sweep recomputes every dirty snapshot, portfolio rows first so the global
// aggregate sees their fresh series.
func (svc *Service) Sweep(ctx context.Context) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.Sweep")
	defer span.End()

	dirty, err := svc.Snapshots.ListDirty(ctx)
	if err != nil {
		return err
	}
	if len(dirty) == 0 {
		log.Debug().Msg("no dirty snapshots")
		return nil
	}

	var firstErr error
	globalDirty := false
	for _, snap := range dirty {
		if snap.Scope == ScopeGlobal {
			globalDirty = true
			continue
		}
		key, err := portfolio.ParseKey(snap.PortfolioKey)
		if err != nil {
			log.Error().Stack().Err(err).Str("PortfolioKey", snap.PortfolioKey).Msg("dirty snapshot has unparseable key")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := svc.Refresh(ctx, key, RefreshOptions{}); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if globalDirty {
		if err := svc.RefreshGlobal(ctx, false); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	log.Info().Int("NumDirty", len(dirty)).Msg("snapshot sweep complete")
	return firstErr
}

// Dashboard serves the last computed payload for a scope. Cache first, then
// the snapshot row; a dirty row is served with Stale set rather than
// blocking the reader on a recompute.
func (svc *Service) Dashboard(ctx context.Context, scope Scope, portfolioKey string) (*DashboardView, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.Dashboard")
	defer span.End()

	row, err := svc.Snapshots.Get(ctx, scope, portfolioKey)
	if err != nil {
		return nil, err
	}
	if len(row.Payload) == 0 {
		// dirtied before ever being computed
		return nil, data.ErrNotFound
	}

	view := &DashboardView{
		Checksum: row.Checksum,
		AsOfDate: row.AsOfDate,
		Stale:    row.NeedsRecompute,
	}

	if cached, err := common.CacheGet(cacheKey(scope, portfolioKey)); err == nil {
		view.Payload = cached
		return view, nil
	}

	view.Payload = row.Payload
	if err := common.CacheSet(cacheKey(scope, portfolioKey), row.Payload); err != nil {
		log.Warn().Err(err).Msg("could not populate snapshot cache on read")
	}
	return view, nil
}

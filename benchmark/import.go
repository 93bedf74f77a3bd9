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

package benchmark

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"github.com/signalclub/roi-api/snapshot"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Importer lands validated benchmark series and invalidates every dashboard
// payload that overlays them.
type Importer struct {
	Series    *data.SeriesStore
	Snapshots *snapshot.Service
}

func NewImporter(snapshots *snapshot.Service) *Importer {
	return &Importer{Series: data.NewSeriesStore(), Snapshots: snapshots}
}

// ImportResult summarizes one successful import.
type ImportResult struct {
	SeriesType data.SeriesType `json:"seriesType"`
	NumPoints  int             `json:"numPoints"`
	Begin      date.Date       `json:"begin"`
	End        date.Date       `json:"end"`
	Replaced   bool            `json:"replaced"`
}

// Import validates and lands one CSV upload. With replaceExisting the stored
// series is dropped first; otherwise new points merge over old ones by date.
// Benchmarks never enter NAV compounding, so only payloads are invalidated.
func (imp *Importer) Import(ctx context.Context, seriesType data.SeriesType, r io.Reader, replaceExisting bool) (*ImportResult, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "benchmark.Import")
	defer span.End()

	subLog := log.With().Str("SeriesType", string(seriesType)).Bool("ReplaceExisting", replaceExisting).Logger()

	importable := false
	for _, t := range data.BenchmarkTypes {
		if t == seriesType {
			importable = true
			break
		}
	}
	if !importable {
		subLog.Error().Stack().Msg("series type is not an importable benchmark")
		return nil, ErrUnknownSeries
	}

	points, err := Parse(r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "csv validation failed")
		subLog.Warn().Err(err).Msg("rejected benchmark upload")
		return nil, err
	}

	if replaceExisting {
		if err := imp.Series.Delete(ctx, seriesType, data.GlobalKey); err != nil {
			return nil, err
		}
	}
	if err := imp.Series.Upsert(ctx, seriesType, data.GlobalKey, points); err != nil {
		return nil, err
	}

	// refresh every payload that charts this benchmark; curves are untouched
	// so the watermark stays at today. The per-portfolio overlays are marked
	// fire-and-forget; the global payload carries the series itself and is
	// marked synchronously.
	latest, err := imp.Snapshots.Alloc.Latest(ctx)
	if err != nil {
		return nil, err
	}
	today := date.Today()
	for _, snap := range latest {
		imp.Snapshots.MarkDirtyAsync(snapshot.ScopePortfolio, snap.PortfolioKey, today)
	}
	if err := imp.Snapshots.Snapshots.MarkDirty(ctx, snapshot.ScopeGlobal, data.GlobalKey, today); err != nil {
		return nil, err
	}

	result := &ImportResult{
		SeriesType: seriesType,
		NumPoints:  len(points),
		Begin:      points[0].Date,
		End:        points[len(points)-1].Date,
		Replaced:   replaceExisting,
	}
	subLog.Info().Int("NumPoints", result.NumPoints).Str("Begin", result.Begin.String()).Str("End", result.End.String()).Msg("benchmark imported")
	return result, nil
}

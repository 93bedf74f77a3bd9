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
	"encoding/hex"
	"math"
	"time"

	"github.com/goccy/go-json"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/dec"
	"github.com/signalclub/roi-api/portfolio"
	"github.com/zeebo/blake3"
	"gonum.org/v1/gonum/stat"
)

// The payload is the one place decimals become floats. Everything upstream
// of json.Marshal here stays exact.

// PointPayload is one chart point.
type PointPayload struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// MonthlyPayload is one month's return for the monthly grid.
type MonthlyPayload struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Return float64 `json:"return"`
}

// MetricsPayload is the serialized metric block.
type MetricsPayload struct {
	ROISinceInception    float64 `json:"roiSinceInception"`
	ROILast30Days        float64 `json:"roiLast30Days"`
	MaxDrawdown          float64 `json:"maxDrawdown"`
	AnnualizedVolatility float64 `json:"annualizedVolatility"`
	BestMonth            float64 `json:"bestMonth"`
	WorstMonth           float64 `json:"worstMonth"`
	MeanMonth            float64 `json:"meanMonth"`
	MedianMonth          float64 `json:"medianMonth"`
	MonthStdDev          float64 `json:"monthStdDev"`
	WinMonths            int     `json:"winMonths"`
	LossMonths           int     `json:"lossMonths"`
}

// PortfolioPayload is the dashboard artifact for one portfolio.
type PortfolioPayload struct {
	PortfolioKey string                    `json:"portfolioKey"`
	AsOfDate     string                    `json:"asOfDate"`
	GeneratedAt  time.Time                 `json:"generatedAt"`
	Nav          []PointPayload            `json:"nav"`
	Drawdowns    []PointPayload            `json:"drawdowns"`
	Benchmarks   map[string][]PointPayload `json:"benchmarks,omitempty"`
	Monthly      []MonthlyPayload          `json:"monthly"`
	Metrics      MetricsPayload            `json:"metrics"`
	Gaps         []portfolio.DayGap        `json:"gaps,omitempty"`
}

// GlobalPayload is the aggregate dashboard artifact: every portfolio's
// headline numbers plus the shared overlays.
type GlobalPayload struct {
	AsOfDate    string                    `json:"asOfDate"`
	GeneratedAt time.Time                 `json:"generatedAt"`
	Portfolios  []PortfolioSummary        `json:"portfolios"`
	Benchmarks  map[string][]PointPayload `json:"benchmarks,omitempty"`
	ChangeLog   []data.ChangeLogEvent     `json:"changeLog,omitempty"`
	Settings    map[string]string         `json:"settings,omitempty"`
}

// PortfolioSummary is one portfolio's headline block inside the global
// payload.
type PortfolioSummary struct {
	PortfolioKey string         `json:"portfolioKey"`
	AsOfDate     string         `json:"asOfDate"`
	Metrics      MetricsPayload `json:"metrics"`
	Nav          []PointPayload `json:"nav"`
}

func pointsPayload(points []data.SeriesPoint) []PointPayload {
	out := make([]PointPayload, len(points))
	for idx, point := range points {
		out[idx] = PointPayload{Date: point.Date.String(), Value: dec.ToNum(point.Value)}
	}
	return out
}

func drawdownsPayload(points []portfolio.DrawdownPoint) []PointPayload {
	out := make([]PointPayload, len(points))
	for idx, point := range points {
		out[idx] = PointPayload{Date: point.Date.String(), Value: dec.ToNum(point.Value)}
	}
	return out
}

func monthlyPayload(monthly []portfolio.MonthlyReturn) []MonthlyPayload {
	out := make([]MonthlyPayload, len(monthly))
	for idx, m := range monthly {
		out[idx] = MonthlyPayload{Year: m.Year, Month: m.Month, Return: dec.ToNum(m.Return)}
	}
	return out
}

// annualizedVolatility is the standard deviation of daily NAV returns scaled
// to a 365-day year. Crypto trades every calendar day.
func annualizedVolatility(points []data.SeriesPoint) float64 {
	if len(points) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(points)-1)
	for idx := 1; idx < len(points); idx++ {
		prior := dec.ToNum(points[idx-1].Value)
		if prior == 0 {
			continue
		}
		returns = append(returns, dec.ToNum(points[idx].Value)/prior-1)
	}
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(365)
}

func metricsPayload(metrics *portfolio.SeriesMetrics, nav []data.SeriesPoint) MetricsPayload {
	return MetricsPayload{
		ROISinceInception:    dec.ToNum(metrics.ROISinceInception),
		ROILast30Days:        dec.ToNum(metrics.ROILast30Days),
		MaxDrawdown:          dec.ToNum(metrics.MaxDrawdown),
		AnnualizedVolatility: annualizedVolatility(nav),
		BestMonth:            dec.ToNum(metrics.MonthlyStats.Best),
		WorstMonth:           dec.ToNum(metrics.MonthlyStats.Worst),
		MeanMonth:            dec.ToNum(metrics.MonthlyStats.Mean),
		MedianMonth:          dec.ToNum(metrics.MonthlyStats.Median),
		MonthStdDev:          dec.ToNum(metrics.MonthlyStats.StdDev),
		WinMonths:            metrics.MonthlyStats.WinMonths,
		LossMonths:           metrics.MonthlyStats.LossMonths,
	}
}

// marshalPayload serializes a payload and returns its content checksum. The
// checksum doubles as the HTTP ETag and as the redundant-write guard: a
// recompute that produces identical bytes skips the cache churn.
func marshalPayload(payload interface{}) ([]byte, string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	sum := blake3.Sum256(raw)
	return raw, hex.EncodeToString(sum[:]), nil
}

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

package portfolio

import (
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/dec"
)

// roiWindowDays is the trailing window for the short-horizon ROI figure.
const roiWindowDays = 30

// DrawdownPoint is one day of the drawdown series: percent below the running
// peak, zero at new highs, never positive.
type DrawdownPoint struct {
	Date  date.Date  `json:"date"`
	Value dec.Number `json:"value"`
}

// MonthlyReturn is the percent change of a series across one calendar month,
// measured first available point to last available point within the month.
type MonthlyReturn struct {
	Year   int        `json:"year"`
	Month  int        `json:"month"`
	Return dec.Number `json:"return"`
}

// MonthlyStats summarizes the distribution of monthly returns.
type MonthlyStats struct {
	Best       dec.Number `json:"best"`
	Worst      dec.Number `json:"worst"`
	Mean       dec.Number `json:"mean"`
	Median     dec.Number `json:"median"`
	StdDev     dec.Number `json:"stdDev"`
	WinMonths  int        `json:"winMonths"`
	LossMonths int        `json:"lossMonths"`
}

// SeriesMetrics is everything the dashboard shows that derives from one
// equity curve.
type SeriesMetrics struct {
	ROISinceInception dec.Number      `json:"roiSinceInception"`
	ROILast30Days     dec.Number      `json:"roiLast30Days"`
	MaxDrawdown       dec.Number      `json:"maxDrawdown"`
	Drawdowns         []DrawdownPoint `json:"drawdowns"`
	Monthly           []MonthlyReturn `json:"monthly"`
	MonthlyStats      MonthlyStats    `json:"monthlyStats"`
}

// percentChange returns (b/a - 1) * 100.
func percentChange(a, b dec.Number) dec.Number {
	return dec.Mul(dec.Sub(dec.SafeDiv(b, a), dec.One), dec.Hundred)
}

// ROISinceInception is the total percent return from the first point to the
// last.
func ROISinceInception(points []data.SeriesPoint) (dec.Number, error) {
	if len(points) == 0 {
		return dec.Zero, ErrEmptySeries
	}
	return percentChange(points[0].Value, points[len(points)-1].Value), nil
}

// ROILastNDays computes the trailing return over n days, anchored on the
// latest available point at or before (last - n). A series shorter than the
// window falls back to its first point.
func ROILastNDays(points []data.SeriesPoint, n int) (dec.Number, error) {
	if len(points) == 0 {
		return dec.Zero, ErrEmptySeries
	}
	last := points[len(points)-1]
	anchor := last.Date.Add(-n)

	base := points[0]
	for _, point := range points {
		if point.Date.After(anchor) {
			break
		}
		base = point
	}
	return percentChange(base.Value, last.Value), nil
}

// Drawdowns returns the full drawdown series and the worst (most negative)
// value in it. Every value is at most zero.
func Drawdowns(points []data.SeriesPoint) ([]DrawdownPoint, dec.Number, error) {
	if len(points) == 0 {
		return nil, dec.Zero, ErrEmptySeries
	}

	series := make([]DrawdownPoint, 0, len(points))
	peak := points[0].Value
	worst := dec.Zero
	for _, point := range points {
		if point.Value.GreaterThan(peak) {
			peak = point.Value
		}
		dd := percentChange(peak, point.Value)
		if dd.LessThan(worst) {
			worst = dd
		}
		series = append(series, DrawdownPoint{Date: point.Date, Value: dd})
	}
	return series, worst, nil
}

// MonthlyReturns buckets a series into calendar months and computes each
// month's first-to-last percent change. Partial months at either end are
// reported as-is.
func MonthlyReturns(points []data.SeriesPoint) ([]MonthlyReturn, error) {
	if len(points) == 0 {
		return nil, ErrEmptySeries
	}

	type bucket struct {
		first data.SeriesPoint
		last  data.SeriesPoint
	}

	keys := make([]int, 0, 12)
	buckets := make(map[int]*bucket)
	for _, point := range points {
		t := point.Date.Time()
		key := t.Year()*100 + int(t.Month())
		b, ok := buckets[key]
		if !ok {
			buckets[key] = &bucket{first: point, last: point}
			keys = append(keys, key)
			continue
		}
		b.last = point
	}

	monthly := make([]MonthlyReturn, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		monthly = append(monthly, MonthlyReturn{
			Year:   key / 100,
			Month:  key % 100,
			Return: percentChange(b.first.Value, b.last.Value),
		})
	}
	return monthly, nil
}

// SummarizeMonthly computes the distribution stats for a set of monthly
// returns. Flat months count as neither win nor loss.
func SummarizeMonthly(monthly []MonthlyReturn) MonthlyStats {
	if len(monthly) == 0 {
		return MonthlyStats{}
	}

	values := make([]dec.Number, 0, len(monthly))
	stats := MonthlyStats{Best: monthly[0].Return, Worst: monthly[0].Return}
	for _, m := range monthly {
		values = append(values, m.Return)
		if m.Return.GreaterThan(stats.Best) {
			stats.Best = m.Return
		}
		if m.Return.LessThan(stats.Worst) {
			stats.Worst = m.Return
		}
		switch m.Return.Sign() {
		case 1:
			stats.WinMonths++
		case -1:
			stats.LossMonths++
		}
	}

	stats.Mean = dec.Mean(values)
	stats.Median = dec.Median(values)
	stats.StdDev = dec.StdDevPop(values)
	return stats
}

// ComputeMetrics derives the full metric set from one NAV series.
func ComputeMetrics(points []data.SeriesPoint) (*SeriesMetrics, error) {
	roiInception, err := ROISinceInception(points)
	if err != nil {
		return nil, err
	}
	roi30, err := ROILastNDays(points, roiWindowDays)
	if err != nil {
		return nil, err
	}
	drawdowns, maxDrawdown, err := Drawdowns(points)
	if err != nil {
		return nil, err
	}
	monthly, err := MonthlyReturns(points)
	if err != nil {
		return nil, err
	}

	return &SeriesMetrics{
		ROISinceInception: roiInception,
		ROILast30Days:     roi30,
		MaxDrawdown:       maxDrawdown,
		Drawdowns:         drawdowns,
		Monthly:           monthly,
		MonthlyStats:      SummarizeMonthly(monthly),
	}, nil
}

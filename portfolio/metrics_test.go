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

package portfolio_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/dec"
	"github.com/signalclub/roi-api/portfolio"
)

func navSeries(start date.Date, values ...string) []data.SeriesPoint {
	points := make([]data.SeriesPoint, len(values))
	for idx, v := range values {
		points[idx] = data.SeriesPoint{Date: start.Add(idx), Value: dec.Require(v)}
	}
	return points
}

var _ = Describe("Series metrics", func() {
	var start date.Date

	BeforeEach(func() {
		start = date.New(2024, time.January, 1)
	})

	Describe("ROISinceInception", func() {
		It("reports gains as positive percent", func() {
			roi, err := portfolio.ROISinceInception(navSeries(start, "100", "110", "121"))
			Expect(err).To(BeNil())
			Expect(roi.Equal(dec.FromInt(21))).To(BeTrue())
		})

		It("reports losses as negative percent", func() {
			roi, err := portfolio.ROISinceInception(navSeries(start, "100", "90", "81"))
			Expect(err).To(BeNil())
			Expect(roi.Equal(dec.FromInt(-19))).To(BeTrue())
		})

		It("rejects an empty series", func() {
			_, err := portfolio.ROISinceInception(nil)
			Expect(err).To(MatchError(portfolio.ErrEmptySeries))
		})
	})

	Describe("ROILastNDays", func() {
		It("anchors on the point n days before the last", func() {
			points := make([]data.SeriesPoint, 0, 40)
			for ii := 0; ii < 40; ii++ {
				points = append(points, data.SeriesPoint{Date: start.Add(ii), Value: dec.FromInt(100)})
			}
			// day 9 is exactly 30 days before the last point; the window
			// return is measured from there
			points[9].Value = dec.FromInt(80)
			roi, err := portfolio.ROILastNDays(points, 30)
			Expect(err).To(BeNil())
			Expect(roi.Equal(dec.FromInt(25))).To(BeTrue())
		})

		It("falls back to the first point for short series", func() {
			roi, err := portfolio.ROILastNDays(navSeries(start, "100", "150"), 30)
			Expect(err).To(BeNil())
			Expect(roi.Equal(dec.FromInt(50))).To(BeTrue())
		})
	})

	Describe("Drawdowns", func() {
		It("never reports a positive drawdown", func() {
			series, maxDD, err := portfolio.Drawdowns(navSeries(start, "100", "120", "90", "130", "104"))
			Expect(err).To(BeNil())
			for _, point := range series {
				Expect(point.Value.Sign() <= 0).To(BeTrue())
			}
			// trough is 90 against the 120 peak
			Expect(maxDD.Equal(dec.FromInt(-25))).To(BeTrue())
		})

		It("reports zero at new highs", func() {
			series, maxDD, err := portfolio.Drawdowns(navSeries(start, "100", "110", "121"))
			Expect(err).To(BeNil())
			Expect(maxDD.IsZero()).To(BeTrue())
			Expect(series[2].Value.IsZero()).To(BeTrue())
		})
	})

	Describe("MonthlyReturns", func() {
		It("buckets by calendar month", func() {
			points := []data.SeriesPoint{
				{Date: date.New(2024, time.January, 30), Value: dec.FromInt(100)},
				{Date: date.New(2024, time.January, 31), Value: dec.FromInt(110)},
				{Date: date.New(2024, time.February, 1), Value: dec.FromInt(110)},
				{Date: date.New(2024, time.February, 29), Value: dec.FromInt(99)},
			}
			monthly, err := portfolio.MonthlyReturns(points)
			Expect(err).To(BeNil())
			Expect(monthly).To(HaveLen(2))
			Expect(monthly[0].Year).To(Equal(2024))
			Expect(monthly[0].Month).To(Equal(1))
			Expect(monthly[0].Return.Equal(dec.FromInt(10))).To(BeTrue())
			Expect(monthly[1].Return.Equal(dec.FromInt(-10))).To(BeTrue())
		})
	})

	Describe("SummarizeMonthly", func() {
		It("computes distribution stats", func() {
			monthly := []portfolio.MonthlyReturn{
				{Year: 2024, Month: 1, Return: dec.FromInt(10)},
				{Year: 2024, Month: 2, Return: dec.FromInt(-5)},
				{Year: 2024, Month: 3, Return: dec.FromInt(4)},
				{Year: 2024, Month: 4, Return: dec.Zero},
			}
			stats := portfolio.SummarizeMonthly(monthly)
			Expect(stats.Best.Equal(dec.FromInt(10))).To(BeTrue())
			Expect(stats.Worst.Equal(dec.FromInt(-5))).To(BeTrue())
			Expect(stats.WinMonths).To(Equal(2))
			Expect(stats.LossMonths).To(Equal(1))
			Expect(stats.Mean.Equal(dec.Require("2.25"))).To(BeTrue())
			Expect(stats.Median.Equal(dec.FromInt(2))).To(BeTrue())
		})
	})

	Describe("ComputeMetrics", func() {
		It("assembles the full metric set", func() {
			metrics, err := portfolio.ComputeMetrics(navSeries(start, "100", "110", "121"))
			Expect(err).To(BeNil())
			Expect(metrics.ROISinceInception.Equal(dec.FromInt(21))).To(BeTrue())
			Expect(metrics.MaxDrawdown.IsZero()).To(BeTrue())
			Expect(metrics.Monthly).To(HaveLen(1))
		})
	})
})

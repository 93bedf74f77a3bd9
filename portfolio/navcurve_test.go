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
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/dec"
	"github.com/signalclub/roi-api/portfolio"
)

var _ = Describe("Curve builder", func() {
	var (
		dbPool  pgxmock.PgxConnIface
		builder *portfolio.CurveBuilder
		key     portfolio.Key
		start   date.Date
		end     date.Date
		err     error
	)

	day := func(d int) time.Time {
		return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
	}

	// one BTC-only allocation effective 2024-01-01; closes for the first
	// three days, nothing for the fourth
	expectPriming := func() {
		dbPool.ExpectBegin()
		dbPool.ExpectQuery("SELECT as_of_date, items FROM allocation_snapshots").
			WillReturnRows(pgxmock.NewRows([]string{"as_of_date", "items"}).
				AddRow(day(1), []byte(`[{"symbol":"BTC","weight":"1"}]`)))
		dbPool.ExpectCommit()

		dbPool.ExpectBegin()
		dbPool.ExpectQuery("SELECT symbol, event_date, close").
			WillReturnRows(pgxmock.NewRows([]string{"symbol", "event_date", "close"}).
				AddRow("BTC", day(1), "100").
				AddRow("BTC", day(2), "110").
				AddRow("BTC", day(3), "121"))
		dbPool.ExpectCommit()
	}

	expectSeedMiss := func() {
		dbPool.ExpectBegin()
		dbPool.ExpectQuery("SELECT event_date, value").
			WillReturnError(pgx.ErrNoRows)
		dbPool.ExpectRollback()
	}

	BeforeEach(func() {
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)

		key, err = portfolio.ParseKey("growth_aggressive")
		Expect(err).To(BeNil())

		resolver := portfolio.NewResolver(data.NewAllocationStore(), data.NewPriceStore(), data.LoadTickers())
		builder = portfolio.NewCurveBuilder(resolver, data.NewSeriesStore())

		start = date.New(2024, time.January, 2)
		end = date.New(2024, time.January, 4)
	})

	Context("with a priced range ending in a data gap", func() {
		BeforeEach(func() {
			expectPriming()
			expectSeedMiss()
		})

		It("compounds daily returns and carries gaps flat", func() {
			dbPool.ExpectBegin()
			for ii := 0; ii < 3; ii++ {
				dbPool.ExpectExec("INSERT INTO performance_series").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}
			dbPool.ExpectCommit()

			result, err := builder.Build(context.Background(), &portfolio.CurveRequest{
				Key:       key,
				Watermark: start,
				Inception: start,
				ForceEnd:  end,
			})
			Expect(err).To(BeNil())
			Expect(result.Points).To(HaveLen(3))
			Expect(result.Points[0].Value.Equal(dec.FromInt(110))).To(BeTrue())
			Expect(result.Points[1].Value.Equal(dec.FromInt(121))).To(BeTrue())
			// the unpriced fourth day carries the NAV forward unchanged
			Expect(result.Points[2].Value.Equal(dec.FromInt(121))).To(BeTrue())

			Expect(result.Gaps).To(HaveLen(1))
			Expect(result.Gaps[0].Reason).To(Equal(portfolio.GapMissingPrice))
			Expect(result.Gaps[0].Date).To(Equal(end))

			Expect(dbPool.ExpectationsWereMet()).To(BeNil())
		})

		It("aborts at the gap in strict mode", func() {
			result, err := builder.Build(context.Background(), &portfolio.CurveRequest{
				Key:       key,
				Watermark: start,
				Inception: start,
				ForceEnd:  end,
				Strict:    true,
			})
			Expect(err).To(MatchError(portfolio.ErrStrictGap))
			// the two priced days were still computed
			Expect(result.Points).To(HaveLen(2))
			Expect(result.Gaps).To(HaveLen(1))
		})
	})

	Context("when recomputing from a watermark", func() {
		It("rewrites only points on or after the watermark", func() {
			expectPriming()
			// seed from the persisted point just before the watermark
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT event_date, value").
				WillReturnRows(pgxmock.NewRows([]string{"event_date", "value"}).
					AddRow(day(1), "100"))
			dbPool.ExpectCommit()

			dbPool.ExpectBegin()
			dbPool.ExpectExec("INSERT INTO performance_series").
				WithArgs("MODEL_NAV", "growth_aggressive", day(2), pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			dbPool.ExpectExec("INSERT INTO performance_series").
				WithArgs("MODEL_NAV", "growth_aggressive", day(3), pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			dbPool.ExpectCommit()

			result, err := builder.Build(context.Background(), &portfolio.CurveRequest{
				Key:       key,
				Watermark: date.New(2024, time.January, 2),
				Inception: date.New(2024, time.January, 1),
				ForceEnd:  date.New(2024, time.January, 3),
			})
			Expect(err).To(BeNil())
			Expect(result.Points).To(HaveLen(2))
			Expect(result.Points[0].Date).To(Equal(date.New(2024, time.January, 2)))
			Expect(result.Points[0].Value.Equal(dec.FromInt(110))).To(BeTrue())
			Expect(result.Points[1].Value.Equal(dec.FromInt(121))).To(BeTrue())
			// the pinned dates above also prove nothing before the
			// watermark was written
			Expect(dbPool.ExpectationsWereMet()).To(BeNil())
		})

		It("produces identical NAV points when run twice over the same inputs", func() {
			req := &portfolio.CurveRequest{
				Key:       key,
				Watermark: start,
				Inception: start,
				ForceEnd:  end,
			}

			results := make([]*portfolio.CurveResult, 2)
			for run := 0; run < 2; run++ {
				expectPriming()
				expectSeedMiss()
				dbPool.ExpectBegin()
				for ii := 0; ii < 3; ii++ {
					dbPool.ExpectExec("INSERT INTO performance_series").
						WillReturnResult(pgxmock.NewResult("INSERT", 1))
				}
				dbPool.ExpectCommit()

				result, err := builder.Build(context.Background(), req)
				Expect(err).To(BeNil())
				results[run] = result
			}

			Expect(results[0].Points).To(HaveLen(3))
			for idx := range results[0].Points {
				Expect(results[1].Points[idx].Date).To(Equal(results[0].Points[idx].Date))
				Expect(results[1].Points[idx].Value.Equal(results[0].Points[idx].Value)).To(BeTrue())
			}
			Expect(dbPool.ExpectationsWereMet()).To(BeNil())
		})
	})

	Context("with no usable start date", func() {
		It("refuses to guess", func() {
			_, err := builder.Build(context.Background(), &portfolio.CurveRequest{Key: key})
			Expect(err).To(MatchError(portfolio.ErrNoStartDate))
		})
	})

	Context("when the range is before the first allocation", func() {
		It("records allocation gaps", func() {
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT as_of_date, items FROM allocation_snapshots").
				WillReturnRows(pgxmock.NewRows([]string{"as_of_date", "items"}).
					AddRow(day(10), []byte(`[{"symbol":"BTC","weight":"1"}]`)))
			dbPool.ExpectCommit()

			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT symbol, event_date, close").
				WillReturnRows(pgxmock.NewRows([]string{"symbol", "event_date", "close"}))
			dbPool.ExpectCommit()

			expectSeedMiss()

			dbPool.ExpectBegin()
			for ii := 0; ii < 3; ii++ {
				dbPool.ExpectExec("INSERT INTO performance_series").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}
			dbPool.ExpectCommit()

			result, err := builder.Build(context.Background(), &portfolio.CurveRequest{
				Key:       key,
				Watermark: start,
				Inception: start,
				ForceEnd:  end,
			})
			Expect(err).To(BeNil())
			Expect(result.Gaps).To(HaveLen(3))
			for _, gap := range result.Gaps {
				Expect(gap.Reason).To(Equal(portfolio.GapNoAllocation))
			}
			// every day is flat at the inception baseline
			for _, point := range result.Points {
				Expect(point.Value.Equal(dec.FromInt(100))).To(BeTrue())
			}
		})
	})
})

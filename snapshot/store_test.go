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

package snapshot_test

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
	"github.com/signalclub/roi-api/snapshot"
)

var _ = Describe("Snapshot store", func() {
	var (
		dbPool pgxmock.PgxConnIface
		store  *snapshot.Store
		ctx    context.Context
		err    error
	)

	BeforeEach(func() {
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)

		store = snapshot.NewStore()
		ctx = context.Background()
	})

	Describe("Get", func() {
		It("returns the stored row", func() {
			checksum := "abc123"
			asOf := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
			computedAt := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT payload, checksum, needs_recompute").
				WithArgs("portfolio", "growth_aggressive").
				WillReturnRows(pgxmock.NewRows([]string{
					"payload", "checksum", "needs_recompute", "recompute_from_date", "as_of_date", "last_computed_at", "last_error",
				}).AddRow([]byte(`{"nav":[]}`), &checksum, false, (*time.Time)(nil), &asOf, &computedAt, (*string)(nil)))
			dbPool.ExpectCommit()

			snap, err := store.Get(ctx, snapshot.ScopePortfolio, "growth_aggressive")
			Expect(err).To(BeNil())
			Expect(snap.Checksum).To(Equal("abc123"))
			Expect(snap.NeedsRecompute).To(BeFalse())
			Expect(snap.RecomputeFrom.IsZero()).To(BeTrue())
			Expect(snap.AsOfDate.String()).To(Equal("2024-05-31"))
			Expect(snap.Payload).To(Equal([]byte(`{"nav":[]}`)))
		})

		It("maps a missing row to ErrNotFound", func() {
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT payload, checksum, needs_recompute").
				WillReturnError(pgx.ErrNoRows)
			dbPool.ExpectRollback()

			_, err := store.Get(ctx, snapshot.ScopeGlobal, data.GlobalKey)
			Expect(err).To(MatchError(data.ErrNotFound))
		})
	})

	Describe("MarkDirty", func() {
		It("upserts with a watermark", func() {
			from := date.New(2024, time.May, 1)
			dbPool.ExpectBegin()
			dbPool.ExpectExec("INSERT INTO roi_snapshots").
				WithArgs("portfolio", "growth_aggressive", from.Time()).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			dbPool.ExpectCommit()

			Expect(store.MarkDirty(ctx, snapshot.ScopePortfolio, "growth_aggressive", from)).To(Succeed())
			Expect(dbPool.ExpectationsWereMet()).To(BeNil())
		})

		It("passes NULL for a whole-history mark", func() {
			dbPool.ExpectBegin()
			dbPool.ExpectExec("INSERT INTO roi_snapshots").
				WithArgs("portfolio", "growth_aggressive", nil).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			dbPool.ExpectCommit()

			Expect(store.MarkDirty(ctx, snapshot.ScopePortfolio, "growth_aggressive", date.Date{})).To(Succeed())
		})
	})

	Describe("ListDirty", func() {
		It("orders portfolio snapshots ahead of the global one", func() {
			from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT scope, portfolio_key, recompute_from_date FROM roi_snapshots").
				WillReturnRows(pgxmock.NewRows([]string{"scope", "portfolio_key", "recompute_from_date"}).
					AddRow("portfolio", "growth_aggressive", &from).
					AddRow("global", "global", (*time.Time)(nil)))
			dbPool.ExpectCommit()

			dirty, err := store.ListDirty(ctx)
			Expect(err).To(BeNil())
			Expect(dirty).To(HaveLen(2))
			Expect(dirty[0].Scope).To(Equal(snapshot.ScopePortfolio))
			Expect(dirty[0].RecomputeFrom.String()).To(Equal("2024-05-01"))
			Expect(dirty[1].Scope).To(Equal(snapshot.ScopeGlobal))
			Expect(dirty[1].RecomputeFrom.IsZero()).To(BeTrue())
		})
	})

	Describe("MarkDirtyAsync", func() {
		It("records the mark without blocking the caller", func() {
			svc := snapshot.NewService(nil)
			from := date.New(2024, time.May, 1)
			dbPool.ExpectBegin()
			dbPool.ExpectExec("INSERT INTO roi_snapshots").
				WithArgs("portfolio", "growth_aggressive", from.Time()).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			dbPool.ExpectCommit()

			svc.MarkDirtyAsync(snapshot.ScopePortfolio, "growth_aggressive", from)
			Eventually(dbPool.ExpectationsWereMet).Should(Succeed())
		})
	})

	Describe("SaveResult", func() {
		It("stores the payload and clears the dirty flag", func() {
			dbPool.ExpectBegin()
			dbPool.ExpectExec("INSERT INTO roi_snapshots").
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			dbPool.ExpectCommit()

			snap := &snapshot.Snapshot{
				Scope:        snapshot.ScopePortfolio,
				PortfolioKey: "growth_aggressive",
				Payload:      []byte(`{}`),
				Checksum:     "abc123",
				AsOfDate:     date.New(2024, time.May, 31),
			}
			Expect(store.SaveResult(ctx, snap, date.New(2024, time.May, 1))).To(Succeed())
			Expect(dbPool.ExpectationsWereMet()).To(BeNil())
		})
	})

	Describe("SaveError", func() {
		It("keeps the row dirty and records the message", func() {
			dbPool.ExpectBegin()
			dbPool.ExpectExec("INSERT INTO roi_snapshots").
				WithArgs("portfolio", "growth_aggressive", "boom").
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			dbPool.ExpectCommit()

			Expect(store.SaveError(ctx, snapshot.ScopePortfolio, "growth_aggressive", errBoom{})).To(Succeed())
		})
	})
})

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

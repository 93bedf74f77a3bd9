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

	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/portfolio"
	"github.com/signalclub/roi-api/snapshot"
)

var _ = Describe("Snapshot refresh", func() {
	var (
		dbPool pgxmock.PgxConnIface
		svc    *snapshot.Service
		key    portfolio.Key
		ctx    context.Context
		err    error
	)

	BeforeEach(func() {
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)

		svc = snapshot.NewService(nil)
		key, err = portfolio.ParseKey("growth_aggressive")
		Expect(err).To(BeNil())
		ctx = context.Background()
	})

	Context("in strict mode over a range with no allocation", func() {
		It("aborts at the gap and records the failure", func() {
			checksum := "abc123"
			from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

			// dirty row with a watermark
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT payload, checksum, needs_recompute").
				WithArgs("portfolio", "growth_aggressive").
				WillReturnRows(pgxmock.NewRows([]string{
					"payload", "checksum", "needs_recompute", "recompute_from_date", "as_of_date", "last_computed_at", "last_error",
				}).AddRow([]byte(`{}`), &checksum, true, &from, (*time.Time)(nil), (*time.Time)(nil), (*string)(nil)))
			dbPool.ExpectCommit()

			// inception setting
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT name, value FROM dashboard_settings").
				WillReturnRows(pgxmock.NewRows([]string{"name", "value"}).
					AddRow("inception_date", "2024-01-02"))
			dbPool.ExpectCommit()

			// no allocation snapshots in range
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT as_of_date, items FROM allocation_snapshots").
				WillReturnRows(pgxmock.NewRows([]string{"as_of_date", "items"}))
			dbPool.ExpectCommit()

			// no prior NAV point
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT event_date, value").
				WillReturnError(pgx.ErrNoRows)
			dbPool.ExpectRollback()

			// the failure lands in last_error and the row stays dirty
			dbPool.ExpectBegin()
			dbPool.ExpectExec("INSERT INTO roi_snapshots").
				WithArgs("portfolio", "growth_aggressive", portfolio.ErrStrictGap.Error()).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			dbPool.ExpectCommit()

			err := svc.Refresh(ctx, key, snapshot.RefreshOptions{Force: true, Strict: true})
			Expect(err).To(MatchError(portfolio.ErrStrictGap))
			Expect(dbPool.ExpectationsWereMet()).To(BeNil())
		})
	})
})

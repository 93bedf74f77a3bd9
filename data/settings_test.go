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

package data_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/database"
)

var _ = Describe("Settings store", func() {
	var (
		dbPool pgxmock.PgxConnIface
		store  *data.SettingsStore
		ctx    context.Context
		err    error
	)

	BeforeEach(func() {
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)

		store = data.NewSettingsStore()
		ctx = context.Background()
	})

	Describe("InceptionDate", func() {
		It("prefers the configured setting", func() {
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT name, value FROM dashboard_settings").
				WillReturnRows(pgxmock.NewRows([]string{"name", "value"}).
					AddRow("inception_date", "2024-01-02"))
			dbPool.ExpectCommit()

			inception, err := store.InceptionDate(ctx)
			Expect(err).To(BeNil())
			Expect(inception.String()).To(Equal("2024-01-02"))
			Expect(dbPool.ExpectationsWereMet()).To(BeNil())
		})

		It("falls back to the earliest signal when unset", func() {
			earliest := time.Date(2023, 11, 15, 9, 30, 0, 0, time.UTC)
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT name, value FROM dashboard_settings").
				WillReturnRows(pgxmock.NewRows([]string{"name", "value"}))
			dbPool.ExpectCommit()
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT MIN\\(published_at\\) FROM portfolio_signals").
				WillReturnRows(pgxmock.NewRows([]string{"min"}).AddRow(&earliest))
			dbPool.ExpectCommit()

			inception, err := store.InceptionDate(ctx)
			Expect(err).To(BeNil())
			Expect(inception.String()).To(Equal("2023-11-15"))
		})

		It("returns ErrNotFound with no setting and no signals", func() {
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT name, value FROM dashboard_settings").
				WillReturnRows(pgxmock.NewRows([]string{"name", "value"}))
			dbPool.ExpectCommit()
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT MIN\\(published_at\\) FROM portfolio_signals").
				WillReturnRows(pgxmock.NewRows([]string{"min"}).AddRow((*time.Time)(nil)))
			dbPool.ExpectCommit()

			_, err := store.InceptionDate(ctx)
			Expect(err).To(MatchError(data.ErrNotFound))
		})
	})
})

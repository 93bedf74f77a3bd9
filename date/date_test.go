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

package date_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/signalclub/roi-api/date"
)

var _ = Describe("Date", func() {
	Describe("Parse", func() {
		It("reads ISO-8601 days", func() {
			d, err := date.Parse("2024-02-29")
			Expect(err).To(BeNil())
			Expect(d.String()).To(Equal("2024-02-29"))
		})

		It("rejects malformed input", func() {
			_, err := date.Parse("02/29/2024")
			Expect(err).To(MatchError(date.ErrInvalidDate))
		})
	})

	Describe("FromTime", func() {
		It("truncates to the UTC calendar day", func() {
			est := time.FixedZone("EST", -5*3600)
			t := time.Date(2024, 3, 1, 23, 30, 0, 0, est)
			Expect(date.FromTime(t).String()).To(Equal("2024-03-02"))
		})
	})

	Describe("Add", func() {
		It("normalizes across month boundaries", func() {
			d := date.New(2024, time.January, 31)
			Expect(d.Add(1).String()).To(Equal("2024-02-01"))
			Expect(d.Add(-31).String()).To(Equal("2023-12-31"))
		})
	})

	Describe("DaysUntil", func() {
		It("counts whole days", func() {
			a := date.New(2024, time.January, 1)
			b := date.New(2024, time.February, 1)
			Expect(a.DaysUntil(b)).To(Equal(31))
			Expect(b.DaysUntil(a)).To(Equal(-31))
		})
	})

	Describe("Max and Min", func() {
		It("ignore zero dates", func() {
			a := date.New(2024, time.January, 1)
			b := date.New(2024, time.June, 1)
			Expect(date.Max(date.Date{}, a, b)).To(Equal(b))
			Expect(date.Min(date.Date{}, a, b)).To(Equal(a))
			Expect(date.Max(date.Date{}).IsZero()).To(BeTrue())
		})
	})

	Describe("JSON round trip", func() {
		It("serializes as a quoted ISO day", func() {
			d := date.New(2024, time.May, 7)
			raw, err := d.MarshalJSON()
			Expect(err).To(BeNil())
			Expect(string(raw)).To(Equal(`"2024-05-07"`))

			var parsed date.Date
			Expect(parsed.UnmarshalJSON(raw)).To(Succeed())
			Expect(parsed).To(Equal(d))
		})
	})
})

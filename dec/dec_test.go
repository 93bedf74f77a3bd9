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

package dec_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/signalclub/roi-api/dec"
)

var _ = Describe("Decimal arithmetic", func() {
	Describe("SafeDiv", func() {
		It("divides exactly", func() {
			Expect(dec.SafeDiv(dec.FromInt(110), dec.FromInt(100)).Equal(dec.Require("1.1"))).To(BeTrue())
		})

		It("returns zero for a zero divisor", func() {
			Expect(dec.SafeDiv(dec.FromInt(42), dec.Zero).IsZero()).To(BeTrue())
		})
	})

	Describe("Sqrt", func() {
		It("computes exact roots", func() {
			Expect(dec.Sqrt(dec.FromInt(144)).Equal(dec.FromInt(12))).To(BeTrue())
		})

		It("converges for non-square inputs", func() {
			root := dec.Sqrt(dec.FromInt(2))
			square := dec.Mul(root, root)
			diff := dec.Sub(square, dec.FromInt(2)).Abs()
			Expect(diff.LessThan(dec.Require("0.0000000001"))).To(BeTrue())
		})

		It("returns zero for non-positive input", func() {
			Expect(dec.Sqrt(dec.FromInt(-4)).IsZero()).To(BeTrue())
			Expect(dec.Sqrt(dec.Zero).IsZero()).To(BeTrue())
		})
	})

	Describe("Mean", func() {
		It("averages a slice", func() {
			values := []dec.Number{dec.FromInt(1), dec.FromInt(2), dec.FromInt(3)}
			Expect(dec.Mean(values).Equal(dec.FromInt(2))).To(BeTrue())
		})

		It("returns zero for an empty slice", func() {
			Expect(dec.Mean(nil).IsZero()).To(BeTrue())
		})
	})

	Describe("Median", func() {
		It("picks the middle of an odd-length slice", func() {
			values := []dec.Number{dec.FromInt(9), dec.FromInt(1), dec.FromInt(5)}
			Expect(dec.Median(values).Equal(dec.FromInt(5))).To(BeTrue())
		})

		It("averages the two middle values of an even-length slice", func() {
			values := []dec.Number{dec.FromInt(4), dec.FromInt(1), dec.FromInt(3), dec.FromInt(2)}
			Expect(dec.Median(values).Equal(dec.Require("2.5"))).To(BeTrue())
		})
	})

	Describe("StdDevPop", func() {
		It("computes the population standard deviation", func() {
			values := []dec.Number{dec.FromInt(2), dec.FromInt(4), dec.FromInt(4), dec.FromInt(4), dec.FromInt(5), dec.FromInt(5), dec.FromInt(7), dec.FromInt(9)}
			Expect(dec.StdDevPop(values).Equal(dec.FromInt(2))).To(BeTrue())
		})

		It("returns zero for fewer than two values", func() {
			Expect(dec.StdDevPop([]dec.Number{dec.FromInt(7)}).IsZero()).To(BeTrue())
		})
	})
})

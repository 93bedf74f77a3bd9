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

// Package dec is the single place monetary and weight arithmetic happens.
// Everything inside the pipeline is an arbitrary-precision decimal; a native
// float64 may only be produced by ToNum, at the serialization boundary.
package dec

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Number is the decimal type used throughout the engine.
type Number = decimal.Decimal

// divPrecision bounds division and sqrt results. 16 significant decimal
// places is far below NUMERIC storage precision and far above anything a
// daily NAV series can observably accumulate.
const divPrecision = 16

var (
	Zero    = decimal.Zero
	One     = decimal.NewFromInt(1)
	Hundred = decimal.NewFromInt(100)
)

func FromInt(i int64) Number        { return decimal.NewFromInt(i) }
func FromFloat(f float64) Number    { return decimal.NewFromFloat(f) }
func Require(s string) Number       { return decimal.RequireFromString(s) }
func FromString(s string) (Number, error) { return decimal.NewFromString(s) }

func Add(a, b Number) Number { return a.Add(b) }
func Sub(a, b Number) Number { return a.Sub(b) }
func Mul(a, b Number) Number { return a.Mul(b) }

// SafeDiv returns a/b, or zero when b is zero. Zero-equity and zero-variance
// edge cases are expected (first day of a series) and must not abort the
// pipeline.
func SafeDiv(a, b Number) Number {
	if b.IsZero() {
		return Zero
	}
	return a.DivRound(b, divPrecision)
}

// Pow raises a to an integer power.
func Pow(a Number, n int64) Number {
	return a.Pow(decimal.NewFromInt(n))
}

// Sqrt computes the square root by Newton iteration. Negative input returns
// zero; the only caller is a population standard deviation, whose radicand
// cannot be negative.
func Sqrt(a Number) Number {
	if a.Sign() <= 0 {
		return Zero
	}
	x := a
	two := decimal.NewFromInt(2)
	for i := 0; i < 32; i++ {
		next := x.Add(a.DivRound(x, divPrecision)).DivRound(two, divPrecision)
		if next.Equal(x) {
			break
		}
		x = next
	}
	return x
}

// ToNum converts to a native float. Only the serialization edge may call
// this.
func ToNum(a Number) float64 { return a.InexactFloat64() }

// Mean returns the arithmetic mean, or zero for an empty slice.
func Mean(values []Number) Number {
	if len(values) == 0 {
		return Zero
	}
	sum := Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return SafeDiv(sum, FromInt(int64(len(values))))
}

// Median returns the middle value (mean of the two middle values for even
// lengths), or zero for an empty slice.
func Median(values []Number) Number {
	if len(values) == 0 {
		return Zero
	}
	sorted := make([]Number, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return SafeDiv(sorted[mid-1].Add(sorted[mid]), FromInt(2))
}

// StdDevPop returns the population standard deviation, or zero for fewer
// than two values.
func StdDevPop(values []Number) Number {
	if len(values) < 2 {
		return Zero
	}
	mean := Mean(values)
	sum := Zero
	for _, v := range values {
		diff := v.Sub(mean)
		sum = sum.Add(diff.Mul(diff))
	}
	return Sqrt(SafeDiv(sum, FromInt(int64(len(values)))))
}

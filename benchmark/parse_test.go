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

package benchmark_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/signalclub/roi-api/benchmark"
	"github.com/signalclub/roi-api/dec"
)

func parseErrorOf(err error) *benchmark.ParseError {
	var parseErr *benchmark.ParseError
	Expect(errors.As(err, &parseErr)).To(BeTrue())
	return parseErr
}

var _ = Describe("Benchmark CSV parsing", func() {
	It("parses a plain date,value file", func() {
		points, err := benchmark.Parse(strings.NewReader("2024-01-01,42000.50\n2024-01-02,42836.21\n"))
		Expect(err).To(BeNil())
		Expect(points).To(HaveLen(2))
		Expect(points[0].Date.String()).To(Equal("2024-01-01"))
		Expect(points[0].Value.Equal(dec.Require("42000.50"))).To(BeTrue())
	})

	It("tolerates a single header row", func() {
		points, err := benchmark.Parse(strings.NewReader("date,close\n2024-01-01,42000\n"))
		Expect(err).To(BeNil())
		Expect(points).To(HaveLen(1))
	})

	It("rejects duplicate dates", func() {
		_, err := benchmark.Parse(strings.NewReader("2024-01-01,100\n2024-01-01,101\n"))
		parseErr := parseErrorOf(err)
		Expect(parseErr.Rows).To(HaveLen(1))
		Expect(parseErr.Rows[0].Line).To(Equal(2))
		Expect(parseErr.Rows[0].Message).To(ContainSubstring("duplicate"))
	})

	It("rejects out-of-order dates", func() {
		_, err := benchmark.Parse(strings.NewReader("2024-01-02,100\n2024-01-01,101\n"))
		parseErr := parseErrorOf(err)
		Expect(parseErr.Rows[0].Message).To(ContainSubstring("out of order"))
	})

	It("accepts zero but rejects negative values", func() {
		points, err := benchmark.Parse(strings.NewReader("2024-01-01,0\n2024-01-02,5\n"))
		Expect(err).To(BeNil())
		Expect(points).To(HaveLen(2))

		_, err = benchmark.Parse(strings.NewReader("2024-01-01,100\n2024-01-02,-5\n"))
		parseErr := parseErrorOf(err)
		Expect(parseErr.Rows).To(HaveLen(1))
		Expect(parseErr.Rows[0].Line).To(Equal(2))
		Expect(parseErr.Rows[0].Message).To(ContainSubstring("negative"))
	})

	It("collects every failure instead of stopping at the first", func() {
		csv := "2024-01-01,100\nnot-a-date,101\n2024-01-03,oops\n2024-01-04,102,extra\n"
		_, err := benchmark.Parse(strings.NewReader(csv))
		parseErr := parseErrorOf(err)
		Expect(parseErr.Rows).To(HaveLen(3))
	})

	It("imports nothing from a file with any bad row", func() {
		points, err := benchmark.Parse(strings.NewReader("2024-01-01,100\nbad-row,101\n"))
		Expect(err).NotTo(BeNil())
		Expect(points).To(BeNil())
	})

	It("rejects an empty file", func() {
		_, err := benchmark.Parse(strings.NewReader(""))
		parseErr := parseErrorOf(err)
		Expect(parseErr.Rows[0].Message).To(ContainSubstring("no data rows"))
	})
})

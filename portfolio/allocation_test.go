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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/dec"
	"github.com/signalclub/roi-api/portfolio"
)

func weightSum(items []data.AllocationItem) dec.Number {
	sum := dec.Zero
	for _, item := range items {
		sum = dec.Add(sum, item.Weight)
	}
	return sum
}

var _ = Describe("Allocation derivation", func() {
	var assets portfolio.AssetSet

	BeforeEach(func() {
		assets = portfolio.AssetSet{Primary: "btc", Secondary: "eth", Tertiary: "sol"}
	})

	Context("AGGRESSIVE", func() {
		It("puts everything in the primary asset", func() {
			items, err := portfolio.DeriveAllocations(portfolio.RiskAggressive, assets)
			Expect(err).To(BeNil())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Symbol).To(Equal("BTC"))
			Expect(items[0].Weight.Equal(dec.One)).To(BeTrue())
		})

		It("only requires the primary asset", func() {
			items, err := portfolio.DeriveAllocations(portfolio.RiskAggressive, portfolio.AssetSet{Primary: "BTC"})
			Expect(err).To(BeNil())
			Expect(items).To(HaveLen(1))
		})
	})

	Context("SEMI", func() {
		It("splits 80/20 across primary and secondary", func() {
			items, err := portfolio.DeriveAllocations(portfolio.RiskSemi, assets)
			Expect(err).To(BeNil())
			Expect(items).To(HaveLen(2))
			Expect(items[0].Weight.Equal(dec.Require("0.8"))).To(BeTrue())
			Expect(items[1].Weight.Equal(dec.Require("0.2"))).To(BeTrue())
			Expect(weightSum(items).Equal(dec.One)).To(BeTrue())
		})

		It("fails without a secondary asset", func() {
			_, err := portfolio.DeriveAllocations(portfolio.RiskSemi, portfolio.AssetSet{Primary: "BTC"})
			Expect(err).To(MatchError(portfolio.ErrMissingAsset))
		})
	})

	Context("CONSERVATIVE", func() {
		It("splits 60/30/10 across all three assets", func() {
			items, err := portfolio.DeriveAllocations(portfolio.RiskConservative, assets)
			Expect(err).To(BeNil())
			Expect(items).To(HaveLen(3))
			Expect(items[0].Weight.Equal(dec.Require("0.6"))).To(BeTrue())
			Expect(items[1].Weight.Equal(dec.Require("0.3"))).To(BeTrue())
			Expect(items[2].Weight.Equal(dec.Require("0.1"))).To(BeTrue())
			Expect(weightSum(items).Equal(dec.One)).To(BeTrue())
		})

		It("fails without a tertiary asset", func() {
			_, err := portfolio.DeriveAllocations(portfolio.RiskConservative, portfolio.AssetSet{Primary: "BTC", Secondary: "ETH"})
			Expect(err).To(MatchError(portfolio.ErrMissingAsset))
		})
	})

	It("always requires a primary asset", func() {
		_, err := portfolio.DeriveAllocations(portfolio.RiskAggressive, portfolio.AssetSet{})
		Expect(err).To(MatchError(portfolio.ErrMissingAsset))
	})
})

var _ = Describe("Signal asset extraction", func() {
	It("prefers labeled assets", func() {
		assets, err := portfolio.ParseSignalAssets("Primary: BTC, Secondary: ETH, Tertiary: SOL. HODL!")
		Expect(err).To(BeNil())
		Expect(assets).To(Equal(portfolio.AssetSet{Primary: "BTC", Secondary: "ETH", Tertiary: "SOL"}))
	})

	It("accepts colon, equals and dash separators with dollar prefixes", func() {
		assets, err := portfolio.ParseSignalAssets("primary = $BTC secondary - $ETH")
		Expect(err).To(BeNil())
		Expect(assets.Primary).To(Equal("BTC"))
		Expect(assets.Secondary).To(Equal("ETH"))
		Expect(assets.Tertiary).To(Equal(""))
	})

	It("falls back to positional uppercase tickers", func() {
		assets, err := portfolio.ParseSignalAssets("Rotating into BTC and ETH this week, watching SOL")
		Expect(err).To(BeNil())
		Expect(assets.Primary).To(Equal("BTC"))
		Expect(assets.Secondary).To(Equal("ETH"))
		Expect(assets.Tertiary).To(Equal("SOL"))
	})

	It("never mistakes numbers for tickers", func() {
		assets, err := portfolio.ParseSignalAssets("Rotate into BTC before 2024 halving, target 100000")
		Expect(err).To(BeNil())
		Expect(assets.Primary).To(Equal("BTC"))
		Expect(assets.Secondary).To(Equal(""))
		Expect(assets.Tertiary).To(Equal(""))
	})

	It("deduplicates positional tickers", func() {
		assets, err := portfolio.ParseSignalAssets("BTC BTC ETH")
		Expect(err).To(BeNil())
		Expect(assets.Primary).To(Equal("BTC"))
		Expect(assets.Secondary).To(Equal("ETH"))
		Expect(assets.Tertiary).To(Equal(""))
	})

	It("fails when no asset can be found", func() {
		_, err := portfolio.ParseSignalAssets("staying in cash this week")
		Expect(err).To(MatchError(portfolio.ErrNoPrimaryAsset))
	})
})

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

	"github.com/signalclub/roi-api/portfolio"
)

var _ = Describe("Portfolio keys", func() {
	Describe("NewKey", func() {
		It("builds a growth key without a category", func() {
			key, err := portfolio.NewKey("growth", "", "aggressive")
			Expect(err).To(BeNil())
			Expect(key.String()).To(Equal("growth_aggressive"))
		})

		It("builds an elite key with a category", func() {
			key, err := portfolio.NewKey("Elite", "DeFi", "SEMI")
			Expect(err).To(BeNil())
			Expect(key.String()).To(Equal("elite_defi_semi"))
		})

		It("rejects a category on the growth tier", func() {
			_, err := portfolio.NewKey("growth", "defi", "aggressive")
			Expect(err).To(MatchError(portfolio.ErrCategoryForbidden))
		})

		It("requires a category on the elite tier", func() {
			_, err := portfolio.NewKey("elite", "", "aggressive")
			Expect(err).To(MatchError(portfolio.ErrCategoryRequired))
		})

		It("rejects unknown tiers and risk profiles", func() {
			_, err := portfolio.NewKey("platinum", "", "aggressive")
			Expect(err).To(MatchError(portfolio.ErrInvalidTier))

			_, err = portfolio.NewKey("growth", "", "yolo")
			Expect(err).To(MatchError(portfolio.ErrInvalidRiskProfile))
		})
	})

	Describe("legacy tier remapping", func() {
		It("maps t1 to growth", func() {
			key, err := portfolio.NewKey("t1", "", "conservative")
			Expect(err).To(BeNil())
			Expect(key.Tier).To(Equal(portfolio.TierGrowth))
		})

		It("maps t2 without a category to growth", func() {
			key, err := portfolio.NewKey("t2", "", "semi")
			Expect(err).To(BeNil())
			Expect(key.String()).To(Equal("growth_semi"))
		})

		It("maps t2 with a category to elite", func() {
			key, err := portfolio.NewKey("t2", "defi", "semi")
			Expect(err).To(BeNil())
			Expect(key.String()).To(Equal("elite_defi_semi"))
		})

		It("maps t3 to elite", func() {
			key, err := portfolio.NewKey("t3", "layer1", "aggressive")
			Expect(err).To(BeNil())
			Expect(key.String()).To(Equal("elite_layer1_aggressive"))
		})

		It("still validates after remapping", func() {
			_, err := portfolio.NewKey("t3", "", "aggressive")
			Expect(err).To(MatchError(portfolio.ErrCategoryRequired))
		})
	})

	Describe("ParseKey", func() {
		It("round-trips through String", func() {
			for _, s := range []string{"growth_aggressive", "elite_defi_conservative"} {
				key, err := portfolio.ParseKey(s)
				Expect(err).To(BeNil())
				Expect(key.String()).To(Equal(s))
			}
		})

		It("rejects the wrong number of segments", func() {
			_, err := portfolio.ParseKey("growth")
			Expect(err).To(MatchError(portfolio.ErrInvalidKey))

			_, err = portfolio.ParseKey("elite_defi_extra_semi")
			Expect(err).To(MatchError(portfolio.ErrInvalidKey))
		})
	})
})

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

package portfolio

import "strings"

// RiskProfile selects the fixed allocation policy for a portfolio.
type RiskProfile string

const (
	RiskAggressive   RiskProfile = "AGGRESSIVE"
	RiskSemi         RiskProfile = "SEMI"
	RiskConservative RiskProfile = "CONSERVATIVE"
)

// Current tiers. Growth carries a single strategy; Elite runs multiple
// sub-strategies and therefore requires a category.
const (
	TierGrowth = "growth"
	TierElite  = "elite"
)

// Key identifies one logical portfolio.
type Key struct {
	Tier     string
	Category string
	Risk     RiskProfile
}

func ParseRiskProfile(s string) (RiskProfile, error) {
	switch RiskProfile(strings.ToUpper(strings.TrimSpace(s))) {
	case RiskAggressive:
		return RiskAggressive, nil
	case RiskSemi:
		return RiskSemi, nil
	case RiskConservative:
		return RiskConservative, nil
	}
	return "", ErrInvalidRiskProfile
}

// normalizeLegacyTier translates the retired T1/T2/T3 tier names into
// current tiers. This is the only place the migration artifact lives; the
// rest of the engine treats current tier/category semantics as canonical.
func normalizeLegacyTier(tier, category string) (string, string) {
	switch tier {
	case "t1":
		return TierGrowth, ""
	case "t2":
		if category == "" {
			return TierGrowth, ""
		}
		return TierElite, category
	case "t3":
		return TierElite, category
	}
	return tier, category
}

// NewKey builds and validates a key from its parts, applying legacy tier
// remapping first.
func NewKey(tier, category, risk string) (Key, error) {
	tier = strings.ToLower(strings.TrimSpace(tier))
	category = strings.ToLower(strings.TrimSpace(category))
	tier, category = normalizeLegacyTier(tier, category)

	riskProfile, err := ParseRiskProfile(risk)
	if err != nil {
		return Key{}, err
	}

	switch tier {
	case TierGrowth:
		if category != "" {
			return Key{}, ErrCategoryForbidden
		}
	case TierElite:
		if category == "" {
			return Key{}, ErrCategoryRequired
		}
	default:
		return Key{}, ErrInvalidTier
	}

	return Key{Tier: tier, Category: category, Risk: riskProfile}, nil
}

// ParseKey reads a normalized key string: tier_category_riskprofile, with
// the category segment omitted for tiers that don't carry one.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "_")
	switch len(parts) {
	case 2:
		return NewKey(parts[0], "", parts[1])
	case 3:
		return NewKey(parts[0], parts[1], parts[2])
	}
	return Key{}, ErrInvalidKey
}

// String returns the normalized lowercase form used as the storage key.
func (k Key) String() string {
	if k.Category == "" {
		return k.Tier + "_" + strings.ToLower(string(k.Risk))
	}
	return k.Tier + "_" + k.Category + "_" + strings.ToLower(string(k.Risk))
}

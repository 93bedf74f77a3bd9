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

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/dec"
)

// AssetSet is the ordered asset list extracted from a published signal.
type AssetSet struct {
	Primary   string
	Secondary string
	Tertiary  string
}

// The weight policy is fixed by design, not configurable: published
// portfolios must stay auditable against the printed policy.
var (
	weightFull = dec.One
	weightSemi = []dec.Number{dec.Require("0.8"), dec.Require("0.2")}
	weightCons = []dec.Number{dec.Require("0.6"), dec.Require("0.3"), dec.Require("0.1")}
)

// DeriveAllocations maps a risk profile and an ordered asset set into exact
// decimal portfolio weights.
//
// AGGRESSIVE takes the primary asset only. SEMI requires a secondary asset;
// CONSERVATIVE requires secondary and tertiary. A missing required leg is a
// validation error, never silently redistributed.
func DeriveAllocations(risk RiskProfile, assets AssetSet) ([]data.AllocationItem, error) {
	primary := strings.ToUpper(strings.TrimSpace(assets.Primary))
	secondary := strings.ToUpper(strings.TrimSpace(assets.Secondary))
	tertiary := strings.ToUpper(strings.TrimSpace(assets.Tertiary))

	if primary == "" {
		return nil, fmt.Errorf("%w: primary", ErrMissingAsset)
	}

	switch risk {
	case RiskAggressive:
		return []data.AllocationItem{
			{Symbol: primary, Weight: weightFull},
		}, nil
	case RiskSemi:
		if secondary == "" {
			return nil, fmt.Errorf("%w: secondary", ErrMissingAsset)
		}
		return []data.AllocationItem{
			{Symbol: primary, Weight: weightSemi[0]},
			{Symbol: secondary, Weight: weightSemi[1]},
		}, nil
	case RiskConservative:
		if secondary == "" {
			return nil, fmt.Errorf("%w: secondary", ErrMissingAsset)
		}
		if tertiary == "" {
			return nil, fmt.Errorf("%w: tertiary", ErrMissingAsset)
		}
		return []data.AllocationItem{
			{Symbol: primary, Weight: weightCons[0]},
			{Symbol: secondary, Weight: weightCons[1]},
			{Symbol: tertiary, Weight: weightCons[2]},
		}, nil
	}

	return nil, ErrInvalidRiskProfile
}

var (
	labeledAssetRe = regexp.MustCompile(`(?i)(primary|secondary|tertiary)\s*[:=\-]\s*\$?([A-Za-z0-9]{2,10})`)
	// a ticker needs at least one letter or plain numbers in the copy
	// ("target 100000") would parse as assets
	bareTickerRe = regexp.MustCompile(`\$?\b([A-Z][A-Z0-9]{1,5})\b`)
)

// ParseSignalAssets extracts the ordered asset list from free-text signal
// copy. Labeled form ("Primary: BTC, Secondary: ETH") wins; otherwise the
// first three ticker-looking uppercase tokens are taken in order.
func ParseSignalAssets(signal string) (AssetSet, error) {
	var assets AssetSet

	for _, match := range labeledAssetRe.FindAllStringSubmatch(signal, -1) {
		symbol := strings.ToUpper(match[2])
		switch strings.ToLower(match[1]) {
		case "primary":
			if assets.Primary == "" {
				assets.Primary = symbol
			}
		case "secondary":
			if assets.Secondary == "" {
				assets.Secondary = symbol
			}
		case "tertiary":
			if assets.Tertiary == "" {
				assets.Tertiary = symbol
			}
		}
	}

	if assets.Primary != "" {
		return assets, nil
	}

	// fallback: positional uppercase tickers
	seen := make(map[string]bool)
	ordered := make([]string, 0, 3)
	for _, match := range bareTickerRe.FindAllStringSubmatch(signal, -1) {
		symbol := match[1]
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		ordered = append(ordered, symbol)
		if len(ordered) == 3 {
			break
		}
	}

	if len(ordered) == 0 {
		return AssetSet{}, ErrNoPrimaryAsset
	}
	assets.Primary = ordered[0]
	if len(ordered) > 1 {
		assets.Secondary = ordered[1]
	}
	if len(ordered) > 2 {
		assets.Tertiary = ordered[2]
	}
	return assets, nil
}

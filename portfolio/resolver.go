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
	"context"

	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/dec"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"go.opentelemetry.io/otel"
)

// priceLookback bounds how far back a day-over-day return may reach for its
// baseline price. Crypto trades every day; a hole wider than this is a feed
// outage, not a holiday.
const priceLookback = 14

// GapReason names why a day could not be resolved.
type GapReason string

const (
	GapNoAllocation GapReason = "no-allocation"
	GapMissingPrice GapReason = "missing-price"
)

// DayGap marks a day the resolver could not fully price. The curve builder
// decides whether to carry the NAV flat or abort, depending on strictness.
type DayGap struct {
	Date    date.Date `json:"date"`
	Reason  GapReason `json:"reason"`
	Symbols []string  `json:"symbols,omitempty"`
}

// Resolver answers "what allocation was in effect and what did its assets
// close at" for any day in a primed range. Priming loads everything in two
// queries so the day loop never touches the database.
type Resolver struct {
	Alloc   *data.AllocationStore
	Prices  *data.PriceStore
	Tickers *data.TickerTable

	snaps  []*data.AllocationSnapshot
	prices map[string]map[string]dec.Number
	primed bool
}

func NewResolver(alloc *data.AllocationStore, prices *data.PriceStore, tickers *data.TickerTable) *Resolver {
	return &Resolver{Alloc: alloc, Prices: prices, Tickers: tickers}
}

// Prime loads every allocation snapshot up to end and all close prices the
// range [begin, end] could need, including the lookback window before begin.
func (r *Resolver) Prime(ctx context.Context, key Key, begin, end date.Date) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "resolver.Prime")
	defer span.End()

	subLog := log.With().Str("PortfolioKey", key.String()).Str("Begin", begin.String()).Str("End", end.String()).Logger()

	snaps, err := r.Alloc.InRange(ctx, key.String(), end)
	if err != nil {
		return err
	}
	r.snaps = snaps

	symbolSet := make(map[string]bool)
	for _, snap := range snaps {
		for _, item := range snap.Items {
			symbolSet[r.Tickers.Canonical(item.Symbol)] = true
		}
	}

	symbols := make([]string, 0, len(symbolSet))
	for symbol := range symbolSet {
		symbols = append(symbols, symbol)
	}

	if len(symbols) == 0 {
		subLog.Debug().Msg("no allocated symbols in range")
		r.prices = make(map[string]map[string]dec.Number)
		r.primed = true
		return nil
	}

	prices, err := r.Prices.ClosePrices(ctx, symbols, begin.Add(-priceLookback), end)
	if err != nil {
		return err
	}
	r.prices = prices
	r.primed = true

	subLog.Debug().Int("NumSnapshots", len(snaps)).Int("NumSymbols", len(symbols)).Msg("resolver primed")
	return nil
}

// AllocationOn returns the snapshot in effect on d, or nil when none has
// taken effect yet.
func (r *Resolver) AllocationOn(d date.Date) *data.AllocationSnapshot {
	var current *data.AllocationSnapshot
	for _, snap := range r.snaps {
		if snap.AsOfDate.After(d) {
			break
		}
		current = snap
	}
	return current
}

// priceOn returns the close for a canonical symbol exactly on d.
func (r *Resolver) priceOn(symbol string, d date.Date) (dec.Number, bool) {
	bySymbol, ok := r.prices[symbol]
	if !ok {
		return dec.Zero, false
	}
	value, ok := bySymbol[d.String()]
	return value, ok
}

// priceBefore returns the last close strictly before d within the lookback
// window.
func (r *Resolver) priceBefore(symbol string, d date.Date) (dec.Number, bool) {
	bySymbol, ok := r.prices[symbol]
	if !ok {
		return dec.Zero, false
	}
	for back := 1; back <= priceLookback; back++ {
		if value, ok := bySymbol[d.Add(-back).String()]; ok {
			return value, ok
		}
	}
	return dec.Zero, false
}

// ResolveDay returns the allocation in effect on d and each allocated
// asset's (close, prior close) pair. A missing allocation or price yields a
// DayGap instead of a guess; a zero or negative price is a hard data error.
func (r *Resolver) ResolveDay(d date.Date) (*data.AllocationSnapshot, []AssetDayPrice, *DayGap, error) {
	if !r.primed {
		log.Panic().Msg("ResolveDay called before Prime")
	}

	snap := r.AllocationOn(d)
	if snap == nil {
		return nil, nil, &DayGap{Date: d, Reason: GapNoAllocation}, nil
	}

	resolved := make([]AssetDayPrice, 0, len(snap.Items))
	missing := make([]string, 0)
	for _, item := range snap.Items {
		symbol := r.Tickers.Canonical(item.Symbol)

		price, ok := r.priceOn(symbol, d)
		if !ok {
			missing = append(missing, symbol)
			continue
		}
		prior, ok := r.priceBefore(symbol, d)
		if !ok {
			missing = append(missing, symbol)
			continue
		}

		if price.Sign() <= 0 || prior.Sign() <= 0 {
			log.Error().Stack().Str("Symbol", symbol).Str("Date", d.String()).Msg("zero or negative close price")
			return nil, nil, nil, ErrCorruptPrice
		}

		resolved = append(resolved, AssetDayPrice{
			Symbol: symbol,
			Weight: item.Weight,
			Close:  price,
			Prior:  prior,
		})
	}

	if len(missing) > 0 {
		return snap, nil, &DayGap{Date: d, Reason: GapMissingPrice, Symbols: missing}, nil
	}
	return snap, resolved, nil, nil
}

// AssetDayPrice is one allocated asset fully priced for one day.
type AssetDayPrice struct {
	Symbol string
	Weight dec.Number
	Close  dec.Number
	Prior  dec.Number
}

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

package data

import (
	"time"

	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/dec"
)

// SeriesType names one performance time series.
type SeriesType string

const (
	SeriesModel    SeriesType = "MODEL"
	SeriesModelNav SeriesType = "MODEL_NAV"
	SeriesBTC      SeriesType = "BTC"
	SeriesETH      SeriesType = "ETH"
)

// GlobalKey is the portfolio key shared benchmark series are stored under.
const GlobalKey = "global"

// BenchmarkTypes are the externally imported reference series.
var BenchmarkTypes = []SeriesType{SeriesBTC, SeriesETH}

// SeriesPoint is one day of one series.
type SeriesPoint struct {
	Date  date.Date  `json:"date"`
	Value dec.Number `json:"value"`
}

// Signal is an immutable-once-published editorial record. Only the most
// recent signal per (tier, category) is in effect as of a given date.
type Signal struct {
	Tier        string
	Category    string
	RiskProfile string
	Signal      string
	PublishedAt time.Time
}

// AllocationItem is one asset leg with its exact decimal weight.
type AllocationItem struct {
	Symbol string     `json:"symbol"`
	Weight dec.Number `json:"weight"`
}

// AllocationSnapshot is a derived, immutable record of the weights in effect
// for a portfolio from AsOfDate until superseded by a later snapshot.
type AllocationSnapshot struct {
	PortfolioKey string
	AsOfDate     date.Date
	Items        []AllocationItem
}

// ChangeLogEvent is a small admin-curated annotation overlaid on the chart.
type ChangeLogEvent struct {
	ID        int64     `json:"id"`
	EventDate date.Date `json:"eventDate"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
}

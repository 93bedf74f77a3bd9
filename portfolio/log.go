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
	"strings"

	"github.com/rs/zerolog"
	"github.com/signalclub/roi-api/dec"
)

func (gap *DayGap) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Date", gap.Date.String())
	e.Str("Reason", string(gap.Reason))
	if len(gap.Symbols) > 0 {
		e.Str("Symbols", strings.Join(gap.Symbols, ","))
	}
}

func (result *CurveResult) MarshalZerologObject(e *zerolog.Event) {
	e.Str("PortfolioKey", result.Key.String())
	e.Str("Start", result.Start.String())
	e.Str("End", result.End.String())
	e.Int("NumPoints", len(result.Points))
	e.Int("NumGaps", len(result.Gaps))
}

func (m *SeriesMetrics) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("ROISinceInception", dec.ToNum(m.ROISinceInception))
	e.Float64("ROILast30Days", dec.ToNum(m.ROILast30Days))
	e.Float64("MaxDrawdown", dec.ToNum(m.MaxDrawdown))
	e.Int("NumMonths", len(m.Monthly))
}

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

package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/signalclub/roi-api/portfolio"
)

func mustParseKey(s string) portfolio.Key {
	key, err := portfolio.ParseKey(s)
	if err != nil {
		log.Fatal().Err(err).Str("Key", s).Msg("invalid portfolio key; expected tier_risk or tier_category_risk")
	}
	return key
}

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
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// TickerTable maps chain-specific or exchange-specific symbols to the
// canonical ticker prices are stored under, e.g. WBTC -> BTC.
type TickerTable struct {
	aliases map[string]string
}

type tickerFile struct {
	Aliases map[string]string `toml:"aliases"`
}

// LoadTickers reads the alias table from the configured TOML file. A missing
// file yields an empty table: every symbol is then its own canonical ticker.
func LoadTickers() *TickerTable {
	table := &TickerTable{aliases: make(map[string]string)}

	fn := viper.GetString("tickers.path")
	if fn == "" {
		fn = "tickers.toml"
	}

	raw, err := os.ReadFile(fn)
	if err != nil {
		log.Warn().Err(err).Str("Path", fn).Msg("no ticker alias table; using symbols as-is")
		return table
	}

	var parsed tickerFile
	if err := toml.Unmarshal(raw, &parsed); err != nil {
		log.Error().Stack().Err(err).Str("Path", fn).Msg("could not parse ticker alias table")
		return table
	}

	for alias, canonical := range parsed.Aliases {
		table.aliases[strings.ToUpper(alias)] = strings.ToUpper(canonical)
	}

	log.Info().Int("NumAliases", len(table.aliases)).Str("Path", fn).Msg("loaded ticker alias table")
	return table
}

// Canonical resolves a symbol to its primary market ticker.
func (t *TickerTable) Canonical(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if canonical, ok := t.aliases[symbol]; ok {
		return canonical
	}
	return symbol
}

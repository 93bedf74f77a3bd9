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
	"context"
	"fmt"

	"github.com/signalclub/roi-api/common"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/snapshot"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [portfolio key]",
	Short: "Show the input freshness behind one portfolio's dashboard",
	Long:  `Report the latest signal, allocation, price and NAV dates feeding a portfolio snapshot, plus the snapshot row's own state`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		key := mustParseKey(args[0])

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		snapshots := snapshot.NewService(data.LoadTickers())
		diag, err := snapshots.Diagnose(ctx, key)
		if err != nil {
			log.Fatal().Err(err).Str("PortfolioKey", key.String()).Msg("could not diagnose portfolio")
		}

		raw, err := json.MarshalIndent(diag, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal diagnostics")
		}
		fmt.Println(string(raw))
	},
}

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
	"strconv"

	"github.com/signalclub/roi-api/common"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/snapshot"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	backfillCmd.Flags().String("from", "", "Recompute from this date (YYYY-MM-DD); default is full history")
	viper.BindPFlag("backfill.from", backfillCmd.Flags().Lookup("from"))

	backfillCmd.Flags().Bool("strict", false, "Fail on data gaps instead of carrying the NAV flat")
	viper.BindPFlag("backfill.strict", backfillCmd.Flags().Lookup("strict"))

	rootCmd.AddCommand(backfillCmd)
}

var backfillCmd = &cobra.Command{
	Use:   "backfill [portfolio key] [days]",
	Short: "Force recomputation of one portfolio snapshot",
	Long:  `Rebuild a portfolio's equity curve and dashboard payload, bypassing the clean check; use after manual data repairs. With a days argument only the trailing window is rebuilt.`,
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()

		key := mustParseKey(args[0])

		from := date.Date{} // zero means rebuild from inception
		if len(args) == 2 {
			days, err := strconv.Atoi(args[1])
			if err != nil || days < 1 {
				log.Fatal().Str("Days", args[1]).Msg("days must be a positive integer")
			}
			from = date.Today().Add(-days)
		}
		if fromStr := viper.GetString("backfill.from"); fromStr != "" {
			parsed, err := date.Parse(fromStr)
			if err != nil {
				log.Fatal().Str("From", fromStr).Msg("--from must be YYYY-MM-DD")
			}
			from = parsed
		}

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		snapshots := snapshot.NewService(data.LoadTickers())

		if err := snapshots.Snapshots.MarkDirty(ctx, snapshot.ScopePortfolio, key.String(), from); err != nil {
			log.Fatal().Err(err).Msg("could not mark snapshot dirty")
		}

		opts := snapshot.RefreshOptions{Force: true, Strict: viper.GetBool("backfill.strict")}
		if err := snapshots.Refresh(ctx, key, opts); err != nil {
			log.Fatal().Err(err).Str("PortfolioKey", key.String()).Msg("backfill failed")
		}
		if err := snapshots.RefreshGlobal(ctx, true); err != nil {
			log.Fatal().Err(err).Msg("global refresh failed")
		}
		log.Info().Str("PortfolioKey", key.String()).Msg("backfill complete")
	},
}

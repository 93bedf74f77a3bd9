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
	sweepCmd.Flags().Bool("all", false, "Recompute every snapshot, not just dirty ones")
	viper.BindPFlag("sweep.all", sweepCmd.Flags().Lookup("all"))

	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Recompute dirty dashboard snapshots",
	Long:  `Recompute every snapshot marked dirty and exit; intended for cron or one-off runs`,
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		if err := database.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not ensure database schema")
		}

		snapshots := snapshot.NewService(data.LoadTickers())

		if viper.GetBool("sweep.all") {
			forceSweepAll(ctx, snapshots)
			return
		}

		if err := snapshots.Sweep(ctx); err != nil {
			log.Fatal().Err(err).Msg("sweep failed")
		}
	},
}

func forceSweepAll(ctx context.Context, snapshots *snapshot.Service) {
	latest, err := snapshots.Alloc.Latest(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("could not list portfolios")
	}
	// a zero watermark means recompute from inception
	for _, snap := range latest {
		if err := snapshots.Snapshots.MarkDirty(ctx, snapshot.ScopePortfolio, snap.PortfolioKey, date.Date{}); err != nil {
			log.Fatal().Err(err).Str("PortfolioKey", snap.PortfolioKey).Msg("could not mark snapshot dirty")
		}
	}
	if err := snapshots.Snapshots.MarkDirty(ctx, snapshot.ScopeGlobal, data.GlobalKey, date.Date{}); err != nil {
		log.Fatal().Err(err).Msg("could not mark global snapshot dirty")
	}
	if err := snapshots.Sweep(ctx); err != nil {
		log.Fatal().Err(err).Msg("sweep failed")
	}
}

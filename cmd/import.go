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
	"os"
	"strings"

	"github.com/signalclub/roi-api/benchmark"
	"github.com/signalclub/roi-api/common"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/snapshot"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	importCmd.Flags().Bool("replace", false, "Drop the stored series before importing")
	viper.BindPFlag("import.replace", importCmd.Flags().Lookup("replace"))

	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import [BTC|ETH] [csv file]",
	Short: "Import a benchmark series from a CSV file",
	Long:  `Validate and land a date,value CSV for a benchmark series; any invalid row rejects the whole file`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()

		seriesType := data.SeriesType(strings.ToUpper(args[0]))
		fn := args[1]

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		if err := database.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not ensure database schema")
		}

		f, err := os.Open(fn)
		if err != nil {
			log.Fatal().Err(err).Str("Path", fn).Msg("could not open csv file")
		}
		defer f.Close()

		importer := benchmark.NewImporter(snapshot.NewService(data.LoadTickers()))
		result, err := importer.Import(ctx, seriesType, f, viper.GetBool("import.replace"))
		if err != nil {
			log.Fatal().Err(err).Str("SeriesType", string(seriesType)).Msg("import failed")
		}

		log.Info().Int("NumPoints", result.NumPoints).
			Str("Begin", result.Begin.String()).Str("End", result.End.String()).
			Msg("benchmark imported")
	},
}

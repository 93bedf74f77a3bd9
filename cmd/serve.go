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
	"os/signal"
	"time"

	"github.com/signalclub/roi-api/benchmark"
	"github.com/signalclub/roi-api/common"
	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/database"
	"github.com/signalclub/roi-api/handler"
	"github.com/signalclub/roi-api/middleware"
	"github.com/signalclub/roi-api/observability/opentelemetry"
	"github.com/signalclub/roi-api/router"
	"github.com/signalclub/roi-api/snapshot"

	"github.com/go-co-op/gocron"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	viper.BindEnv("sweep.schedule", "ROI_SWEEP_SCHEDULE")
	serveCmd.Flags().String("sweep-schedule", "02:30", "Time of day (UTC) to run the nightly snapshot sweep")
	viper.BindPFlag("sweep.schedule", serveCmd.Flags().Lookup("sweep-schedule"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the roi-api server",
	Long:  `Run HTTP server that serves dashboard payloads and ingests invalidation events`,
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()
		log.Info().Msg("initialized logging")

		shutdownTracing, err := opentelemetry.Setup()
		if err != nil {
			log.Warn().Err(err).Msg("tracing disabled")
		}

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		if err := database.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not ensure database schema")
		}

		tickers := data.LoadTickers()
		snapshots := snapshot.NewService(tickers)
		importer := benchmark.NewImporter(snapshots)
		handler.Setup(snapshots, importer)

		app := fiber.New()

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c // block until signal is read
			log.Info().Str("Signal", sig.String()).Msg("received signal; shutting down")
			if err := app.Shutdown(); err != nil {
				log.Fatal().Err(err).Msg("error shutting down server")
			}
		}()

		corsConfig := cors.Config{
			AllowOrigins: viper.GetString("server.cors_origins"),
			AllowHeaders: "*",
			AllowMethods: "GET,POST,HEAD",
		}
		app.Use(cors.New(corsConfig))
		app.Use(middleware.NewLogger())

		router.SetupRoutes(app)

		// nightly sweep catches anything the event-driven path missed
		scheduler := gocron.NewScheduler(time.UTC)
		scheduler.Every(1).Day().At(viper.GetString("sweep.schedule")).Do(func() {
			if err := snapshots.Sweep(context.Background()); err != nil {
				log.Error().Stack().Err(err).Msg("nightly sweep failed")
			}
		})
		scheduler.StartAsync()

		if err := app.Listen(":" + viper.GetString("server.port")); err != nil {
			log.Fatal().Err(err).Msg("server exited with error")
		}

		scheduler.Stop()
		if shutdownTracing != nil {
			if err := shutdownTracing(ctx); err != nil {
				log.Warn().Err(err).Msg("could not flush traces")
			}
		}
	},
}

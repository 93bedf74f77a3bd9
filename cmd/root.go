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
	"fmt"
	"os"

	"github.com/signalclub/roi-api/common"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Database
	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	// Logging configuration
	viper.BindEnv("log.level", "ROI_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "ROI_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "ROI_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "ROI_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Console-format log output")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Cache
	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis connection string for the shared payload cache")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("redis-url"))

	// Ticker alias table
	viper.BindEnv("tickers.path", "ROI_TICKERS_PATH")
	rootCmd.PersistentFlags().String("tickers", "tickers.toml", "Path to the ticker alias TOML file")
	viper.BindPFlag("tickers.path", rootCmd.PersistentFlags().Lookup("tickers"))

	// Tracing
	viper.BindEnv("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otel-endpoint", "", "OpenTelemetry collector endpoint")
	viper.BindPFlag("otel.endpoint", rootCmd.PersistentFlags().Lookup("otel-endpoint"))

	viper.BindEnv("otel.http", "ROI_OTEL_HTTP")
	rootCmd.PersistentFlags().Bool("otel-http", false, "Export traces over HTTP(s) instead of gRPC")
	viper.BindPFlag("otel.http", rootCmd.PersistentFlags().Lookup("otel-http"))

	viper.BindEnv("otel.headers", "ROI_OTEL_HEADERS")
	rootCmd.PersistentFlags().StringToString("otel-headers", nil, "Headers to send with OTLP export requests")
	viper.BindPFlag("otel.headers", rootCmd.PersistentFlags().Lookup("otel-headers"))
}

var rootCmd = &cobra.Command{
	Use:     "roiapi",
	Version: common.Version,
	Short:   "roi-api computes and serves portfolio ROI dashboards",
	Long: `A batch computation and caching engine that turns published portfolio
signals and daily close prices into equity curves, performance metrics and
cached dashboard payloads.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

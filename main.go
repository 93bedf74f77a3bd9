package main

import (
	"fmt"

	"github.com/signalclub/roi-api/cmd"

	"github.com/spf13/viper"
)

func configureViper() {
	// read config file
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath("/etc/roi-api/")
	viper.AddConfigPath("$HOME/.config/roi-api")
	viper.AddConfigPath(".")

	err := viper.ReadInConfig()
	if err != nil {
		// a missing config file is fine; env vars and flags cover everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}
}

func main() {
	configureViper()
	cmd.Execute()
}

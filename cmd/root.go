// Package cmd holds the timemate command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"timemate/internal/config"
	"timemate/internal/logging"
)

var (
	configFile string
	version    = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "timemate",
	Short: "Meetup session feed backed by a hosted auth and record store",
	Long: `timemate serves the session feed API: sign in, create time-boxed
sessions with a capacity, and join or leave sessions listed in the feed.

  timemate serve      # run the HTTP API and the gRPC health endpoint
  timemate migrate    # create the tables for the sql store`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (yaml, json, toml or env)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.AppEnv, cfg.LogLevel)
	return cfg, nil
}

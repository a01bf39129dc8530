// Package main provides the pipeline worker CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/smart-pricing/internal/config"
	"github.com/ethpandaops/smart-pricing/internal/version"
)

var (
	// configFile is set by the --config flag.
	configFile string

	logger = newLogger()
	cfg    *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)

		stop()
		os.Exit(1) //nolint:gocritic // stop is called explicitly above
	}
}

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Smart pricing data pipeline worker",
	Long: `The worker syncs raw rates from the upstream databases, derives the
processed datasets and charts, and writes price predictions. Each command
runs against one granularity: A (hourly) or B (daily).`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "Path to configuration file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(statusCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(version.Full())
	},
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})

	return l
}

// loadConfig loads and validates the worker configuration.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	loaded, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if err := loaded.ValidateWorker(); err != nil {
		return fmt.Errorf("validate worker config: %w", err)
	}

	level, err := logrus.ParseLevel(loaded.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}

	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"version":   version.Short(),
		"command":   cmd.Name(),
		"data_path": loaded.Storage.DataPath,
		"timezone":  loaded.Storage.Timezone,
	}).Info("Configuration loaded")

	cfg = loaded

	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/config"
	"github.com/ethpandaops/smart-pricing/internal/ledger"
	"github.com/ethpandaops/smart-pricing/internal/query"
	"github.com/ethpandaops/smart-pricing/internal/server"
	"github.com/ethpandaops/smart-pricing/internal/store"
	"github.com/ethpandaops/smart-pricing/internal/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := setupLogger()

	cfg, err := loadAndValidateConfig(logger, *configPath)
	if err != nil {
		logger.WithError(err).Fatal("Configuration error")
	}

	srv := startServer(cfg, logger)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during server shutdown")
	}

	logger.Info("Server stopped gracefully")
}

// setupLogger creates and configures the application logger.
func setupLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})

	logger.WithFields(logrus.Fields{
		"version":    version.Short(),
		"git_commit": version.GitCommit,
		"build_date": version.BuildDate,
	}).Info("Starting...")

	return logger
}

// loadAndValidateConfig loads the configuration file and validates it.
func loadAndValidateConfig(logger *logrus.Logger, configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"port":      cfg.Server.Port,
		"log_level": cfg.Server.LogLevel,
		"data_path": cfg.Storage.DataPath,
		"timezone":  cfg.Storage.Timezone,
	}).Info("Configuration loaded")

	return cfg, nil
}

// startServer wires the read-only query service and starts the HTTP server.
func startServer(cfg *config.Config, logger *logrus.Logger) *server.Server {
	loc := cfg.Storage.Location()
	layout := store.NewLayout(cfg.Storage.DataPath)
	st := store.New(logger, loc, store.WithMaxFiles(cfg.Storage.MaxFiles))
	led := ledger.New(logger, layout, loc)

	srv := server.New(logger, cfg.Server, query.NewFileService(logger, st, layout, led), layout)

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server starting")

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server error")
		}
	}()

	return srv
}

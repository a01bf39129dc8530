package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/leader"
	"github.com/ethpandaops/smart-pricing/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on the configured cadences",
	Long: `Schedule keeps running and triggers the pipeline at every period of the
enabled hourly and daily cadences. Only the elected leader triggers runs, so
several workers can share one Redis. Metrics are served on
schedule.metrics_addr.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

// runSchedule blocks until the command context is cancelled.
// Shutdown order:
// 1. Scheduler (stop clocks, wait for in-flight runs).
// 2. Metrics server.
// 3. Leader election (release leadership lock).
// 4. Upstream and Redis connections.
func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, logger, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	elector := leader.NewElector(logger, cfg.Leader, a.redis)
	if err := elector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start leader election: %w", err)
	}

	defer func() {
		if err := elector.Stop(); err != nil {
			logger.WithError(err).Error("Error stopping leader election")
		}
	}()

	metricsServer := startMetricsServer(cfg.Schedule.MetricsAddr)

	scheduler := schedule.New(logger, a.runner, elector, cfg.Schedule, cfg.Storage.Location())
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	fields := logrus.Fields{"instance": elector.ID()}

	for _, mode := range []granularity.Mode{granularity.Hourly, granularity.Daily} {
		if next, ok := scheduler.Next(mode); ok {
			fields["next_"+mode.Name()] = next.Format(time.DateTime)
		}
	}

	logger.WithFields(fields).Info("Worker scheduling")

	<-ctx.Done()

	logger.Info("Initiating graceful shutdown...")

	if err := scheduler.Stop(); err != nil {
		logger.WithError(err).Error("Error stopping scheduler")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error stopping metrics server")
	}

	return nil
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", addr).Info("Metrics server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server error")
		}
	}()

	return srv
}

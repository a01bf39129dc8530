package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/config"
	"github.com/ethpandaops/smart-pricing/internal/ledger"
	"github.com/ethpandaops/smart-pricing/internal/pipeline"
	"github.com/ethpandaops/smart-pricing/internal/redis"
	"github.com/ethpandaops/smart-pricing/internal/runlock"
	"github.com/ethpandaops/smart-pricing/internal/runstatus"
	"github.com/ethpandaops/smart-pricing/internal/store"
	"github.com/ethpandaops/smart-pricing/internal/tracking"
	"github.com/ethpandaops/smart-pricing/internal/upstream"
)

// app holds the components shared by the worker commands.
type app struct {
	log    logrus.FieldLogger
	cfg    *config.Config
	redis  redis.Client
	status *runstatus.Store
	source *upstream.SQLSource
	runner *pipeline.Runner
}

// newApp connects to Redis. When withPipeline is set it also opens the
// upstream databases and builds the pipeline runner.
func newApp(ctx context.Context, log logrus.FieldLogger, cfg *config.Config, withPipeline bool) (*app, error) {
	redisClient := redis.NewClient(log, cfg.Redis)
	if err := redisClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start Redis client: %w", err)
	}

	a := &app{
		log:    log,
		cfg:    cfg,
		redis:  redisClient,
		status: runstatus.NewStore(redisClient),
	}

	if !withPipeline {
		return a, nil
	}

	loc := cfg.Storage.Location()

	source, err := upstream.Open(log, cfg.Upstream, loc)
	if err != nil {
		a.Close()

		return nil, fmt.Errorf("open upstream: %w", err)
	}

	a.source = source

	if err := source.Ping(ctx); err != nil {
		a.Close()

		return nil, fmt.Errorf("ping upstream: %w", err)
	}

	layout := store.NewLayout(cfg.Storage.DataPath)
	st := store.New(log, loc, store.WithMaxFiles(cfg.Storage.MaxFiles))
	led := ledger.New(log, layout, loc)
	tracker := tracking.NewSink(layout.TrackingDir(), cfg.Tracking.Experiment)

	a.runner = pipeline.NewRunner(
		log,
		pipeline.New(log, cfg, source, st, led, tracker),
		runlock.New(redisClient, cfg.Pipeline.LockTTL),
		a.status,
		cfg.Pipeline,
	)

	return a, nil
}

// Close releases the upstream connections and the Redis client.
func (a *app) Close() {
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			a.log.WithError(err).Error("Error closing upstream databases")
		}
	}

	if err := a.redis.Stop(); err != nil {
		a.log.WithError(err).Error("Error stopping Redis client")
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/config"
	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/properties"
	"github.com/ethpandaops/smart-pricing/internal/runlock"
	"github.com/ethpandaops/smart-pricing/internal/runstatus"
)

// Runner executes full pipeline runs under the per-granularity run lock,
// retrying failed attempts and publishing run status.
type Runner struct {
	log      logrus.FieldLogger
	pipeline *Pipeline
	locker   *runlock.Locker
	status   *runstatus.Store
	cfg      config.PipelineConfig
}

// NewRunner creates a runner.
func NewRunner(
	log logrus.FieldLogger,
	p *Pipeline,
	locker *runlock.Locker,
	status *runstatus.Store,
	cfg config.PipelineConfig,
) *Runner {
	return &Runner{
		log:      log.WithField("component", "runner"),
		pipeline: p,
		locker:   locker,
		status:   status,
		cfg:      cfg,
	}
}

// Run executes every stage for mode.
func (r *Runner) Run(ctx context.Context, mode granularity.Mode) error {
	return r.RunStages(ctx, mode, Stages...)
}

// RunStages executes stages in order for mode. A failed attempt restarts
// from the first stage until the configured attempts are exhausted. Missing
// input data is not retried unless auto repair is enabled.
func (r *Runner) RunStages(ctx context.Context, mode granularity.Mode, stages ...Stage) error {
	lock, err := r.locker.Acquire(ctx, mode)
	if err != nil {
		runsTotal.WithLabelValues(mode.String(), "skipped").Inc()

		return err
	}

	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			r.log.WithError(err).Warn("Failed to release run lock")
		}
	}()

	status := runstatus.Status{
		ScrapType: mode.String(),
		RunID:     uuid.NewString(),
		State:     runstatus.StateRunning,
		StartedAt: time.Now(),
	}

	log := r.log.WithFields(logrus.Fields{"scrap_type": mode, "run_id": status.RunID})
	log.WithField("stages", stages).Info("Pipeline run started")

	err = retry.Do(
		func() error {
			status.Attempt++

			return r.attempt(ctx, mode, stages, &status)
		},
		retry.Attempts(r.cfg.Attempts()),
		retry.Delay(r.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithFields(logrus.Fields{
				"attempt": n + 1,
				"max":     r.cfg.Attempts(),
				"delay":   r.cfg.RetryDelay.String(),
			}).Warn("Pipeline attempt failed, retrying")
		}),
	)

	finished := time.Now()
	status.FinishedAt = &finished

	if err != nil {
		status.State = runstatus.StateFailed
		status.Error = err.Error()
		r.putStatus(ctx, log, status)
		runsTotal.WithLabelValues(mode.String(), "failed").Inc()

		log.WithError(err).WithField("attempts", status.Attempt).Error("Pipeline run failed")

		return fmt.Errorf("run %s: %w", status.RunID, err)
	}

	status.State = runstatus.StateSucceeded
	status.Stage = ""
	r.putStatus(ctx, log, status)
	runsTotal.WithLabelValues(mode.String(), "succeeded").Inc()

	log.WithFields(logrus.Fields{
		"attempts": status.Attempt,
		"duration": finished.Sub(status.StartedAt).String(),
	}).Info("Pipeline run completed")

	return nil
}

// Repair runs the repair sequence for mode under the run lock.
func (r *Runner) Repair(ctx context.Context, mode granularity.Mode) error {
	lock, err := r.locker.Acquire(ctx, mode)
	if err != nil {
		return err
	}

	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			r.log.WithError(err).Warn("Failed to release run lock")
		}
	}()

	return r.pipeline.Repair(ctx, mode)
}

func (r *Runner) attempt(ctx context.Context, mode granularity.Mode, stages []Stage, status *runstatus.Status) error {
	for _, stage := range stages {
		status.Stage = string(stage)
		r.putStatus(ctx, r.log, *status)

		err := r.pipeline.RunStage(ctx, stage, mode)
		if err != nil && isMissingData(err) && r.cfg.AutoRepair {
			r.log.WithError(err).WithField("stage", stage).Warn("Input data missing, attempting repair")

			if repairErr := r.pipeline.Repair(ctx, mode); repairErr != nil {
				return repairErr
			}

			err = r.pipeline.RunStage(ctx, stage, mode)
		}

		if err != nil {
			if isMissingData(err) {
				return retry.Unrecoverable(err)
			}

			return err
		}
	}

	return nil
}

func (r *Runner) putStatus(ctx context.Context, log logrus.FieldLogger, status runstatus.Status) {
	if err := r.status.Put(context.WithoutCancel(ctx), status); err != nil {
		log.WithError(err).Warn("Failed to publish run status")
	}
}

// isMissingData reports whether err means a stage's inputs do not exist yet,
// which retrying alone cannot fix.
func isMissingData(err error) bool {
	return errors.Is(err, ErrNoRawData) ||
		errors.Is(err, ErrNoProcessedData) ||
		errors.Is(err, properties.ErrMissing)
}

// Package schedule triggers pipeline runs on a fixed cadence per granularity.
// Only the elected leader triggers; a granularity never runs twice at once.
package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethpandaops/ethwallclock"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/config"
	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/leader"
	"github.com/ethpandaops/smart-pricing/internal/runlock"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, mode granularity.Mode) error
}

// Clock periods are anchored at local midnight of this date plus the cadence offset.
var anchorDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

type cadence struct {
	mode  granularity.Mode
	cfg   config.CadenceConfig
	clock *ethwallclock.EthereumBeaconChain
	busy  atomic.Bool
}

// Scheduler owns one wallclock per enabled granularity.
type Scheduler struct {
	log      logrus.FieldLogger
	runner   Runner
	elector  leader.Elector
	loc      *time.Location
	cadences map[granularity.Mode]*cadence
	wg       sync.WaitGroup
	mu       sync.Mutex
	ctx      context.Context //nolint:containedctx // runs outlive the slot callback
	cancel   context.CancelFunc
}

// New creates a scheduler for the enabled cadences of cfg.
func New(
	log logrus.FieldLogger,
	runner Runner,
	elector leader.Elector,
	cfg config.ScheduleConfig,
	loc *time.Location,
) *Scheduler {
	s := &Scheduler{
		log:      log.WithField("service", "schedule"),
		runner:   runner,
		elector:  elector,
		loc:      loc,
		cadences: make(map[granularity.Mode]*cadence, 2),
	}

	for mode, c := range map[granularity.Mode]config.CadenceConfig{
		granularity.Hourly: cfg.Hourly,
		granularity.Daily:  cfg.Daily,
	} {
		if c.Enabled {
			s.cadences[mode] = &cadence{mode: mode, cfg: c}
		}
	}

	return s
}

// Genesis returns the start of the first period of c in loc.
func Genesis(c config.CadenceConfig, loc *time.Location) time.Time {
	return time.Date(anchorDate.Year(), anchorDate.Month(), anchorDate.Day(), 0, 0, 0, 0, loc).Add(c.Offset)
}

// Start creates the wallclocks and registers the period callbacks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	for mode, c := range s.cadences {
		periodsPerDay := uint64(24 * time.Hour / c.cfg.Interval)
		if periodsPerDay == 0 {
			periodsPerDay = 1
		}

		c.clock = ethwallclock.NewEthereumBeaconChain(Genesis(c.cfg, s.loc), c.cfg.Interval, periodsPerDay)

		c.clock.OnSlotChanged(func(slot ethwallclock.Slot) {
			s.log.WithFields(logrus.Fields{
				"scrap_type": mode,
				"period":     slot.Number(),
				"start":      slot.TimeWindow().Start().In(s.loc).Format(time.DateTime),
			}).Debug("Schedule period started")

			s.Trigger(mode)
		})

		s.log.WithFields(logrus.Fields{
			"scrap_type": mode,
			"interval":   c.cfg.Interval.String(),
			"offset":     c.cfg.Offset.String(),
		}).Info("Scheduled pipeline runs")
	}

	return nil
}

// Stop stops the wallclocks and waits for in-flight runs to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()

	for _, c := range s.cadences {
		if c.clock != nil {
			c.clock.Stop()
		}
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("Scheduler stopped")

	return nil
}

// Name returns the service name.
func (s *Scheduler) Name() string {
	return "schedule"
}

// Next returns when the next run of mode is due, or false when mode is not scheduled.
func (s *Scheduler) Next(mode granularity.Mode) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cadences[mode]
	if !ok || c.clock == nil {
		return time.Time{}, false
	}

	return s.next(c), true
}

// Trigger starts a run of mode in the background. It reports whether a run
// was started: followers and granularities that are already running skip.
func (s *Scheduler) Trigger(mode granularity.Mode) bool {
	log := s.log.WithField("scrap_type", mode)

	c, ok := s.cadences[mode]
	if !ok {
		log.Warn("Granularity is not scheduled")

		return false
	}

	if !s.elector.IsLeader() {
		log.Debug("Not the leader, skipping scheduled run")

		return false
	}

	if !c.busy.CompareAndSwap(false, true) {
		log.Warn("Previous run still in progress, skipping scheduled run")

		return false
	}

	// Add under mu so a concurrent Stop either sees this run in its Wait
	// or has already cancelled ctx.
	s.mu.Lock()
	ctx := s.ctx

	if ctx == nil || ctx.Err() != nil {
		s.mu.Unlock()
		c.busy.Store(false)

		return false
	}

	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer c.busy.Store(false)

		if err := s.runner.Run(ctx, mode); err != nil {
			if errors.Is(err, runlock.ErrLocked) {
				log.Warn("Run lock held elsewhere, skipping scheduled run")

				return
			}

			log.WithError(err).Error("Scheduled run failed")
		}
	}()

	return true
}

func (s *Scheduler) next(c *cadence) time.Time {
	slot, _, err := c.clock.Now()
	if err != nil {
		return Genesis(c.cfg, s.loc)
	}

	return slot.TimeWindow().End().In(s.loc)
}

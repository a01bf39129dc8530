// Package leader elects a single scheduler instance through a Redis lock so
// that only one worker triggers pipeline runs.
package leader

//go:generate mockgen -package mocks -destination mocks/mock_elector.go github.com/ethpandaops/smart-pricing/internal/leader Elector

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/config"
	"github.com/ethpandaops/smart-pricing/internal/redis"
)

// Compile-time interface compliance check.
var _ Elector = (*elector)(nil)

// Elector manages leader election using Redis SETNX.
type Elector interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	ID() string
}

type elector struct {
	log            logrus.FieldLogger
	cfg            config.LeaderConfig
	redis          redis.Client
	id             string
	isLeader       bool
	loggedFollower bool
	mu             sync.RWMutex
	done           chan struct{}
	wg             sync.WaitGroup
}

// NewElector creates a new leader elector with a random instance id.
func NewElector(log logrus.FieldLogger, cfg config.LeaderConfig, redisClient redis.Client) Elector {
	return &elector{
		log:   log.WithField("component", "leader"),
		cfg:   cfg,
		redis: redisClient,
		id:    uuid.New().String(),
		done:  make(chan struct{}),
	}
}

// Start begins the election loop in the background.
func (e *elector) Start(ctx context.Context) error {
	e.log.WithField("instance_id", e.id).Info("Starting leader election")

	e.wg.Add(1)

	go e.electionLoop(ctx)

	return nil
}

// Stop ends the election loop and releases the lock if held.
func (e *elector) Stop() error {
	e.log.Info("Stopping leader election")
	close(e.done)
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isLeader {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := e.redis.CompareAndDelete(ctx, e.cfg.LockKey, e.id); err != nil {
			e.log.WithError(err).Warn("Failed to release leadership lock")
		}

		e.isLeader = false
	}

	return nil
}

// IsLeader returns true if this instance is the current leader.
func (e *elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.isLeader
}

// ID returns the instance id written to the lock.
func (e *elector) ID() string {
	return e.id
}

func (e *elector) electionLoop(ctx context.Context) {
	defer e.wg.Done()

	e.tryAcquireLeadership(ctx)

	renewTicker := time.NewTicker(e.cfg.RenewInterval)
	defer renewTicker.Stop()

	retryTicker := time.NewTicker(e.cfg.RetryInterval)
	defer retryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-renewTicker.C:
			if e.IsLeader() {
				e.renewLeadership(ctx)
			}
		case <-retryTicker.C:
			if !e.IsLeader() {
				e.tryAcquireLeadership(ctx)
			}
		}
	}
}

func (e *elector) tryAcquireLeadership(ctx context.Context) {
	acquired, err := e.redis.SetNX(ctx, e.cfg.LockKey, e.id, e.cfg.LockTTL)
	if err != nil {
		e.log.WithError(err).Warn("Failed to acquire leadership lock")

		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if acquired {
		e.isLeader = true
		e.loggedFollower = false

		e.log.WithField("instance_id", e.id).Info("Acquired leadership")

		return
	}

	if !e.loggedFollower {
		e.loggedFollower = true

		currentLeader, _ := e.redis.Get(ctx, e.cfg.LockKey)
		e.log.WithFields(logrus.Fields{
			"instance_id": e.id,
			"leader_id":   currentLeader,
		}).Info("Running as follower")
	}
}

// renewLeadership extends the lock TTL atomically while this instance still
// owns it.
func (e *elector) renewLeadership(ctx context.Context) {
	renewed, err := e.redis.CompareAndExpire(ctx, e.cfg.LockKey, e.id, e.cfg.LockTTL)

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case err != nil:
		e.log.WithError(err).Warn("Failed to renew leadership lock, stepping down")
		e.isLeader = false
	case !renewed:
		e.log.Warn("Lost leadership to another instance")
		e.isLeader = false
	default:
		e.log.Debug("Renewed leadership lock")
	}
}

// Package runstatus publishes the state of the latest pipeline run per
// granularity to Redis.
package runstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/redis"
)

const keyPrefix = "smart-pricing:status:"

// Run states.
const (
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// ErrNotFound is returned when no run has been recorded for a mode.
var ErrNotFound = errors.New("no run recorded")

// Status is the last known state of a run.
type Status struct {
	ScrapType  string     `json:"scrap_type"`
	RunID      string     `json:"run_id"`
	State      string     `json:"state"`
	Attempt    int        `json:"attempt"`
	Stage      string     `json:"stage,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Store reads and writes run statuses.
type Store struct {
	redis redis.Client
}

// NewStore creates a status store.
func NewStore(redisClient redis.Client) *Store {
	return &Store{redis: redisClient}
}

// Put records s under its scrap type.
func (s *Store) Put(ctx context.Context, status Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	if err := s.redis.Set(ctx, keyPrefix+status.ScrapType, string(data), 0); err != nil {
		return fmt.Errorf("store status: %w", err)
	}

	return nil
}

// Get returns the last status recorded for mode.
func (s *Store) Get(ctx context.Context, mode granularity.Mode) (Status, error) {
	data, err := s.redis.Get(ctx, keyPrefix+mode.String())
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return Status{}, fmt.Errorf("%w: scrap_type %s", ErrNotFound, mode)
		}

		return Status{}, fmt.Errorf("load status: %w", err)
	}

	var status Status
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}

	return status, nil
}

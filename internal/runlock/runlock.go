// Package runlock guarantees at most one pipeline run per granularity across
// all worker processes.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/redis"
)

const keyPrefix = "smart-pricing:run-lock:"

// ErrLocked is returned when another run of the same mode holds the lock.
var ErrLocked = errors.New("run already in progress")

// Locker hands out per-mode run locks.
type Locker struct {
	redis redis.Client
	ttl   time.Duration
}

// Lock is a held run lock. Its TTL is renewed in the background until
// Release, so a slow run keeps the lock for as long as it lasts.
type Lock struct {
	redis redis.Client
	key   string
	token string
	ttl   time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a locker. ttl bounds how long a crashed holder blocks new runs.
func New(redisClient redis.Client, ttl time.Duration) *Locker {
	return &Locker{redis: redisClient, ttl: ttl}
}

// Acquire takes the lock for mode or returns ErrLocked.
func (l *Locker) Acquire(ctx context.Context, mode granularity.Mode) (*Lock, error) {
	lock := &Lock{
		redis: l.redis,
		key:   Key(mode),
		token: uuid.NewString(),
		ttl:   l.ttl,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	ok, err := l.redis.SetNX(ctx, lock.key, lock.token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: scrap_type %s", ErrLocked, mode)
	}

	go lock.keepAlive()

	return lock, nil
}

// keepAlive extends the TTL every third of it while this holder still owns
// the key. It gives up once the key belongs to someone else.
func (l *Lock) keepAlive() {
	defer close(l.done)

	interval := l.ttl / 3
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			renewed, err := l.redis.CompareAndExpire(ctx, l.key, l.token, l.ttl)
			cancel()

			if err == nil && !renewed {
				return
			}
		}
	}
}

// Release stops renewal and frees the lock if it is still held by this
// holder.
func (l *Lock) Release(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done

	if _, err := l.redis.CompareAndDelete(ctx, l.key, l.token); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}

	return nil
}

// Key returns the Redis key of the lock for mode.
func Key(mode granularity.Mode) string {
	return keyPrefix + mode.String()
}

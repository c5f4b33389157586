package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"leasemarket/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverResourceLocker uses the primary locker and switches to the
// fallback while the primary is failing. ErrLocked is not a failure.
type FailoverResourceLocker struct {
	primary   domain.ResourceLocker
	fallback  domain.ResourceLocker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
	retryIn   time.Duration
}

func NewFailoverResourceLocker(primary, fallback domain.ResourceLocker, logger *zerolog.Logger) *FailoverResourceLocker {
	return &FailoverResourceLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		retryIn:  time.Minute,
	}
}

func (l *FailoverResourceLocker) Acquire(ctx context.Context, resourceID int64, ttl time.Duration) (func(context.Context) error, error) {
	if !l.isDown.Load() || l.shouldRetry() {
		release, err := l.primary.Acquire(ctx, resourceID, ttl)
		if err == nil || errors.Is(err, domain.ErrLocked) {
			if l.isDown.Swap(false) {
				l.logger.Info().Msg("Primary resource locker recovered")
			}
			return release, err
		}
		l.logger.Error().Err(err).Int64("resource_id", resourceID).Msg("Primary resource locker failed, falling back to memory")
		l.markDown()
	}

	return l.fallback.Acquire(ctx, resourceID, ttl)
}

func (l *FailoverResourceLocker) markDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.isDown.Store(true)
	l.lastCheck = time.Now()
}

// shouldRetry lets one call probe the primary again once retryIn has passed.
func (l *FailoverResourceLocker) shouldRetry() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastCheck) <= l.retryIn {
		return false
	}
	l.lastCheck = time.Now()
	return true
}

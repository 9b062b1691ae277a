package repos

import (
	"context"
	"math"
	"math/rand"
	"time"

	"gorm.io/gorm"

	errs "github.com/mvasquez-dev/photoloom-backend/internal/pkg/errors"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

// RetryPolicy bounds how long a repo write keeps absorbing write-lock
// contention before giving up. Other concurrent writers (the API server,
// sibling workers) share a single-writer storage engine, so contention is
// expected under load, not exceptional.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	JitterFrac  float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		MinBackoff:  20 * time.Millisecond,
		MaxBackoff:  1 * time.Second,
		JitterFrac:  0.20,
	}
}

func computeBackoff(p RetryPolicy, attempt int) time.Duration {
	minB := p.MinBackoff
	maxB := p.MaxBackoff
	j := p.JitterFrac
	if minB <= 0 {
		minB = 20 * time.Millisecond
	}
	if maxB <= 0 {
		maxB = 1 * time.Second
	}
	if j <= 0 {
		j = 0.20
	}
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(minB) * math.Pow(2, float64(attempt-1)))
	if d > maxB {
		d = maxB
	}
	delta := float64(d) * j
	low := float64(d) - delta
	high := float64(d) + delta
	if low < 0 {
		low = 0
	}
	return time.Duration(low + rand.Float64()*(high-low))
}

// withRetry runs fn until it succeeds, fails with a non-contention error, or
// exhausts the policy. Only lock contention is retried; every other error is
// returned as-is on the first attempt.
func withRetry(ctx context.Context, log *logger.Logger, op string, p RetryPolicy, fn func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errs.IsLockContention(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		backoff := computeBackoff(p, attempt)
		if log != nil {
			log.Debug("storage contention, backing off",
				"op", op,
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return &errs.RetryExhaustedError{Operation: op, Attempts: maxAttempts, Cause: lastErr}
}

// transact runs fn in the caller's transaction when one is supplied,
// otherwise opens a fresh one and commits or rolls back before returning.
// Retry applies only to transactions this repo owns; a caller-held
// transaction retries as a whole or not at all.
func transact(ctx context.Context, db *gorm.DB, tx *gorm.DB, log *logger.Logger, op string, p RetryPolicy, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return withRetry(ctx, log, op, p, func() error {
		return db.WithContext(ctx).Transaction(fn)
	})
}

// entityExists guards dependent writes: any row referencing an entity checks
// the entity inside the same unit of work before writing.
func entityExists(tx *gorm.DB, entityID int64) (bool, error) {
	var n int64
	if err := tx.Model(&types.Entity{}).Where("id = ?", entityID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// internal/database/retry.go - bounded retry for SQLite lock contention
package database

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	maxRetryAttempts = 15
	retryBaseDelay   = 20 * time.Millisecond
)

// isLockError classifies transient SQLite contention errors. Anything else
// (constraint, syntax, schema) must fail fast.
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked")
}

// withRetry runs fn, retrying lock-type errors with exponential backoff plus
// jitter: base * 2^attempt * (0.5 + random(0, 0.5)). Non-lock errors return
// immediately; exhausting the cap returns the last error.
func withRetry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isLockError(err) {
			return err
		}

		delay := backoffDelay(base, attempt)
		logrus.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay":   delay,
		}).Debug("Database locked, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	// Cap the shift so the delay cannot overflow on high attempt counts.
	if attempt > 10 {
		attempt = 10
	}
	delay := float64(base) * float64(int64(1)<<uint(attempt))
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(delay * jitter)
}

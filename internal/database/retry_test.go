// internal/database/retry_test.go
package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsLockError(t *testing.T) {
	assert.False(t, isLockError(nil))
	assert.False(t, isLockError(errors.New("UNIQUE constraint failed: devices.ip")))
	assert.True(t, isLockError(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, isLockError(errors.New("database table is locked")))
	assert.True(t, isLockError(errors.New("SQLITE_LOCKED: cannot start a transaction")))
}

func TestWithRetryExhaustsCap(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), maxRetryAttempts, time.Microsecond, func() error {
		calls++
		return errors.New("database is locked")
	})

	assert.Error(t, err)
	assert.Equal(t, maxRetryAttempts, calls)
}

func TestWithRetryFailsFastOnNonLockError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), maxRetryAttempts, time.Microsecond, func() error {
		calls++
		return errors.New("no such table: devices")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRecoversFromContention(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), maxRetryAttempts, time.Microsecond, func() error {
		calls++
		if calls < 4 {
			return errors.New("database is locked")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, maxRetryAttempts, time.Hour, func() error {
		return errors.New("database is locked")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelayBoundsAndGrowth(t *testing.T) {
	base := 20 * time.Millisecond

	// Each attempt's delay is base * 2^attempt scaled by jitter in [0.5, 1).
	for attempt := 0; attempt < 8; attempt++ {
		expected := base << uint(attempt)
		for i := 0; i < 20; i++ {
			delay := backoffDelay(base, attempt)
			assert.GreaterOrEqual(t, delay, expected/2, "attempt %d", attempt)
			assert.Less(t, delay, expected, "attempt %d", attempt)
		}
	}

	// The jitter windows do not overlap two attempts apart, so growth is
	// strict even in the worst case.
	assert.Greater(t, backoffDelay(base, 4), backoffDelay(base, 2))

	// The shift is capped: very high attempt counts must not overflow.
	assert.GreaterOrEqual(t, backoffDelay(base, 10000), base<<9)
	assert.Less(t, backoffDelay(base, 10000), base<<10)
}

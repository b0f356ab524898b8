package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmatrace/trace-engine/pkg/logging"
)

var errBackend = errors.New("backend down")

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("registry")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	cb := NewCircuitBreaker(cfg, logging.NewNop(), nil)

	fail := func() (interface{}, error) { return nil, errBackend }
	for i := 0; i < 2; i++ {
		_, err := cb.Execute(context.Background(), fail)
		assert.ErrorIs(t, err, errBackend)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Execute(context.Background(), func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_PassesResult(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("ok"), logging.NewNop(), nil)
	v, err := cb.Execute(context.Background(), func() (interface{}, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, "ok", cb.Name())
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("ctx"), logging.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := cb.Execute(ctx, func() (interface{}, error) { called = true; return nil, nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRetry(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), cfg, func(context.Context) error {
			calls++
			if calls < 3 {
				return errBackend
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), cfg, func(context.Context) error { calls++; return errBackend })
		assert.ErrorIs(t, err, errBackend)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable", func(t *testing.T) {
		c := *cfg
		c.Retryable = func(err error) bool { return !errors.Is(err, errBackend) }
		calls := 0
		err := Retry(context.Background(), &c, func(context.Context) error { calls++; return errBackend })
		assert.ErrorIs(t, err, errBackend)
		assert.Equal(t, 1, calls)
	})
}

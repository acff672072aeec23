package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	t.Run("respects max retries", func(t *testing.T) {
		eb := NewExponentialBackoff(time.Millisecond, time.Second, 2.0, 3)

		for i := 0; i < 3; i++ {
			retry, delay := eb.ShouldRetry(i, errors.New("boom"))
			assert.True(t, retry)
			assert.Greater(t, delay, time.Duration(0))
		}

		retry, delay := eb.ShouldRetry(3, errors.New("boom"))
		assert.False(t, retry)
		assert.Zero(t, delay)
	})

	t.Run("delay grows and is capped", func(t *testing.T) {
		eb := NewExponentialBackoff(100*time.Millisecond, time.Second, 2.0, 10)

		tests := []struct {
			attempt  int
			expected time.Duration
		}{
			{0, 100 * time.Millisecond},
			{1, 200 * time.Millisecond},
			{2, 400 * time.Millisecond},
			{3, 800 * time.Millisecond},
			{4, time.Second},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.expected, eb.NextDelay(tt.attempt))
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		eb := NewExponentialBackoff(time.Millisecond, time.Second, 2.0, 3)
		retry, _ := eb.ShouldRetry(0, Permanent(errors.New("bad input")))
		assert.False(t, retry)
	})
}

func TestFixedDelay(t *testing.T) {
	fd := NewFixedDelay(5*time.Millisecond, 2)

	retry, delay := fd.ShouldRetry(1, errors.New("boom"))
	assert.True(t, retry)
	assert.Equal(t, 5*time.Millisecond, delay)

	retry, _ = fd.ShouldRetry(2, errors.New("boom"))
	assert.False(t, retry)
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(0, 3), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns the last error unchanged", func(t *testing.T) {
		last := errors.New("still failing")
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(0, 2), func() error {
			calls++
			return last
		})

		assert.Same(t, last, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(0, 5), func() error {
			calls++
			return Permanent(errors.New("bad input"))
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("honors cancellation while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Retry(ctx, NewFixedDelay(time.Hour, 5), func() error {
			calls++
			cancel()
			return errors.New("transient")
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

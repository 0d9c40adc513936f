package embedder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   4 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	result, err := retryWithBackoff(context.Background(), fastRetryConfig(), func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	attempts := 0
	_, err := retryWithBackoff(context.Background(), fastRetryConfig(), func() (int, error) {
		attempts++
		return 0, errors.New("down")
	})
	require.EqualError(t, err, "down")
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := retryWithBackoff(ctx, fastRetryConfig(), func() (int, error) {
		attempts++
		return 0, errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "no further attempts after cancellation")
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errUnavailable = errors.New("503 service unavailable")
	errBadRequest  = errors.New("400 bad request")
)

func testPolicy(slept *[]time.Duration) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		IsTransient: func(err error) bool { return errors.Is(err, errUnavailable) },
		Sleep: func(ctx context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	for k := 0; k < 3; k++ {
		var slept []time.Duration
		calls := 0
		got, err := Do(context.Background(), testPolicy(&slept), func(ctx context.Context, attempt int) (string, error) {
			calls++
			if calls <= k {
				return "", errUnavailable
			}
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, k+1, calls)
		assert.Len(t, slept, k)
	}
}

func TestDo_AlwaysTransientExhausts(t *testing.T) {
	var slept []time.Duration
	calls := 0
	_, err := Do(context.Background(), testPolicy(&slept), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errUnavailable
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, errUnavailable)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)

	// 只在两次尝试之间等待, 最后一次之后不再等待
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestDo_NonTransientReturnsImmediately(t *testing.T) {
	var slept []time.Duration
	calls := 0
	_, err := Do(context.Background(), testPolicy(&slept), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errBadRequest
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, errBadRequest, err)
	assert.Empty(t, slept)
}

func TestDo_NonTransientAfterTransient(t *testing.T) {
	var slept []time.Duration
	calls := 0
	_, err := Do(context.Background(), testPolicy(&slept), func(ctx context.Context, attempt int) (int, error) {
		calls++
		if attempt == 1 {
			return 0, errUnavailable
		}
		return 0, errBadRequest
	})

	assert.Equal(t, 2, calls)
	assert.Same(t, errBadRequest, err)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Hour,
		IsTransient: func(error) bool { return true },
	}

	calls := 0
	_, err := Do(ctx, p, func(ctx context.Context, attempt int) (int, error) {
		calls++
		cancel()
		return 0, errUnavailable
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{BaseDelay: time.Second}
	assert.Equal(t, time.Duration(0), p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
	assert.Equal(t, 4*time.Second, p.Delay(4))
}

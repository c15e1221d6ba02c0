package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/collectorflow/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func fastPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
	}
}

func TestBackoffRetryer_SuccessFirstTry(t *testing.T) {
	t.Parallel()

	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())
	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestBackoffRetryer_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())
	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return types.NewError(types.ErrTransport, "flaky")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestBackoffRetryer_ExhaustsBudget(t *testing.T) {
	t.Parallel()

	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())
	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return types.NewError(types.ErrTransport, "always down")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, callCount)
}

func TestBackoffRetryer_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()

	for _, code := range []types.ErrorCode{
		types.ErrConfigurationMissing, types.ErrAuthentication,
		types.ErrInvalidInput, types.ErrPayloadTooLarge, types.ErrCircuitOpen,
	} {
		retryer := NewBackoffRetryer(fastPolicy(5), zap.NewNop())
		callCount := 0
		err := retryer.Do(context.Background(), func() error {
			callCount++
			return types.NewError(code, "fatal")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, callCount, "code %s must not be retried", code)
	}
}

func TestBackoffRetryer_ContextCancelDuringDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	retryer := NewBackoffRetryer(&RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Hour, // 永远等不完的延迟
		MaxDelay:   time.Hour,
	}, zap.NewNop())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := retryer.Do(ctx, func() error {
		return types.NewError(types.ErrTransport, "fail once")
	})
	assert.Error(t, err)
	assert.Equal(t, types.ErrTimeout, types.GetErrorCode(err))
}

func TestBackoffRetryer_OnRetryCallback(t *testing.T) {
	t.Parallel()

	var attempts []int
	policy := fastPolicy(3)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}
	retryer := NewBackoffRetryer(policy, zap.NewNop())
	_ = retryer.Do(context.Background(), func() error {
		return types.NewError(types.ErrTransport, "down")
	})
	assert.Equal(t, []int{2, 3}, attempts)
}

func TestDoWithResultTyped(t *testing.T) {
	t.Parallel()

	retryer := NewBackoffRetryer(fastPolicy(2), zap.NewNop())
	got, err := DoWithResultTyped[int](retryer, context.Background(), func() (int, error) {
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = DoWithResultTyped[int](retryer, context.Background(), func() (int, error) {
		return 0, errors.New("boom")
	})
	assert.Error(t, err)
}

// 退避定律：第 k 次重试延迟落在 [base*2^(k-1), 1.3*base*2^(k-1)] 内
func TestProperty_BackoffLaw(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("delay within jitter band", prop.ForAll(
		func(baseMs int, k int) bool {
			base := time.Duration(baseMs) * time.Millisecond
			delay := ComputeDelay(base, k)

			lower := time.Duration(float64(base) * float64(int64(1)<<uint(k-1)))
			upper := time.Duration(1.3 * float64(lower))
			return delay >= lower && delay <= upper
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

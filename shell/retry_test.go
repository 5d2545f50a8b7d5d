package shell_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/shell"
	. "github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/helper"
)

func lockTimeout() error {
	return errors.Join(lending.ErrStoreUnavailable, lending.ErrConcurrencyConflict, errors.New("55P03"))
}

func Test_Retry_SucceedsWithoutRetries(t *testing.T) {
	calls := 0

	meta, err := shell.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, shell.RetryMetrics{Attempts: 1, LastErrorType: "none"}, meta)
}

func Test_Retry_RetriesConcurrencyConflicts(t *testing.T) {
	// setup
	metricsSpy := NewMetricsCollectorSpy()
	calls := 0

	// act
	meta, err := shell.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return lockTimeout()
		}

		return nil
	}, shell.WithBaseDelay(time.Millisecond), shell.WithMetrics(metricsSpy, "lend"))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, meta.Attempts)
	assert.GreaterOrEqual(t, meta.TotalDelay, 3*time.Millisecond)
	assert.Equal(t, "none", meta.LastErrorType)
	assert.Equal(t, 2, metricsSpy.HasCounterRecordForMetric(shell.RetriesMetric).WithOperation("lend").
		WithErrorType("concurrency_conflict").Count())
	assert.Equal(t, 2, metricsSpy.HasDurationRecordForMetric(shell.RetryDelayMetric).WithOperation("lend").Count())
	assert.False(t, metricsSpy.HasCounterRecordForMetric(shell.MaxRetriesReachedMetric).Assert())
}

func Test_Retry_FailsFastOnDomainErrors(t *testing.T) {
	for _, domainErr := range []error{
		lending.ErrOutOfStock,
		lending.ErrAlreadyReturned,
		lending.ErrBookNotFound,
		lending.Invalidf("durationDays must be positive"),
		errors.Join(lending.ErrStoreUnavailable, errors.New("connection refused")),
		context.DeadlineExceeded,
	} {
		calls := 0

		meta, err := shell.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
			calls++
			return domainErr
		})

		assert.ErrorIs(t, err, domainErr)
		assert.Equal(t, 1, calls, domainErr.Error())
		assert.Equal(t, lending.ErrorType(domainErr), meta.LastErrorType)
	}
}

func Test_Retry_GivesUpAfterMaxAttempts(t *testing.T) {
	// setup
	metricsSpy := NewMetricsCollectorSpy()
	calls := 0

	// act
	meta, err := shell.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return lockTimeout()
	},
		shell.WithMaxAttempts(3),
		shell.WithBaseDelay(time.Millisecond),
		shell.WithJitterFactor(0),
		shell.WithMetrics(metricsSpy, "return"),
	)

	// assert
	assert.ErrorIs(t, err, lending.ErrConcurrencyConflict)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3*time.Millisecond, meta.TotalDelay)
	assert.Equal(t, "concurrency_conflict", meta.LastErrorType)
	assert.Equal(t, 2, metricsSpy.HasCounterRecordForMetric(shell.RetriesMetric).Count())
	assert.True(t, metricsSpy.HasCounterRecordForMetric(shell.MaxRetriesReachedMetric).
		WithOperation("return").
		WithLabel("final_error_type", "concurrency_conflict").
		Assert())
}

func Test_Retry_StopsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	meta, err := shell.RetryWithExponentialBackoff(ctx, func(context.Context) error {
		calls++
		cancel()

		return lockTimeout()
	}, shell.WithBaseDelay(time.Second))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "context_canceled", meta.LastErrorType)
}

func Test_Retry_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	fn := func(context.Context) error { return nil }

	_, err := shell.RetryWithExponentialBackoff(ctx, fn, shell.WithMaxAttempts(0))
	assert.ErrorIs(t, err, shell.ErrInvalidMaxAttempts)

	_, err = shell.RetryWithExponentialBackoff(ctx, fn, shell.WithBaseDelay(-time.Second))
	assert.ErrorIs(t, err, shell.ErrNegativeBaseDelay)

	_, err = shell.RetryWithExponentialBackoff(ctx, fn, shell.WithJitterFactor(1.5))
	assert.ErrorIs(t, err, shell.ErrInvalidJitterFactor)

	_, err = shell.RetryWithExponentialBackoff(ctx, fn, shell.WithMetrics(nil, "lend"))
	assert.ErrorIs(t, err, shell.ErrNilMetricsCollector)

	_, err = shell.RetryWithExponentialBackoff(ctx, fn, shell.WithMetrics(NewMetricsCollectorSpy(), ""))
	assert.ErrorIs(t, err, shell.ErrEmptyOperation)
}

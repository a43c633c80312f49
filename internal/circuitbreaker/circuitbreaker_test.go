package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annmariya27/ctg-pro/internal/config"
)

var errDown = errors.New("service down")

func newTestBreaker(failures, successes int, recovery time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := New("predict", failures, successes, recovery, nil)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestExecute_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 1, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
		assert.Equal(t, StateClosed, cb.State(), "should stay closed after %d failures", i+1)
	}

	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestExecute_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2, 1, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, succeed))
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_CancellationIsNotAFailure(t *testing.T) {
	cb, _ := newTestBreaker(1, 1, time.Minute)

	err := cb.Execute(context.Background(), func(context.Context) error {
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_FailureFilter(t *testing.T) {
	ignored := errors.New("bad input")
	cb := New("predict", 1, 1, time.Minute, nil, WithFailureFilter(func(err error) bool {
		return !errors.Is(err, ignored)
	}))

	_ = cb.Execute(context.Background(), func(context.Context) error { return ignored })
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker(1, 2, 30*time.Second)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	assert.Equal(t, 30*time.Second, cb.RetryAfter())

	*now = now.Add(10 * time.Second)
	assert.Equal(t, 20*time.Second, cb.RetryAfter())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)

	*now = now.Add(21 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.Zero(t, cb.RetryAfter())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenAdmitsOneTrial(t *testing.T) {
	cb, now := newTestBreaker(1, 1, time.Second)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	*now = now.Add(2 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(1, 1, time.Second)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	*now = now.Add(2 * time.Second)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, time.Second, cb.RetryAfter())
}

func TestNewFromConfig(t *testing.T) {
	cb := NewFromConfig("predict", &config.Config{
		CBFailureThreshold: 2,
		CBSuccessThreshold: 1,
		CBRecoveryTimeout:  time.Minute,
	}, nil)

	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_ForceAndStatus(t *testing.T) {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "cb_state_test"}, []string{"service"})
	cb := New("predict", 5, 1, time.Hour, gauge)

	cb.ForceOpen()
	status := cb.GetStatus()
	assert.Equal(t, "OPEN", status.State)
	assert.Equal(t, "predict", status.Name)
	assert.InDelta(t, time.Hour.Seconds(), status.RetryAfterSeconds, 1)
	assert.Equal(t, float64(StateOpen), testutil.ToFloat64(gauge.WithLabelValues("predict")))

	cb.ForceClose()
	status = cb.GetStatus()
	assert.Equal(t, "CLOSED", status.State)
	assert.Zero(t, status.RetryAfterSeconds)
	assert.Equal(t, float64(StateClosed), testutil.ToFloat64(gauge.WithLabelValues("predict")))
}

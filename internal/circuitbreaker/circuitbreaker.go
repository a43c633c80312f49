// Package circuitbreaker guards calls to the prediction service.
//
//   - CLOSED: calls pass through; consecutive failures are counted
//   - OPEN: calls are rejected with ErrOpen until the recovery timeout passes
//   - HALF_OPEN: one trial call at a time decides whether to close again
//
// A rejected call is never retried here.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Annmariya27/ctg-pro/internal/config"
	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

// ErrOpen is returned by Execute when the call was not attempted.
var ErrOpen = errors.New("circuit breaker open")

// State represents the circuit breaker state.
type State int

const (
	// StateClosed is normal operation
	StateClosed State = 0
	// StateOpen is rejecting all requests
	StateOpen State = 1
	// StateHalfOpen is letting a trial call through
	StateHalfOpen State = 2
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker guards a single downstream service.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	successThreshold int
	isFailure        func(error) bool

	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	trialRunning bool
	openedAt     time.Time
	lastFailure  time.Time
	now          func() time.Time

	stateGauge *prometheus.GaugeVec
}

// Option customises a breaker.
type Option func(*CircuitBreaker)

// WithFailureFilter sets which call errors count against the service.
// By default every error except caller cancellation does.
func WithFailureFilter(f func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.isFailure = f }
}

// New creates a closed breaker. stateGauge may be nil.
func New(name string, failureThreshold, successThreshold int, recoveryTimeout time.Duration, stateGauge *prometheus.GaugeVec, opts ...Option) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if successThreshold < 1 {
		successThreshold = 1
	}

	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
		isFailure:        countsAgainstService,
		state:            StateClosed,
		now:              time.Now,
		stateGauge:       stateGauge,
	}
	for _, opt := range opts {
		opt(cb)
	}
	cb.setGauge()
	return cb
}

// NewFromConfig creates a breaker from the CB_* settings.
func NewFromConfig(name string, cfg *config.Config, stateGauge *prometheus.GaugeVec, opts ...Option) *CircuitBreaker {
	return New(name, cfg.CBFailureThreshold, cfg.CBSuccessThreshold, cfg.CBRecoveryTimeout, stateGauge, opts...)
}

func countsAgainstService(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Name returns the guarded service name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn unless the breaker is open, and records its outcome.
// It returns ErrOpen without calling fn while open, or while a half-open
// trial call is already running.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}

	callErr := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if trial {
		cb.trialRunning = false
	}
	switch {
	case callErr == nil:
		cb.onSuccess()
	case cb.isFailure(callErr):
		cb.onFailure()
	}
	return callErr
}

func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.checkRecovery()
	switch cb.state {
	case StateOpen:
		return false, ErrOpen
	case StateHalfOpen:
		if cb.trialRunning {
			return false, ErrOpen
		}
		cb.trialRunning = true
		return true, nil
	default:
		return false, nil
	}
}

// RecordSuccess records a successful call made outside Execute.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.checkRecovery()
	cb.onSuccess()
}

// RecordFailure records a failed call made outside Execute.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.checkRecovery()
	cb.onFailure()
}

// Must be called with lock held.
func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.transitionTo(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
	}
}

// Must be called with lock held.
func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailure = cb.now()

	switch cb.state {
	case StateHalfOpen:
		cb.transitionTo(StateOpen)
	case StateClosed:
		if cb.failures >= cb.failureThreshold {
			cb.transitionTo(StateOpen)
		}
	}
}

// checkRecovery moves OPEN to HALF_OPEN once the recovery timeout elapsed.
// Must be called with lock held.
func (cb *CircuitBreaker) checkRecovery() {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.recoveryTimeout {
		cb.transitionTo(StateHalfOpen)
	}
}

// Must be called with lock held.
func (cb *CircuitBreaker) transitionTo(newState State) {
	cb.state = newState
	switch newState {
	case StateClosed:
		cb.failures = 0
	case StateOpen:
		cb.openedAt = cb.now()
	case StateHalfOpen:
		cb.successes = 0
		cb.trialRunning = false
	}
	cb.setGauge()
}

func (cb *CircuitBreaker) setGauge() {
	if cb.stateGauge != nil {
		cb.stateGauge.WithLabelValues(cb.name).Set(float64(cb.state))
	}
}

// RetryAfter is how long until an open breaker admits a trial call.
// It is zero unless the breaker is open.
func (cb *CircuitBreaker) RetryAfter() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.checkRecovery()
	if cb.state != StateOpen {
		return 0
	}
	return cb.recoveryTimeout - cb.now().Sub(cb.openedAt)
}

// ForceClose forces the circuit to close.
func (cb *CircuitBreaker) ForceClose() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(StateClosed)
}

// ForceOpen forces the circuit to open.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(StateOpen)
}

// GetStatus reports the breaker for the readiness endpoint.
func (cb *CircuitBreaker) GetStatus() ctg.CircuitBreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.checkRecovery()

	status := ctg.CircuitBreakerStatus{
		Name:         cb.name,
		State:        cb.state.String(),
		FailureCount: cb.failures,
		SuccessCount: cb.successes,
	}
	if !cb.lastFailure.IsZero() {
		status.LastFailureTime = float64(cb.lastFailure.Unix())
	}
	if cb.state == StateOpen {
		status.RetryAfterSeconds = (cb.recoveryTimeout - cb.now().Sub(cb.openedAt)).Seconds()
	}
	return status
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.checkRecovery()

	return cb.state
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voyago/voyago-travel-assistant/pkg/logging"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// StateClosed - circuit is closed, requests are allowed
	StateClosed CircuitState = iota
	// StateOpen - circuit is open, requests are rejected
	StateOpen
	// StateHalfOpen - circuit is half-open, limited probe requests are allowed
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// Counts holds the numbers of requests and their successes/failures within
// the current breaker generation
type Counts struct {
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

// BreakerConfig holds configuration for a circuit breaker
type BreakerConfig struct {
	// Name of the breaker, normally the provider service it protects
	Name string
	// FailureThreshold is the minimum number of requests in the current
	// generation before the breaker can trip
	FailureThreshold uint32
	// FailureRate is the share of failed requests that trips the breaker
	FailureRate float64
	// OpenTimeout is how long the breaker stays open before probing recovery
	OpenTimeout time.Duration
	// HalfOpenProbes is the number of requests allowed through while half-open
	HalfOpenProbes uint32
	// Interval is the cyclic period after which the closed-state counts are
	// cleared; zero keeps counts for the lifetime of the closed state
	Interval time.Duration
	// OnStateChange is called whenever the breaker changes state
	OnStateChange func(name string, from, to CircuitState)
}

func (c *BreakerConfig) applyDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.FailureRate <= 0 || c.FailureRate > 1 {
		c.FailureRate = 0.6
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenProbes == 0 {
		c.HalfOpenProbes = 3
	}
}

// CircuitBreaker is a state machine that short-circuits calls to a provider
// that is likely to fail
type CircuitBreaker struct {
	name           string
	failureThresh  uint32
	failureRate    float64
	openTimeout    time.Duration
	halfOpenProbes uint32
	interval       time.Duration
	onStateChange  func(name string, from, to CircuitState)

	mutex      sync.Mutex
	state      CircuitState
	generation uint64
	counts     Counts
	expiry     time.Time
	// lastFailures is the failure count observed when the breaker last
	// tripped, surfaced on rejections after counts reset.
	lastFailures uint32

	logger *logging.Logger
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	config.applyDefaults()

	cb := &CircuitBreaker{
		name:           config.Name,
		failureThresh:  config.FailureThreshold,
		failureRate:    config.FailureRate,
		openTimeout:    config.OpenTimeout,
		halfOpenProbes: config.HalfOpenProbes,
		interval:       config.Interval,
		onStateChange:  config.OnStateChange,
		logger:         logging.GetLogger(),
	}

	cb.toNewGeneration(time.Now())
	return cb
}

// Execute runs the given request if the circuit breaker accepts it
func (cb *CircuitBreaker) Execute(ctx context.Context, req func(context.Context) (interface{}, error)) (interface{}, error) {
	generation, err := cb.beforeRequest()
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.afterRequest(generation, false)
			panic(r)
		}
	}()

	result, err := req(ctx)
	cb.afterRequest(generation, err == nil)
	return result, err
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state, _ := cb.currentState(time.Now())
	return state
}

// Counts returns a copy of the current counts
func (cb *CircuitBreaker) Counts() Counts {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.counts
}

// Name returns the name of the circuit breaker
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) readyToTrip(counts Counts) bool {
	return counts.Requests >= cb.failureThresh &&
		counts.TotalFailures >= uint32(float64(counts.Requests)*cb.failureRate)
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)

	if state == StateOpen {
		return generation, &CircuitBreakerError{Name: cb.name, State: StateOpen, Failures: cb.lastFailures}
	}
	if state == StateHalfOpen && cb.counts.Requests >= cb.halfOpenProbes {
		return generation, &CircuitBreakerError{Name: cb.name, State: StateHalfOpen, Failures: cb.lastFailures}
	}

	cb.counts.Requests++
	return generation, nil
}

func (cb *CircuitBreaker) afterRequest(before uint64, success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)
	if generation != before {
		return
	}

	if success {
		cb.onSuccess(state, now)
	} else {
		cb.onFailure(state, now)
	}
}

func (cb *CircuitBreaker) onSuccess(state CircuitState, now time.Time) {
	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0

	if state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.halfOpenProbes {
		cb.setState(StateClosed, now)
	}
}

func (cb *CircuitBreaker) onFailure(state CircuitState, now time.Time) {
	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	if state == StateClosed {
		if cb.readyToTrip(cb.counts) {
			cb.setState(StateOpen, now)
		}
	} else if state == StateHalfOpen {
		cb.setState(StateOpen, now)
	}
}

func (cb *CircuitBreaker) currentState(now time.Time) (CircuitState, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.toNewGeneration(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.setState(StateHalfOpen, now)
		}
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(state CircuitState, now time.Time) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state

	if state == StateOpen {
		cb.lastFailures = cb.counts.TotalFailures
	}

	cb.toNewGeneration(now)

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, prev, state)
	}

	cb.logger.Info("Circuit breaker state changed",
		"name", cb.name,
		"from", prev.String(),
		"to", state.String(),
	)
}

func (cb *CircuitBreaker) toNewGeneration(now time.Time) {
	cb.generation++
	cb.counts = Counts{}

	var zero time.Time
	switch cb.state {
	case StateClosed:
		if cb.interval == 0 {
			cb.expiry = zero
		} else {
			cb.expiry = now.Add(cb.interval)
		}
	case StateOpen:
		cb.expiry = now.Add(cb.openTimeout)
	default: // StateHalfOpen
		cb.expiry = zero
	}
}

// CircuitBreakerError is returned when the breaker rejects a request. It
// carries the failure count observed in the current generation.
type CircuitBreakerError struct {
	Name     string
	State    CircuitState
	Failures uint32
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State.String())
}

// IsCircuitBreakerError checks if an error is a circuit breaker rejection
func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}

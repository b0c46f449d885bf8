package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voyago/voyago-travel-assistant/pkg/logging"
	"github.com/voyago/voyago-travel-assistant/pkg/mcp"
	"github.com/voyago/voyago-travel-assistant/pkg/metrics"
)

// RetryConfig holds configuration for the retry fallback path
type RetryConfig struct {
	// MaxAttempts bounds the unprotected retry loop
	MaxAttempts int
	// BaseDelay is the delay before the first retry; each subsequent
	// retry doubles it
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// RetryExecutor re-invokes a failed provider operation, through the
// service's circuit breaker when one is registered and with a bounded
// exponential-backoff loop otherwise. It never exceeds the configured
// attempt bound on either path.
type RetryExecutor struct {
	transport mcp.Transport
	breakers  *CircuitBreakerRegistry
	config    RetryConfig
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewRetryExecutor creates a new retry executor
func NewRetryExecutor(transport mcp.Transport, breakers *CircuitBreakerRegistry, config RetryConfig, m *metrics.Metrics) *RetryExecutor {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}

	return &RetryExecutor{
		transport: transport,
		breakers:  breakers,
		config:    config,
		logger:    logging.GetLogger(),
		metrics:   m,
	}
}

// RetryWithBackoff re-invokes the operation and folds the outcome into a
// FallbackResult.
func (e *RetryExecutor) RetryWithBackoff(ctx context.Context, service, method string, params mcp.Params, priorErr error) *FallbackResult {
	if e.breakers != nil {
		if breaker, ok := e.breakers.Get(service); ok {
			return e.retryProtected(ctx, breaker, service, method, params)
		}
	}
	return e.retryUnprotected(ctx, service, method, params, priorErr)
}

// retryProtected performs a single invocation through the service's breaker.
// The breaker owns attempt counting and state transitions; this executor
// only surfaces its rejection as a failed result.
func (e *RetryExecutor) retryProtected(ctx context.Context, breaker Breaker, service, method string, params mcp.Params) *FallbackResult {
	result, err := breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return e.transport.Invoke(ctx, service, method, params)
	})
	e.metrics.RecordProviderInvocation(service, err)

	if err != nil {
		res := failureResult(StrategyRetry, err.Error()).
			withMeta("circuit_breaker", breaker.Name())

		var cbErr *CircuitBreakerError
		if errors.As(err, &cbErr) {
			res.withMeta("breaker_state", cbErr.State.String()).
				withMeta("breaker_failures", cbErr.Failures)
			e.logger.Warn("Retry rejected by circuit breaker",
				"service", service,
				"method", method,
				"breaker_state", cbErr.State.String(),
			)
		}
		return res
	}

	return successResult(StrategyRetry, result).withMeta("circuit_breaker", breaker.Name())
}

// retryUnprotected performs a bounded retry loop with exponential backoff.
func (e *RetryExecutor) retryUnprotected(ctx context.Context, service, method string, params mcp.Params, priorErr error) *FallbackResult {
	lastErr := priorErr

	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		result, err := e.transport.Invoke(ctx, service, method, params)
		e.metrics.RecordProviderInvocation(service, err)
		if err == nil {
			return successResult(StrategyRetry, result).
				withMeta("retry_attempt", attempt).
				withMeta("total_retries", e.config.MaxAttempts)
		}

		lastErr = err
		e.logger.Debug("Retry attempt failed",
			"service", service,
			"method", method,
			"attempt", attempt,
			"error", err.Error(),
		)

		if attempt == e.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return failureResult(StrategyRetry, ctx.Err().Error()).
				withMeta("retry_attempt", attempt).
				withMeta("cancelled", true)
		case <-time.After(e.backoffDelay(attempt)):
		}
	}

	message := fmt.Sprintf("all %d retry attempts failed", e.config.MaxAttempts)
	if lastErr != nil {
		message = fmt.Sprintf("%s: %v", message, lastErr)
	}
	return failureResult(StrategyRetry, message).
		withMeta("retry_attempt", e.config.MaxAttempts).
		withMeta("total_retries", e.config.MaxAttempts)
}

// backoffDelay computes baseDelay * 2^(attempt-1), capped at MaxDelay.
func (e *RetryExecutor) backoffDelay(attempt int) time.Duration {
	delay := e.config.BaseDelay << uint(attempt-1)
	if delay > e.config.MaxDelay || delay <= 0 {
		delay = e.config.MaxDelay
	}
	return delay
}

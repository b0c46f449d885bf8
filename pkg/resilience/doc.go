// Package resilience decides what to do when a call to an external travel
// provider (flight search, accommodation search, maps, weather) fails.
//
// A failed operation flows through a fixed pipeline: the error is classified
// into a severity level, a fallback strategy is selected from that severity
// and the call context, and the strategy is executed.
//
// # Severity Classification
//
// Errors carrying a structured type tag (pkg/errors.AppError) are classified
// from the tag; untyped errors fall back to keyword matching on the message
// and type name. Authentication, permission, and quota failures are CRITICAL;
// timeouts and connection failures are HIGH; validation and parameter issues
// are MEDIUM; everything else is LOW.
//
// # Strategy Selection
//
// CRITICAL failures fail fast (retrying bad credentials helps nobody). HIGH
// failures prefer an equivalent provider, degrading gracefully when none is
// configured. MEDIUM failures retry up to a bound, then fall back to the
// cache. LOW failures are masked with a recent cached answer.
//
//	orch := resilience.NewFallbackOrchestrator(transport, cfg, m)
//	result := orch.HandleFailure(ctx, callErr, "duffel_flights", "search", params, 0)
//
// On successful provider calls the caller records the result so cached
// fallback has something to serve later:
//
//	orch.RecordSuccess(ctx, "duffel_flights", "search", params, payload)
//
// # Circuit Breakers
//
// One breaker per known provider is created at construction time. Retry
// execution goes through the breaker when one is registered; the breaker owns
// attempt counting and open/half-open/closed transitions.
//
// HandleFailure never propagates an error or panic to the caller: every
// outcome, including a failure inside fallback handling itself, is folded
// into a FallbackResult.
//
// The package is safe for concurrent use; independent failures run their
// pipelines independently with no cross-call ordering guarantees.
package resilience

package resilience

import "time"

// Strategy is the chosen response to a failed provider operation.
type Strategy string

const (
	StrategyRetry               Strategy = "RETRY"
	StrategyAlternativeService  Strategy = "ALTERNATIVE_SERVICE"
	StrategyCachedResponse      Strategy = "CACHED_RESPONSE"
	StrategyGracefulDegradation Strategy = "GRACEFUL_DEGRADATION"
	StrategyFailFast            Strategy = "FAIL_FAST"
)

// FallbackResult is the outcome of a fallback attempt. Success implies
// Result is present and Error is empty; failure implies the opposite.
type FallbackResult struct {
	Success       bool                   `json:"success"`
	StrategyUsed  Strategy               `json:"strategy_used"`
	Result        interface{}            `json:"result,omitempty"`
	Error         string                 `json:"error,omitempty"`
	ExecutionTime time.Duration          `json:"execution_time"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

func successResult(strategy Strategy, payload interface{}) *FallbackResult {
	return &FallbackResult{
		Success:      true,
		StrategyUsed: strategy,
		Result:       payload,
		Metadata:     make(map[string]interface{}),
	}
}

func failureResult(strategy Strategy, message string) *FallbackResult {
	return &FallbackResult{
		Success:      false,
		StrategyUsed: strategy,
		Error:        message,
		Metadata:     make(map[string]interface{}),
	}
}

func (r *FallbackResult) withMeta(key string, value interface{}) *FallbackResult {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	r.Metadata[key] = value
	return r
}

// maxRetriesBeforeCache is the retry budget a MEDIUM failure gets before
// strategy selection falls back to the cache.
const maxRetriesBeforeCache = 2

// SelectStrategy maps a classified failure to a fallback strategy. Pure
// function, no I/O.
//
// Severity orders a cost/latency trade-off: critical failures must not be
// retried, transient network failures prefer an equivalent provider over
// degrading the user experience, and low-severity issues are cheap to mask
// with a recent cached answer.
func SelectStrategy(severity Severity, retryCount int, hasAlternatives bool) Strategy {
	switch severity {
	case SeverityCritical:
		return StrategyFailFast
	case SeverityHigh:
		if hasAlternatives {
			return StrategyAlternativeService
		}
		return StrategyGracefulDegradation
	case SeverityMedium:
		if retryCount < maxRetriesBeforeCache {
			return StrategyRetry
		}
		return StrategyCachedResponse
	default:
		return StrategyCachedResponse
	}
}

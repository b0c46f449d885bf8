package resilience

import "time"

// Severity is a coarse classification of how serious and how permanent a
// provider failure is. It drives strategy selection.
type Severity int

const (
	// SeverityLow - minor issues, cheap to mask with cached data
	SeverityLow Severity = iota
	// SeverityMedium - recoverable issues worth a bounded retry
	SeverityMedium
	// SeverityHigh - transient infrastructure failures, prefer a substitute provider
	SeverityHigh
	// SeverityCritical - likely permanent failures that must not be retried
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// OperationError captures a single failed provider attempt. Severity is
// assigned exactly once, at classification time.
type OperationError struct {
	Message    string    `json:"message"`
	Service    string    `json:"service"`
	Method     string    `json:"method"`
	Severity   Severity  `json:"severity"`
	RetryCount int       `json:"retry_count"`
	OccurredAt time.Time `json:"occurred_at"`
	// Cause is the original failure, preserved for diagnostics and never
	// re-interpreted.
	Cause error `json:"-"`
}

func (e *OperationError) Error() string {
	return e.Message
}

// Unwrap returns the original failure
func (e *OperationError) Unwrap() error {
	return e.Cause
}

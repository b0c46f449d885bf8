package resilience

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/voyago/voyago-travel-assistant/pkg/errors"
)

// ErrorClassifier maps a raw provider failure to a severity level. It never
// fails: an unrecognized error resolves to LOW rather than failing
// classification.
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

var criticalKeywords = []string{"authentication", "permission", "quota"}

// Classify determines the severity of a provider failure.
//
// Errors carrying a structured type tag are classified from the tag; untyped
// errors fall back to keyword matching, first on the message, then on the
// concrete type name.
func (c *ErrorClassifier) Classify(err error, service, method string) Severity {
	if err == nil {
		return SeverityLow
	}

	if appErr, ok := errors.AsAppError(err); ok {
		return severityFromType(appErr.Type)
	}

	message := strings.ToLower(err.Error())
	typeName := strings.ToLower(fmt.Sprintf("%T", err))

	for _, keyword := range criticalKeywords {
		if strings.Contains(message, keyword) {
			return SeverityCritical
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) ||
		containsAny(typeName, "timeout", "connection") ||
		containsAny(message, "timeout", "connection") {
		return SeverityHigh
	}

	if containsAny(typeName, "validation", "parameter") ||
		containsAny(message, "validation", "parameter") {
		return SeverityMedium
	}

	return SeverityLow
}

// ClassifyOperation classifies a failure and wraps it into an OperationError
// record for the error history.
func (c *ErrorClassifier) ClassifyOperation(err error, service, method string, retryCount int) *OperationError {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}

	return &OperationError{
		Message:    message,
		Service:    service,
		Method:     method,
		Severity:   c.Classify(err, service, method),
		RetryCount: retryCount,
		OccurredAt: time.Now().UTC(),
		Cause:      err,
	}
}

func severityFromType(errorType errors.ErrorType) Severity {
	switch errorType {
	case errors.ErrorTypeAuthentication, errors.ErrorTypeAuthorization, errors.ErrorTypeQuota:
		return SeverityCritical
	case errors.ErrorTypeTimeout, errors.ErrorTypeConnection, errors.ErrorTypeProvider:
		return SeverityHigh
	case errors.ErrorTypeValidation:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

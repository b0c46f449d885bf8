package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/voyago/voyago-travel-assistant/pkg/errors"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "deadline hit" }

func TestClassifier_TypedErrors(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"authentication", appErrors.NewAuthenticationError("bad token"), SeverityCritical},
		{"authorization", appErrors.NewAuthorizationError("forbidden"), SeverityCritical},
		{"quota", appErrors.NewQuotaExceededError("duffel_flights"), SeverityCritical},
		{"timeout", appErrors.NewTimeoutError("search"), SeverityHigh},
		{"connection", appErrors.NewConnectionError("airbnb"), SeverityHigh},
		{"provider", appErrors.NewProviderError("google_maps", "upstream 503"), SeverityHigh},
		{"validation", appErrors.NewValidationError("bad dates"), SeverityMedium},
		{"parameter", appErrors.NewParameterError("openweather", "lat"), SeverityMedium},
		{"not found", appErrors.NewNotFoundError("listing"), SeverityLow},
		{"internal", appErrors.NewInternalError("oops"), SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifier.Classify(tt.err, "svc", "search"))
		})
	}
}

func TestClassifier_KeywordFallback(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"authentication keyword", errors.New("authentication failed for key"), SeverityCritical},
		{"permission keyword", errors.New("permission denied"), SeverityCritical},
		{"quota keyword", errors.New("monthly quota exceeded"), SeverityCritical},
		{"timeout keyword", errors.New("request timeout after 30s"), SeverityHigh},
		{"connection keyword", errors.New("connection refused"), SeverityHigh},
		{"deadline exceeded", context.DeadlineExceeded, SeverityHigh},
		{"timeout type name", timeoutError{}, SeverityHigh},
		{"validation keyword", errors.New("validation failed: origin missing"), SeverityMedium},
		{"parameter keyword", errors.New("invalid parameter: rooms"), SeverityMedium},
		{"unknown", errors.New("something odd happened"), SeverityLow},
		{"nil", nil, SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifier.Classify(tt.err, "svc", "search"))
		})
	}
}

// Severity must not depend on which rule fires first between runs.
func TestClassifier_Deterministic(t *testing.T) {
	classifier := NewErrorClassifier()
	err := errors.New("quota exceeded while connection was open")

	first := classifier.Classify(err, "duffel_flights", "search_flights")
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, classifier.Classify(err, "duffel_flights", "search_flights"))
	}
	assert.Equal(t, SeverityCritical, first)
}

func TestClassifier_WrappedAppError(t *testing.T) {
	classifier := NewErrorClassifier()
	wrapped := fmt.Errorf("calling provider: %w", appErrors.NewTimeoutError("search"))

	assert.Equal(t, SeverityHigh, classifier.Classify(wrapped, "airbnb", "search_listings"))
}

func TestClassifyOperation(t *testing.T) {
	classifier := NewErrorClassifier()
	err := appErrors.NewConnectionError("airbnb")

	opErr := classifier.ClassifyOperation(err, "airbnb", "search_listings", 1)
	require.NotNil(t, opErr)
	assert.Equal(t, "airbnb", opErr.Service)
	assert.Equal(t, "search_listings", opErr.Method)
	assert.Equal(t, SeverityHigh, opErr.Severity)
	assert.Equal(t, 1, opErr.RetryCount)
	assert.False(t, opErr.OccurredAt.IsZero())
	assert.ErrorIs(t, opErr, err)
}

func TestClassifyOperation_NilError(t *testing.T) {
	opErr := NewErrorClassifier().ClassifyOperation(nil, "svc", "m", 0)
	assert.Equal(t, "unknown error", opErr.Message)
	assert.Equal(t, SeverityLow, opErr.Severity)
}

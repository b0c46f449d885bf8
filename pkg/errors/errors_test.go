package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewValidationError("origin is required")
	assert.Equal(t, "VALIDATION_ERROR: origin is required", err.Error())

	withCause := NewConnectionError("airbnb").WithCause(errors.New("dial tcp: refused"))
	assert.Contains(t, withCause.Error(), "CONNECTION_ERROR")
	assert.Contains(t, withCause.Error(), "caused by: dial tcp: refused")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewInternalError("wrapper").WithCause(cause)

	assert.ErrorIs(t, err, cause)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantCode string
	}{
		{"validation", NewValidationError("m"), ErrorTypeValidation, "VALIDATION_ERROR"},
		{"authentication", NewAuthenticationError("m"), ErrorTypeAuthentication, "AUTHENTICATION_ERROR"},
		{"authorization", NewAuthorizationError("m"), ErrorTypeAuthorization, "AUTHORIZATION_ERROR"},
		{"not found", NewNotFoundError("listing"), ErrorTypeNotFound, "NOT_FOUND"},
		{"conflict", NewConflictError("m"), ErrorTypeConflict, "CONFLICT"},
		{"quota", NewQuotaExceededError("duffel_flights"), ErrorTypeQuota, "QUOTA_EXCEEDED"},
		{"internal", NewInternalError("m"), ErrorTypeInternal, "INTERNAL_ERROR"},
		{"timeout", NewTimeoutError("search"), ErrorTypeTimeout, "TIMEOUT"},
		{"connection", NewConnectionError("airbnb"), ErrorTypeConnection, "CONNECTION_ERROR"},
		{"provider", NewProviderError("airbnb", "m"), ErrorTypeProvider, "PROVIDER_ERROR"},
		{"provider unavailable", NewProviderUnavailableError("airbnb"), ErrorTypeProvider, "PROVIDER_UNAVAILABLE"},
		{"parameter", NewParameterError("openweather", "lat"), ErrorTypeValidation, "PARAMETER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestQuotaExceededError_Details(t *testing.T) {
	err := NewQuotaExceededError("duffel_flights")
	assert.Equal(t, "duffel_flights", err.Details["service"])
	assert.Contains(t, err.Message, "duffel_flights")
}

func TestParameterError_Details(t *testing.T) {
	err := NewParameterError("openweather", "lat")
	assert.Equal(t, "openweather", err.Details["service"])
	assert.Equal(t, "lat", err.Details["parameter"])
}

func TestIsType(t *testing.T) {
	err := NewTimeoutError("search")
	assert.True(t, IsType(err, ErrorTypeTimeout))
	assert.False(t, IsType(err, ErrorTypeConnection))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeTimeout))
}

func TestGetCodeAndType(t *testing.T) {
	err := NewProviderError("airbnb", "upstream 503")
	assert.Equal(t, "PROVIDER_ERROR", GetCode(err))
	assert.Equal(t, ErrorTypeProvider, GetType(err))

	plain := errors.New("plain")
	assert.Equal(t, "UNKNOWN_ERROR", GetCode(plain))
	assert.Equal(t, ErrorTypeInternal, GetType(plain))
}

func TestAsAppError_Wrapped(t *testing.T) {
	inner := NewTimeoutError("search")
	wrapped := fmt.Errorf("outer: %w", inner)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, inner, appErr)

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)
}

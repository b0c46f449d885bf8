package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/voyago/voyago-travel-assistant/pkg/errors"
	"github.com/voyago/voyago-travel-assistant/pkg/mcp"
)

func newTestOrchestrator(transport mcp.Transport) *FallbackOrchestrator {
	config := DefaultOrchestratorConfig()
	config.Retry.BaseDelay = time.Millisecond
	return NewFallbackOrchestrator(transport, config, nil)
}

func TestOrchestrator_TimeoutSubstitutesAlternative(t *testing.T) {
	transport := &recordingTransport{succeed: map[string]interface{}{
		"booking_com": map[string]interface{}{"listings": 12},
	}}
	orchestrator := newTestOrchestrator(transport)

	result := orchestrator.HandleFailure(context.Background(),
		appErrors.NewTimeoutError("search_listings"),
		"airbnb", "search_listings", mcp.Params{"city": "Kyoto"}, 0)

	require.True(t, result.Success)
	assert.Equal(t, StrategyAlternativeService, result.StrategyUsed)
	assert.Equal(t, "booking_com", result.Metadata["alternative_service"])
	assert.Equal(t, "airbnb", result.Metadata["original_service"])
	assert.Equal(t, []string{"booking_com"}, transport.calls)
	assert.Greater(t, result.ExecutionTime, time.Duration(0))
}

func TestOrchestrator_AlternativeFailureDoesNotEscalate(t *testing.T) {
	transport := &recordingTransport{} // everything fails
	orchestrator := newTestOrchestrator(transport)

	result := orchestrator.HandleFailure(context.Background(),
		appErrors.NewConnectionError("airbnb"),
		"airbnb", "search_listings", nil, 0)

	require.False(t, result.Success)
	assert.Equal(t, StrategyAlternativeService, result.StrategyUsed)
	assert.Equal(t, "All alternative services failed", result.Error)
}

func TestOrchestrator_CriticalFailsFast(t *testing.T) {
	transport := &recordingTransport{succeed: map[string]interface{}{
		"amadeus_flights": "would succeed",
	}}
	orchestrator := newTestOrchestrator(transport)

	result := orchestrator.HandleFailure(context.Background(),
		appErrors.NewAuthenticationError("API key revoked"),
		"duffel_flights", "search_flights", nil, 0)

	require.False(t, result.Success)
	assert.Equal(t, StrategyFailFast, result.StrategyUsed)
	assert.Contains(t, result.Error, "API key revoked")
	assert.Equal(t, "CRITICAL", result.Metadata["severity"])
	// No provider call happens on the fail-fast path.
	assert.Empty(t, transport.calls)
}

func TestOrchestrator_MediumRetries(t *testing.T) {
	transport := &recordingTransport{succeed: map[string]interface{}{
		"google_maps": "route",
	}}
	orchestrator := newTestOrchestrator(transport)

	result := orchestrator.HandleFailure(context.Background(),
		appErrors.NewValidationError("validation glitch"),
		"google_maps", "get_route", mcp.Params{"from": "A", "to": "B"}, 0)

	require.True(t, result.Success)
	assert.Equal(t, StrategyRetry, result.StrategyUsed)
	assert.Equal(t, "route", result.Result)
}

func TestOrchestrator_CacheMissMessage(t *testing.T) {
	orchestrator := newTestOrchestrator(&recordingTransport{})

	result := orchestrator.HandleFailure(context.Background(),
		errors.New("something odd"),
		"google_maps", "get_route", mcp.Params{"from": "A"}, 3)

	require.False(t, result.Success)
	assert.Equal(t, StrategyCachedResponse, result.StrategyUsed)
	assert.Equal(t, "No valid cached response available", result.Error)
}

func TestOrchestrator_CachedResponseAfterRecordSuccess(t *testing.T) {
	orchestrator := newTestOrchestrator(&recordingTransport{})
	params := mcp.Params{"from": "A", "to": "B"}

	orchestrator.RecordSuccess(context.Background(),
		"google_maps", "get_route", params, "the route")

	result := orchestrator.HandleFailure(context.Background(),
		errors.New("something odd"),
		"google_maps", "get_route", params, 3)

	require.True(t, result.Success)
	assert.Equal(t, StrategyCachedResponse, result.StrategyUsed)
	assert.Equal(t, "the route", result.Result)
	assert.Contains(t, result.Metadata, "cache_age_seconds")
	assert.Equal(t, "memory", result.Metadata["cache_tier"])
}

func TestOrchestrator_SuccessfulFallbackIsCached(t *testing.T) {
	transport := &recordingTransport{succeed: map[string]interface{}{
		"booking_com": "listings",
	}}
	orchestrator := newTestOrchestrator(transport)
	params := mcp.Params{"city": "Kyoto"}

	first := orchestrator.HandleFailure(context.Background(),
		appErrors.NewTimeoutError("search_listings"),
		"airbnb", "search_listings", params, 0)
	require.True(t, first.Success)

	// Same failure later with the retry budget exhausted: the substitute's
	// payload is served from cache under the original service.
	second := orchestrator.HandleFailure(context.Background(),
		errors.New("minor glitch"),
		"airbnb", "search_listings", params, 3)

	require.True(t, second.Success)
	assert.Equal(t, StrategyCachedResponse, second.StrategyUsed)
	assert.Equal(t, "listings", second.Result)
}

func TestOrchestrator_HighWithoutAlternativesDegrades(t *testing.T) {
	orchestrator := newTestOrchestrator(&recordingTransport{})

	// open_meteo has no configured substitutes.
	result := orchestrator.HandleFailure(context.Background(),
		appErrors.NewConnectionError("open_meteo"),
		"open_meteo", "get_forecast", mcp.Params{"city": "Kyoto"}, 0)

	require.True(t, result.Success)
	assert.Equal(t, StrategyGracefulDegradation, result.StrategyUsed)

	payload := result.Result.(map[string]interface{})
	fallbackData := payload["fallback_data"].(map[string]interface{})
	assert.Equal(t, "weather", fallbackData["service"])
}

func TestOrchestrator_MalformedParamsNeverPanic(t *testing.T) {
	orchestrator := newTestOrchestrator(&recordingTransport{})

	assert.NotPanics(t, func() {
		result := orchestrator.HandleFailure(context.Background(),
			errors.New("odd"),
			"google_maps", "get_route", mcp.Params{"ch": make(chan int)}, 3)

		require.NotNil(t, result)
		assert.False(t, result.Success)
	})
}

func TestOrchestrator_NeverReturnsNil(t *testing.T) {
	orchestrator := newTestOrchestrator(&recordingTransport{})

	result := orchestrator.HandleFailure(context.Background(), nil, "", "", nil, 0)
	require.NotNil(t, result)
}

func TestOrchestrator_RecordsHistoryAndCounters(t *testing.T) {
	orchestrator := newTestOrchestrator(&recordingTransport{})

	orchestrator.HandleFailure(context.Background(),
		appErrors.NewAuthenticationError("nope"), "duffel_flights", "search_flights", nil, 0)
	orchestrator.HandleFailure(context.Background(),
		errors.New("odd"), "google_maps", "get_route", nil, 3)

	orchestrator.RecordSuccess(context.Background(),
		"google_maps", "get_route", mcp.Params{"from": "A"}, "route")

	errStats := orchestrator.ErrorStatistics()
	assert.Equal(t, uint64(2), errStats.TotalErrors)
	assert.Equal(t, uint64(1), errStats.ByService["duffel_flights"])
	assert.Equal(t, uint64(1), errStats.BySeverity["CRITICAL"])
	assert.Equal(t, 1, errStats.CacheSize)

	fbStats := orchestrator.FallbackStatistics()
	assert.Equal(t, uint64(2), fbStats.TotalFallbacks)
	assert.Equal(t, uint64(1), fbStats.ByStrategy["FAIL_FAST"])
	assert.Equal(t, uint64(1), fbStats.ByStrategy["CACHED_RESPONSE"])

	recent := orchestrator.RecentErrors(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "google_maps", recent[0].Service)
}

func TestOrchestrator_ComprehensiveStatistics(t *testing.T) {
	orchestrator := newTestOrchestrator(&recordingTransport{})
	orchestrator.HandleFailure(context.Background(),
		appErrors.NewTimeoutError("x"), "airbnb", "search_listings", nil, 0)

	stats := orchestrator.ComprehensiveStatistics()
	assert.Equal(t, uint64(1), stats.Errors.TotalErrors)
	assert.Contains(t, stats.CircuitBreakers, "airbnb")
	assert.Contains(t, stats.CircuitBreakers, "booking_com")
	assert.NotEmpty(t, stats.DegradationLevel)
	assert.False(t, stats.GeneratedAt.IsZero())
}

func TestOrchestrator_BreakersCoverPrimariesAndSubstitutes(t *testing.T) {
	orchestrator := newTestOrchestrator(&recordingTransport{})

	status := orchestrator.CircuitBreakerStatus()
	for _, service := range []string{
		"duffel_flights", "amadeus_flights", "kiwi_flights",
		"airbnb", "booking_com", "expedia",
		"google_maps", "mapbox", "here_maps",
		"openweather", "open_meteo",
	} {
		assert.Contains(t, status, service)
	}
}

func TestOrchestrator_CriticalAlert(t *testing.T) {
	orchestrator := newTestOrchestrator(&recordingTransport{})
	alerts := NewAlertManager(time.Minute)
	handler := &captureHandler{}
	alerts.AddHandler(handler)
	orchestrator.SetAlerts(alerts)

	orchestrator.HandleFailure(context.Background(),
		appErrors.NewQuotaExceededError("duffel_flights"),
		"duffel_flights", "search_flights", nil, 0)

	require.Len(t, handler.alerts, 1)
	assert.Equal(t, AlertSeverityCritical, handler.alerts[0].Severity)
}

func TestOrchestrator_BreakerOpenAlert(t *testing.T) {
	config := DefaultOrchestratorConfig()
	config.Retry.BaseDelay = time.Millisecond
	config.Breaker = BreakerConfig{
		FailureThreshold: 2,
		FailureRate:      0.5,
		OpenTimeout:      time.Minute,
	}
	orchestrator := NewFallbackOrchestrator(&recordingTransport{}, config, nil)

	alerts := NewAlertManager(time.Minute)
	handler := &captureHandler{}
	alerts.AddHandler(handler)
	orchestrator.SetAlerts(alerts)

	// Two failed retries trip the breaker; the next one is rejected and
	// raises the alert.
	for i := 0; i < 3; i++ {
		orchestrator.HandleFailure(context.Background(),
			appErrors.NewValidationError("glitch"), "mapbox", "get_route", nil, 0)
	}

	require.Len(t, handler.alerts, 1)
	assert.Equal(t, AlertSeverityWarning, handler.alerts[0].Severity)
	assert.Equal(t, "mapbox", handler.alerts[0].Service)
	assert.Equal(t, uint32(2), handler.alerts[0].Metadata["failures"])
}

// fakeStore is an in-memory PersistentStore for tests
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]CacheEntry)}
}

func (s *fakeStore) Put(ctx context.Context, key string, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *fakeStore) Get(ctx context.Context, key string) (*CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, appErrors.NewNotFoundError("cached response")
	}
	return &entry, nil
}

func TestOrchestrator_PersistentStoreFallback(t *testing.T) {
	store := newFakeStore()
	params := mcp.Params{"from": "A"}

	// A previous process run stored the last good response.
	key, err := Fingerprint("google_maps", "get_route", params)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), key, CacheEntry{
		Data:     "persisted route",
		StoredAt: time.Now().Add(-time.Minute),
		Service:  "google_maps",
		Method:   "get_route",
	}))

	orchestrator := newTestOrchestrator(&recordingTransport{})
	orchestrator.SetPersistentStore(store)

	result := orchestrator.HandleFailure(context.Background(),
		errors.New("odd"), "google_maps", "get_route", params, 3)

	require.True(t, result.Success)
	assert.Equal(t, "persisted route", result.Result)
	assert.Equal(t, "persistent", result.Metadata["cache_tier"])

	// The entry was refilled into the memory tier.
	second := orchestrator.HandleFailure(context.Background(),
		errors.New("odd"), "google_maps", "get_route", params, 3)
	require.True(t, second.Success)
	assert.Equal(t, "memory", second.Metadata["cache_tier"])
}

func TestOrchestrator_StalePersistentEntryIsMiss(t *testing.T) {
	store := newFakeStore()
	params := mcp.Params{"from": "A"}
	key, err := Fingerprint("google_maps", "get_route", params)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), key, CacheEntry{
		Data:     "ancient route",
		StoredAt: time.Now().Add(-2 * time.Hour),
	}))

	orchestrator := newTestOrchestrator(&recordingTransport{})
	orchestrator.SetPersistentStore(store)

	result := orchestrator.HandleFailure(context.Background(),
		errors.New("odd"), "google_maps", "get_route", params, 3)

	require.False(t, result.Success)
	assert.Equal(t, "No valid cached response available", result.Error)
}

func TestOrchestrator_RecordSuccessWritesThrough(t *testing.T) {
	store := newFakeStore()
	orchestrator := newTestOrchestrator(&recordingTransport{})
	orchestrator.SetPersistentStore(store)
	params := mcp.Params{"city": "Kyoto"}

	orchestrator.RecordSuccess(context.Background(),
		"openweather", "get_forecast", params, "sunny")

	key, err := Fingerprint("openweather", "get_forecast", params)
	require.NoError(t, err)
	entry, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "sunny", entry.Data)
	assert.Equal(t, "openweather", entry.Service)
}

func TestOrchestrator_RecordSuccessResetsHealth(t *testing.T) {
	orchestrator := newTestOrchestrator(&recordingTransport{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		orchestrator.HandleFailure(ctx, errors.New("odd"), "mapbox", "get_route", nil, 3)
	}
	assert.False(t, orchestrator.Health().IsAvailable(ctx, "mapbox"))

	orchestrator.RecordSuccess(ctx, "mapbox", "get_route", nil, "route")
	assert.True(t, orchestrator.Health().IsAvailable(ctx, "mapbox"))
}

func TestOrchestrator_RecordSuccessSwallowsWriteFailure(t *testing.T) {
	orchestrator := newTestOrchestrator(&recordingTransport{})
	ctx := context.Background()
	params := mcp.Params{"ch": make(chan int)} // not JSON-serializable

	orchestrator.HandleFailure(ctx, errors.New("odd"), "mapbox", "get_route", nil, 3)

	assert.NotPanics(t, func() {
		orchestrator.RecordSuccess(ctx, "mapbox", "get_route", params, "route")
	})

	// The health reset still happened even though the cache write failed.
	assert.True(t, orchestrator.Health().IsAvailable(ctx, "mapbox"))

	result := orchestrator.HandleFailure(ctx, errors.New("odd"), "mapbox", "get_route", params, 3)
	require.False(t, result.Success)
	assert.Equal(t, "No valid cached response available", result.Error)
}

func TestOrchestrator_InternalPanicDegeneratesToFailFast(t *testing.T) {
	transport := &recordingTransport{succeed: map[string]interface{}{
		"booking_com": "rooms",
	}}
	orchestrator := newTestOrchestrator(transport)
	orchestrator.Alternatives().RegisterAdapter("airbnb", "booking_com", func(params mcp.Params) mcp.Params {
		panic("adapter exploded")
	})

	var result *FallbackResult
	assert.NotPanics(t, func() {
		result = orchestrator.HandleFailure(context.Background(),
			appErrors.NewTimeoutError("search_listings"),
			"airbnb", "search_listings", mcp.Params{"city": "Kyoto"}, 0)
	})

	require.NotNil(t, result)
	require.False(t, result.Success)
	assert.Equal(t, StrategyFailFast, result.StrategyUsed)
	assert.True(t, strings.HasPrefix(result.Error, "Fallback failed: "))
	assert.Contains(t, result.Error, "adapter exploded")
}

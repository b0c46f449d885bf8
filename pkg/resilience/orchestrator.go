package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/voyago/voyago-travel-assistant/pkg/logging"
	"github.com/voyago/voyago-travel-assistant/pkg/mcp"
	"github.com/voyago/voyago-travel-assistant/pkg/metrics"
	"github.com/voyago/voyago-travel-assistant/pkg/tracing"
)

// PersistentStore persists last-good responses across process restarts.
// Implementations must treat a missing key as an error.
type PersistentStore interface {
	Put(ctx context.Context, key string, entry CacheEntry) error
	Get(ctx context.Context, key string) (*CacheEntry, error)
}

// OrchestratorConfig holds the knobs for a FallbackOrchestrator
type OrchestratorConfig struct {
	// Alternatives maps a provider service to its ordered substitutes
	Alternatives map[string][]string
	Retry        RetryConfig
	Breaker      BreakerConfig
	Cache        CacheConfig
	// HistoryCapacity bounds the in-memory error history ring
	HistoryCapacity int
	// HealthThreshold is the consecutive-failure count before a
	// provider is considered unavailable
	HealthThreshold int
}

// DefaultOrchestratorConfig returns production defaults
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Alternatives:    DefaultAlternatives(),
		Retry:           DefaultRetryConfig(),
		Cache:           DefaultCacheConfig(),
		HistoryCapacity: 1000,
		HealthThreshold: 3,
	}
}

// DefaultAlternatives is the built-in provider substitution table
func DefaultAlternatives() map[string][]string {
	return map[string][]string{
		"duffel_flights": {"amadeus_flights", "kiwi_flights"},
		"airbnb":         {"booking_com", "expedia"},
		"booking_com":    {"airbnb", "expedia"},
		"google_maps":    {"mapbox", "here_maps"},
		"openweather":    {"open_meteo"},
	}
}

// FallbackOrchestrator coordinates error classification, strategy
// selection and fallback execution for external provider calls. A single
// orchestrator is safe for concurrent use.
type FallbackOrchestrator struct {
	transport    mcp.Transport
	classifier   *ErrorClassifier
	alternatives *AlternativeProviderRegistry
	retry        *RetryExecutor
	breakers     *CircuitBreakerRegistry
	cache        *ResponseCache
	catalog      *DegradedResponseCatalog
	health       *ProviderHealthTracker
	history      *errorHistory
	fallbacks    *fallbackCounters
	logger       *logging.Logger
	metrics      *metrics.Metrics
	tracer       *tracing.Service
	alerts       *AlertManager
	persistent   PersistentStore
}

// NewFallbackOrchestrator wires the resilience layer together. Breakers
// are created for every service named in the alternatives table, as
// original or substitute.
func NewFallbackOrchestrator(transport mcp.Transport, config OrchestratorConfig, m *metrics.Metrics) *FallbackOrchestrator {
	if config.Alternatives == nil {
		config.Alternatives = DefaultAlternatives()
	}
	if config.HistoryCapacity <= 0 {
		config.HistoryCapacity = 1000
	}

	breakers := NewCircuitBreakerRegistry(knownServices(config.Alternatives), config.Breaker, nil, m)
	health := NewProviderHealthTracker(config.HealthThreshold, m)
	alternatives := NewAlternativeProviderRegistry(transport, config.Alternatives, m)
	alternatives.SetAvailabilityChecker(health)

	o := &FallbackOrchestrator{
		transport:    transport,
		classifier:   NewErrorClassifier(),
		alternatives: alternatives,
		retry:        NewRetryExecutor(transport, breakers, config.Retry, m),
		breakers:     breakers,
		cache:        NewResponseCache(config.Cache, m),
		catalog:      NewDegradedResponseCatalog(),
		health:       health,
		history:      newErrorHistory(config.HistoryCapacity),
		fallbacks:    newFallbackCounters(),
		logger:       logging.GetLogger(),
		metrics:      m,
	}
	return o
}

// SetPersistentStore attaches a durable last-good response store. Without
// one, cached-response fallbacks use only the in-memory cache.
func (o *FallbackOrchestrator) SetPersistentStore(store PersistentStore) {
	o.persistent = store
}

// SetTracer attaches distributed tracing to fallback handling
func (o *FallbackOrchestrator) SetTracer(tracer *tracing.Service) {
	o.tracer = tracer
}

// SetAlerts attaches an alert manager for critical failures and breaker
// transitions.
func (o *FallbackOrchestrator) SetAlerts(alerts *AlertManager) {
	o.alerts = alerts
}

// HandleFailure classifies a provider error, selects a fallback strategy
// and executes it. It never panics or returns a nil result: any internal
// failure degenerates to a FAIL_FAST result.
func (o *FallbackOrchestrator) HandleFailure(ctx context.Context, err error, service, method string, params mcp.Params, retryCount int) (result *FallbackResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Panic during fallback handling",
				"service", service,
				"method", method,
				"panic", fmt.Sprintf("%v", r),
			)
			result = failureResult(StrategyFailFast, fmt.Sprintf("Fallback failed: %v", r))
			result.ExecutionTime = time.Since(start)
		}
	}()

	if o.tracer != nil {
		var span oteltrace.Span
		ctx, span = o.tracer.StartFallbackSpan(ctx, service, method)
		defer span.End()
	}

	opErr := o.classifier.ClassifyOperation(err, service, method, retryCount)
	o.history.record(opErr)
	o.health.RecordFailure(service, opErr.Message)
	o.metrics.RecordClassification(service, opErr.Severity.String())

	strategy := SelectStrategy(opErr.Severity, retryCount, o.alternatives.HasAlternatives(service))

	o.logger.LogFallbackEvent(ctx, "fallback_selected", service, string(strategy), false, logrus.Fields{
		"method":      method,
		"severity":    opErr.Severity.String(),
		"retry_count": retryCount,
		"error":       opErr.Message,
	})

	result = o.execute(ctx, strategy, opErr, service, method, params, retryCount)
	result.ExecutionTime = time.Since(start)

	if o.alerts != nil && !result.Success {
		if state, ok := result.Metadata["breaker_state"]; ok && state == StateOpen.String() {
			failures, _ := result.Metadata["breaker_failures"].(uint32)
			o.alerts.BreakerOpened(ctx, service, failures)
		}
	}

	o.fallbacks.record(strategy, result.Success)
	o.metrics.RecordFallback(service, string(strategy), result.Success, result.ExecutionTime)
	o.logger.LogFallbackEvent(ctx, "fallback_completed", service, string(result.StrategyUsed), result.Success, logrus.Fields{
		"method":      method,
		"duration_ms": result.ExecutionTime.Milliseconds(),
	})

	if result.Success {
		o.writeThrough(ctx, result, service, method, params)
	}
	return result
}

func (o *FallbackOrchestrator) execute(ctx context.Context, strategy Strategy, opErr *OperationError, service, method string, params mcp.Params, retryCount int) *FallbackResult {
	switch strategy {
	case StrategyRetry:
		return o.retry.RetryWithBackoff(ctx, service, method, params, opErr)

	case StrategyAlternativeService:
		// Strategy selection happens once, up front: if every
		// substitute fails the result stays a failed
		// ALTERNATIVE_SERVICE, it does not escalate to degradation.
		return o.alternatives.TrySubstitutes(ctx, service, method, params)

	case StrategyCachedResponse:
		return o.cachedResponse(ctx, service, method, params)

	case StrategyGracefulDegradation:
		return o.catalog.Degrade(service, method, params)

	case StrategyFailFast:
		if o.alerts != nil {
			o.alerts.CriticalFailure(ctx, service, opErr)
		}
		return failureResult(StrategyFailFast, opErr.Message).
			withMeta("severity", opErr.Severity.String())

	default:
		return failureResult(StrategyFailFast, fmt.Sprintf("unknown fallback strategy %q", strategy))
	}
}

// cachedResponse serves the last good response for the same request, in
// memory first and then from the persistent store.
func (o *FallbackOrchestrator) cachedResponse(ctx context.Context, service, method string, params mcp.Params) *FallbackResult {
	data, age, err := o.cache.Get(service, method, params)
	if err == nil {
		return successResult(StrategyCachedResponse, data).
			withMeta("cache_age_seconds", int(age.Seconds())).
			withMeta("cache_tier", "memory")
	}

	if o.persistent != nil {
		key, ferr := Fingerprint(service, method, params)
		if ferr == nil {
			entry, serr := o.persistent.Get(ctx, key)
			if serr == nil && entry != nil && time.Since(entry.StoredAt) <= o.cache.Freshness() {
				// Refill the memory tier so the next miss is cheap.
				_ = o.cache.Put(service, method, params, entry.Data)
				return successResult(StrategyCachedResponse, entry.Data).
					withMeta("cache_age_seconds", int(time.Since(entry.StoredAt).Seconds())).
					withMeta("cache_tier", "persistent")
			}
		}
	}

	return failureResult(StrategyCachedResponse, "No valid cached response available")
}

// RecordSuccess stores a successful provider response for later
// cached-response fallbacks and resets the provider's failure streak.
// Cache write failures are logged, never surfaced to the caller.
func (o *FallbackOrchestrator) RecordSuccess(ctx context.Context, service, method string, params mcp.Params, data interface{}) {
	o.health.RecordSuccess(service)
	o.storeLastGood(ctx, service, method, params, data)
}

// storeLastGood writes a response into both cache tiers without touching
// provider health. Write failures in either tier are logged and swallowed.
func (o *FallbackOrchestrator) storeLastGood(ctx context.Context, service, method string, params mcp.Params, data interface{}) {
	if err := o.cache.Put(service, method, params, data); err != nil {
		o.logger.Warn("Failed to cache last-good response",
			"service", service,
			"method", method,
			"error", err,
		)
		return
	}
	if o.persistent != nil {
		key, err := Fingerprint(service, method, params)
		if err != nil {
			o.logger.Warn("Failed to fingerprint last-good response",
				"service", service,
				"method", method,
				"error", err,
			)
			return
		}
		entry := CacheEntry{
			Data:     data,
			StoredAt: time.Now(),
			Service:  service,
			Method:   method,
		}
		if err := o.persistent.Put(ctx, key, entry); err != nil {
			o.logger.Warn("Failed to persist last-good response",
				"service", service,
				"method", method,
				"error", err,
			)
		}
	}
}

// writeThrough stores successful fallback payloads under the original
// request so later cached-response fallbacks can serve them.
func (o *FallbackOrchestrator) writeThrough(ctx context.Context, result *FallbackResult, service, method string, params mcp.Params) {
	switch result.StrategyUsed {
	case StrategyRetry:
		// A successful retry is the original provider recovering.
		o.RecordSuccess(ctx, service, method, params, result.Result)
	case StrategyAlternativeService:
		// A substitute succeeding says nothing about the original, so
		// its health streak stays; only the payload is stored under
		// the original request for later cached fallbacks.
		o.storeLastGood(ctx, service, method, params, result.Result)
	}
}

// Health returns the provider health tracker
func (o *FallbackOrchestrator) Health() *ProviderHealthTracker {
	return o.health
}

// Alternatives returns the alternative provider registry, for adapter
// registration.
func (o *FallbackOrchestrator) Alternatives() *AlternativeProviderRegistry {
	return o.alternatives
}

// Catalog returns the degraded response catalog, for registering custom
// services.
func (o *FallbackOrchestrator) Catalog() *DegradedResponseCatalog {
	return o.catalog
}

// knownServices collects every service that appears in an alternatives
// table, as key or substitute, without duplicates.
func knownServices(table map[string][]string) []string {
	seen := make(map[string]struct{})
	var services []string
	add := func(s string) {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			services = append(services, s)
		}
	}
	for service, substitutes := range table {
		add(service)
		for _, substitute := range substitutes {
			add(substitute)
		}
	}
	return services
}

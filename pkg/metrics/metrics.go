package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Fallback metrics
	FallbacksTotal       *prometheus.CounterVec
	FallbackDuration     *prometheus.HistogramVec
	ClassificationsTotal *prometheus.CounterVec
	Substitutions        *prometheus.CounterVec

	// Provider metrics
	ProviderInvocations *prometheus.CounterVec
	ProviderHealth      *prometheus.GaugeVec

	// Cache metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions prometheus.Counter
	CacheSize      prometheus.Gauge

	// Circuit breaker metrics
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "voyago",
		Enabled:   true,
	}
}

// NewMetrics creates all Prometheus metrics and registers them with the
// given registerer (the default registry when nil).
func NewMetrics(config *Config, registerer prometheus.Registerer) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return &Metrics{}
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		FallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "fallbacks_total",
				Help:      "Total number of fallback executions",
			},
			[]string{"service", "strategy", "outcome"},
		),
		FallbackDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Name:      "fallback_duration_seconds",
				Help:      "Fallback handling duration in seconds",
				Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"strategy"},
		),
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "error_classifications_total",
				Help:      "Total number of classified provider errors",
			},
			[]string{"service", "severity"},
		),
		Substitutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "provider_substitutions_total",
				Help:      "Total number of alternative provider substitutions",
			},
			[]string{"original", "alternative", "outcome"},
		),
		ProviderInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "provider_invocations_total",
				Help:      "Total number of provider invocations made by fallback handling",
			},
			[]string{"service", "status"},
		),
		ProviderHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Name:      "provider_healthy",
				Help:      "Whether a provider is currently considered healthy (1) or not (0)",
			},
			[]string{"service"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "response_cache_hits_total",
				Help:      "Total number of response cache hits",
			},
			[]string{"service"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "response_cache_misses_total",
				Help:      "Total number of response cache misses",
			},
			[]string{"service"},
		),
		CacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "response_cache_evictions_total",
				Help:      "Total number of response cache entries evicted by the size bound",
			},
		),
		CacheSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Name:      "response_cache_size",
				Help:      "Current number of entries in the response cache",
			},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state per service (0=closed, 1=open, 2=half-open)",
			},
			[]string{"service"},
		),
		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"service", "from", "to"},
		),
	}

	registerer.MustRegister(
		m.FallbacksTotal,
		m.FallbackDuration,
		m.ClassificationsTotal,
		m.Substitutions,
		m.ProviderInvocations,
		m.ProviderHealth,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.CacheSize,
		m.BreakerState,
		m.BreakerTransitions,
	)

	return m
}

// RecordFallback records the outcome of a fallback execution
func (m *Metrics) RecordFallback(service, strategy string, success bool, duration time.Duration) {
	if m == nil || m.FallbacksTotal == nil {
		return
	}

	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.FallbacksTotal.WithLabelValues(service, strategy, outcome).Inc()
	m.FallbackDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordClassification records a severity classification
func (m *Metrics) RecordClassification(service, severity string) {
	if m == nil || m.ClassificationsTotal == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(service, severity).Inc()
}

// RecordSubstitution records an alternative provider attempt
func (m *Metrics) RecordSubstitution(original, alternative string, success bool) {
	if m == nil || m.Substitutions == nil {
		return
	}

	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.Substitutions.WithLabelValues(original, alternative, outcome).Inc()
}

// RecordProviderInvocation records a provider call made during fallback
func (m *Metrics) RecordProviderInvocation(service string, err error) {
	if m == nil || m.ProviderInvocations == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ProviderInvocations.WithLabelValues(service, status).Inc()
}

// UpdateProviderHealth updates the health gauge for a provider
func (m *Metrics) UpdateProviderHealth(service string, healthy bool) {
	if m == nil || m.ProviderHealth == nil {
		return
	}

	v := 0.0
	if healthy {
		v = 1.0
	}
	m.ProviderHealth.WithLabelValues(service).Set(v)
}

// RecordCacheHit records a response cache hit
func (m *Metrics) RecordCacheHit(service string) {
	if m == nil || m.CacheHits == nil {
		return
	}
	m.CacheHits.WithLabelValues(service).Inc()
}

// RecordCacheMiss records a response cache miss
func (m *Metrics) RecordCacheMiss(service string) {
	if m == nil || m.CacheMisses == nil {
		return
	}
	m.CacheMisses.WithLabelValues(service).Inc()
}

// RecordCacheEvictions records entries removed by the size-bound sweep
func (m *Metrics) RecordCacheEvictions(count int) {
	if m == nil || m.CacheEvictions == nil {
		return
	}
	m.CacheEvictions.Add(float64(count))
}

// UpdateCacheSize updates the cache occupancy gauge
func (m *Metrics) UpdateCacheSize(size int) {
	if m == nil || m.CacheSize == nil {
		return
	}
	m.CacheSize.Set(float64(size))
}

// UpdateBreakerState updates the state gauge for a service breaker
func (m *Metrics) UpdateBreakerState(service string, state int) {
	if m == nil || m.BreakerState == nil {
		return
	}
	m.BreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordBreakerTransition records a breaker state change
func (m *Metrics) RecordBreakerTransition(service, from, to string) {
	if m == nil || m.BreakerTransitions == nil {
		return
	}
	m.BreakerTransitions.WithLabelValues(service, from, to).Inc()
}

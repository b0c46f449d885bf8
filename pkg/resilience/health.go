package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/voyago/voyago-travel-assistant/pkg/logging"
	"github.com/voyago/voyago-travel-assistant/pkg/metrics"
)

// DegradationLevel represents the overall level of provider degradation
type DegradationLevel int

const (
	// LevelNormal - all providers are operational
	LevelNormal DegradationLevel = iota
	// LevelPartial - some providers are degraded but planning still works
	LevelPartial
	// LevelSevere - significant degradation, most results come from fallback
	LevelSevere
	// LevelCritical - nearly every provider is down
	LevelCritical
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelNormal:
		return "NORMAL"
	case LevelPartial:
		return "PARTIAL"
	case LevelSevere:
		return "SEVERE"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ProviderHealth is the health record of a single provider service
type ProviderHealth struct {
	Service           string    `json:"service"`
	Healthy           bool      `json:"healthy"`
	LastCheck         time.Time `json:"last_check"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	Message           string    `json:"message,omitempty"`
}

// ProviderHealthTracker keeps per-provider health derived from observed
// failures and successes. It implements AvailabilityChecker, gating
// alternative-provider substitution.
type ProviderHealthTracker struct {
	mu        sync.RWMutex
	providers map[string]*ProviderHealth
	threshold int
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewProviderHealthTracker creates a tracker that marks a provider
// unhealthy after threshold consecutive failures.
func NewProviderHealthTracker(threshold int, m *metrics.Metrics) *ProviderHealthTracker {
	if threshold <= 0 {
		threshold = 3
	}
	return &ProviderHealthTracker{
		providers: make(map[string]*ProviderHealth),
		threshold: threshold,
		logger:    logging.GetLogger(),
		metrics:   m,
	}
}

// Register adds a provider in a healthy state
func (t *ProviderHealthTracker) Register(service string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registerLocked(service)
}

func (t *ProviderHealthTracker) registerLocked(service string) *ProviderHealth {
	if health, ok := t.providers[service]; ok {
		return health
	}
	health := &ProviderHealth{
		Service:   service,
		Healthy:   true,
		LastCheck: time.Now(),
	}
	t.providers[service] = health
	return health
}

// RecordFailure notes a failed call against a provider. Unknown providers
// are registered on first sight.
func (t *ProviderHealthTracker) RecordFailure(service, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	health := t.registerLocked(service)
	health.LastCheck = time.Now()
	health.ConsecutiveErrors++
	health.Message = message

	if health.Healthy && health.ConsecutiveErrors >= t.threshold {
		health.Healthy = false
		t.logger.Warn("Provider marked unhealthy",
			"service", service,
			"consecutive_errors", health.ConsecutiveErrors,
		)
	}
	t.metrics.UpdateProviderHealth(service, health.Healthy)
}

// RecordSuccess notes a successful call against a provider, resetting its
// error streak.
func (t *ProviderHealthTracker) RecordSuccess(service string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	health := t.registerLocked(service)
	health.LastCheck = time.Now()
	health.ConsecutiveErrors = 0
	health.Message = ""

	if !health.Healthy {
		t.logger.Info("Provider recovered", "service", service)
	}
	health.Healthy = true
	t.metrics.UpdateProviderHealth(service, true)
}

// IsAvailable implements AvailabilityChecker. Providers this tracker has
// never seen are assumed available.
func (t *ProviderHealthTracker) IsAvailable(ctx context.Context, service string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	health, ok := t.providers[service]
	if !ok {
		return true
	}
	return health.Healthy
}

// DegradationLevel derives the overall level from the share of unhealthy
// providers.
func (t *ProviderHealthTracker) DegradationLevel() DegradationLevel {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := len(t.providers)
	if total == 0 {
		return LevelNormal
	}

	unhealthy := 0
	for _, health := range t.providers {
		if !health.Healthy {
			unhealthy++
		}
	}

	share := float64(unhealthy) / float64(total)
	switch {
	case share >= 0.75:
		return LevelCritical
	case share >= 0.5:
		return LevelSevere
	case share >= 0.25:
		return LevelPartial
	default:
		return LevelNormal
	}
}

// Snapshot returns a copy of every provider health record
func (t *ProviderHealthTracker) Snapshot() map[string]ProviderHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make(map[string]ProviderHealth, len(t.providers))
	for service, health := range t.providers {
		snapshot[service] = *health
	}
	return snapshot
}

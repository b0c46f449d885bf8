package resilience

import (
	"sync"
	"time"
)

// ErrorRecord is a single classified failure kept in the error history
type ErrorRecord struct {
	Service    string    `json:"service"`
	Method     string    `json:"method"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	RetryCount int       `json:"retry_count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// errorHistory is a fixed-capacity ring of recent failures. Cumulative
// counters survive ring wraparound so statistics reflect the full run,
// not just the retained window.
type errorHistory struct {
	mu         sync.Mutex
	ring       []ErrorRecord
	next       int
	filled     bool
	total      uint64
	byService  map[string]uint64
	bySeverity map[string]uint64
}

func newErrorHistory(capacity int) *errorHistory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &errorHistory{
		ring:       make([]ErrorRecord, capacity),
		byService:  make(map[string]uint64),
		bySeverity: make(map[string]uint64),
	}
}

func (h *errorHistory) record(opErr *OperationError) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.next] = ErrorRecord{
		Service:    opErr.Service,
		Method:     opErr.Method,
		Message:    opErr.Message,
		Severity:   opErr.Severity.String(),
		RetryCount: opErr.RetryCount,
		OccurredAt: opErr.OccurredAt,
	}
	h.next = (h.next + 1) % len(h.ring)
	if h.next == 0 {
		h.filled = true
	}

	h.total++
	h.byService[opErr.Service]++
	h.bySeverity[opErr.Severity.String()]++
}

// recent returns up to n retained records, newest first
func (h *errorHistory) recent(n int) []ErrorRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	retained := h.next
	if h.filled {
		retained = len(h.ring)
	}
	if n <= 0 || n > retained {
		n = retained
	}

	records := make([]ErrorRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.ring)) % len(h.ring)
		records = append(records, h.ring[idx])
	}
	return records
}

func (h *errorHistory) stats() ErrorStatistics {
	h.mu.Lock()
	defer h.mu.Unlock()

	retained := h.next
	if h.filled {
		retained = len(h.ring)
	}

	byService := make(map[string]uint64, len(h.byService))
	for service, count := range h.byService {
		byService[service] = count
	}
	bySeverity := make(map[string]uint64, len(h.bySeverity))
	for severity, count := range h.bySeverity {
		bySeverity[severity] = count
	}

	return ErrorStatistics{
		TotalErrors:     h.total,
		RetainedRecords: retained,
		ByService:       byService,
		BySeverity:      bySeverity,
	}
}

// fallbackCounters tallies fallback executions per strategy
type fallbackCounters struct {
	mu         sync.Mutex
	total      uint64
	successful uint64
	byStrategy map[string]uint64
}

func newFallbackCounters() *fallbackCounters {
	return &fallbackCounters{byStrategy: make(map[string]uint64)}
}

func (c *fallbackCounters) record(strategy Strategy, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if success {
		c.successful++
	}
	c.byStrategy[string(strategy)]++
}

func (c *fallbackCounters) stats() FallbackStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	byStrategy := make(map[string]uint64, len(c.byStrategy))
	for strategy, count := range c.byStrategy {
		byStrategy[strategy] = count
	}

	var successRate float64
	if c.total > 0 {
		successRate = float64(c.successful) / float64(c.total)
	}
	return FallbackStatistics{
		TotalFallbacks: c.total,
		Successful:     c.successful,
		SuccessRate:    successRate,
		ByStrategy:     byStrategy,
	}
}

// ErrorStatistics summarizes classified failures seen so far. CacheSize is
// the current response cache occupancy, filled in by the orchestrator.
type ErrorStatistics struct {
	TotalErrors     uint64            `json:"total_errors"`
	RetainedRecords int               `json:"retained_records"`
	ByService       map[string]uint64 `json:"by_service"`
	BySeverity      map[string]uint64 `json:"by_severity"`
	CacheSize       int               `json:"cache_size"`
}

// FallbackStatistics summarizes fallback executions per strategy
type FallbackStatistics struct {
	TotalFallbacks uint64            `json:"total_fallbacks"`
	Successful     uint64            `json:"successful"`
	SuccessRate    float64           `json:"success_rate"`
	ByStrategy     map[string]uint64 `json:"by_strategy"`
}

// ComprehensiveStatistics is the full observability snapshot of the
// resilience layer.
type ComprehensiveStatistics struct {
	Errors           ErrorStatistics           `json:"errors"`
	Fallbacks        FallbackStatistics        `json:"fallbacks"`
	CircuitBreakers  map[string]BreakerStatus  `json:"circuit_breakers"`
	ProviderHealth   map[string]ProviderHealth `json:"provider_health"`
	DegradationLevel string                    `json:"degradation_level"`
	CacheSize        int                       `json:"cache_size"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}

// ErrorStatistics returns cumulative error counts, the retained window
// size and the current cache occupancy.
func (o *FallbackOrchestrator) ErrorStatistics() ErrorStatistics {
	stats := o.history.stats()
	stats.CacheSize = o.cache.Size()
	return stats
}

// RecentErrors returns up to n retained error records, newest first
func (o *FallbackOrchestrator) RecentErrors(n int) []ErrorRecord {
	return o.history.recent(n)
}

// FallbackStatistics returns per-strategy fallback counts
func (o *FallbackOrchestrator) FallbackStatistics() FallbackStatistics {
	return o.fallbacks.stats()
}

// CircuitBreakerStatus returns the state and counts of every registered
// breaker.
func (o *FallbackOrchestrator) CircuitBreakerStatus() map[string]BreakerStatus {
	return o.breakers.Status()
}

// ComprehensiveStatistics assembles the complete snapshot in one call
func (o *FallbackOrchestrator) ComprehensiveStatistics() ComprehensiveStatistics {
	return ComprehensiveStatistics{
		Errors:           o.ErrorStatistics(),
		Fallbacks:        o.fallbacks.stats(),
		CircuitBreakers:  o.breakers.Status(),
		ProviderHealth:   o.health.Snapshot(),
		DegradationLevel: o.health.DegradationLevel().String(),
		CacheSize:        o.cache.Size(),
		GeneratedAt:      time.Now(),
	}
}

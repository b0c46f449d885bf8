package resilience

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/voyago/voyago-travel-assistant/pkg/errors"
	"github.com/voyago/voyago-travel-assistant/pkg/logging"
	"github.com/voyago/voyago-travel-assistant/pkg/mcp"
	"github.com/voyago/voyago-travel-assistant/pkg/metrics"
)

// CacheEntry is one stored last-good provider response
type CacheEntry struct {
	Data     interface{} `json:"data"`
	StoredAt time.Time   `json:"stored_at"`
	Service  string      `json:"service"`
	Method   string      `json:"method"`
}

// CacheConfig holds configuration for the response cache
type CacheConfig struct {
	// Capacity is the entry count above which a sweep runs
	Capacity int
	// SweepSize is how many of the oldest entries a sweep removes
	SweepSize int
	// Freshness is the window within which a stored entry is served
	Freshness time.Duration
}

// DefaultCacheConfig returns the default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Capacity:  1000,
		SweepSize: 100,
		Freshness: time.Hour,
	}
}

// ResponseCache is a bounded, time-windowed store of last-good provider
// responses, keyed by a deterministic fingerprint of the operation. Eviction
// is by insertion time, not access time: once the entry count exceeds the
// capacity, the oldest entries are removed in one sweep.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
	config  CacheConfig
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewResponseCache creates a new response cache
func NewResponseCache(config CacheConfig, m *metrics.Metrics) *ResponseCache {
	if config.Capacity <= 0 {
		config.Capacity = 1000
	}
	if config.SweepSize <= 0 || config.SweepSize > config.Capacity {
		config.SweepSize = config.Capacity / 10
		if config.SweepSize == 0 {
			config.SweepSize = 1
		}
	}
	if config.Freshness <= 0 {
		config.Freshness = time.Hour
	}

	return &ResponseCache{
		entries: make(map[string]*CacheEntry),
		config:  config,
		logger:  logging.GetLogger(),
		metrics: m,
	}
}

// Fingerprint derives the stable cache key for an operation. Params are
// serialized as canonical JSON (object keys sorted) so the key is
// independent of map iteration order.
func Fingerprint(service, method string, params mcp.Params) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", errors.NewValidationError("operation parameters are not serializable").WithCause(err)
	}

	h := blake3.New()
	h.Write([]byte(service))
	h.Write([]byte{0})
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write(raw)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached payload and its age for an operation. An entry
// older than the freshness window is treated as absent even if still
// physically stored.
func (c *ResponseCache) Get(service, method string, params mcp.Params) (interface{}, time.Duration, error) {
	key, err := Fingerprint(service, method, params)
	if err != nil {
		return nil, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.metrics.RecordCacheMiss(service)
		return nil, 0, errors.NewNotFoundError("cached response")
	}

	age := time.Since(entry.StoredAt)
	if age >= c.config.Freshness {
		delete(c.entries, key)
		c.metrics.RecordCacheMiss(service)
		c.metrics.UpdateCacheSize(len(c.entries))
		return nil, 0, errors.NewNotFoundError("cached response")
	}

	c.metrics.RecordCacheHit(service)
	return entry.Data, age, nil
}

// Put stores the freshest value for an operation, overwriting any previous
// entry, then sweeps the oldest entries if the size bound is exceeded.
func (c *ResponseCache) Put(service, method string, params mcp.Params, data interface{}) error {
	key, err := Fingerprint(service, method, params)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &CacheEntry{
		Data:     data,
		StoredAt: time.Now(),
		Service:  service,
		Method:   method,
	}

	if len(c.entries) > c.config.Capacity {
		c.sweepLocked()
	}

	c.metrics.UpdateCacheSize(len(c.entries))
	return nil
}

// Freshness returns the window within which entries are served
func (c *ResponseCache) Freshness() time.Duration {
	return c.config.Freshness
}

// Size returns the current number of stored entries
func (c *ResponseCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweepLocked removes the SweepSize oldest entries by insertion time.
// Caller must hold c.mu.
func (c *ResponseCache) sweepLocked() {
	type keyed struct {
		key      string
		storedAt time.Time
	}

	ordered := make([]keyed, 0, len(c.entries))
	for key, entry := range c.entries {
		ordered = append(ordered, keyed{key: key, storedAt: entry.StoredAt})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].storedAt.Before(ordered[j].storedAt)
	})

	evict := c.config.SweepSize
	if evict > len(ordered) {
		evict = len(ordered)
	}
	for _, victim := range ordered[:evict] {
		delete(c.entries, victim.key)
	}

	c.metrics.RecordCacheEvictions(evict)
	c.logger.Debug("Response cache sweep completed",
		"evicted", evict,
		"remaining", len(c.entries),
	)
}

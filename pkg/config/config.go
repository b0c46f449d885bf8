package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/voyago/voyago-travel-assistant/pkg/resilience"
)

// Config holds the application configuration
type Config struct {
	Redis      RedisConfig      `json:"redis"`
	Resilience ResilienceConfig `json:"resilience"`
	Providers  ProvidersConfig  `json:"providers"`
	Logging    LoggingConfig    `json:"logging"`
	Tracing    TracingConfig    `json:"tracing"`
	Metrics    MetricsConfig    `json:"metrics"`
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	Enabled  bool   `json:"enabled"`
}

// ResilienceConfig contains the fallback-handling knobs
type ResilienceConfig struct {
	// Retry
	RetryMaxAttempts int           `json:"retry_max_attempts"`
	RetryBaseDelay   time.Duration `json:"retry_base_delay"`
	RetryMaxDelay    time.Duration `json:"retry_max_delay"`

	// Circuit breaker
	BreakerFailureThreshold uint32        `json:"breaker_failure_threshold"`
	BreakerFailureRate      float64       `json:"breaker_failure_rate"`
	BreakerOpenTimeout      time.Duration `json:"breaker_open_timeout"`
	BreakerHalfOpenProbes   uint32        `json:"breaker_half_open_probes"`

	// Response cache
	CacheCapacity  int           `json:"cache_capacity"`
	CacheSweepSize int           `json:"cache_sweep_size"`
	CacheFreshness time.Duration `json:"cache_freshness"`

	// Error history
	HistorySize int `json:"history_size"`
}

// ProvidersConfig contains external provider configuration
type ProvidersConfig struct {
	// Alternatives maps a primary provider to its ordered substitutes.
	Alternatives map[string][]string `json:"alternatives"`
	// UnhealthyThreshold is the number of consecutive failures after
	// which a provider is considered unavailable.
	UnhealthyThreshold int `json:"unhealthy_threshold"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// TracingConfig contains distributed tracing configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	JaegerEndpoint string  `json:"jaeger_endpoint"`
	SamplingRate   float64 `json:"sampling_rate"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// DefaultAlternatives is the built-in substitute table for the travel
// providers the assistant talks to.
func DefaultAlternatives() map[string][]string {
	return resilience.DefaultAlternatives()
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	// Best effort; a missing .env file is not an error.
	_ = godotenv.Load()

	config := &Config{
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
			Enabled:  getEnvBool("REDIS_ENABLED", false),
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:        getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelay:          getEnvDuration("RETRY_BASE_DELAY", 100*time.Millisecond),
			RetryMaxDelay:           getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
			BreakerFailureThreshold: uint32(getEnvInt("BREAKER_FAILURE_THRESHOLD", 5)),
			BreakerFailureRate:      getEnvFloat("BREAKER_FAILURE_RATE", 0.6),
			BreakerOpenTimeout:      getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
			BreakerHalfOpenProbes:   uint32(getEnvInt("BREAKER_HALF_OPEN_PROBES", 3)),
			CacheCapacity:           getEnvInt("RESPONSE_CACHE_CAPACITY", 1000),
			CacheSweepSize:          getEnvInt("RESPONSE_CACHE_SWEEP_SIZE", 100),
			CacheFreshness:          getEnvDuration("RESPONSE_CACHE_FRESHNESS", time.Hour),
			HistorySize:             getEnvInt("ERROR_HISTORY_SIZE", 1000),
		},
		Providers: ProvidersConfig{
			Alternatives:       parseAlternatives(getEnvString("PROVIDER_ALTERNATIVES", "")),
			UnhealthyThreshold: getEnvInt("PROVIDER_UNHEALTHY_THRESHOLD", 3),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("TRACING_ENABLED", false),
			JaegerEndpoint: getEnvString("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			SamplingRate:   getEnvFloat("TRACING_SAMPLING_RATE", 1.0),
		},
		Metrics: MetricsConfig{
			Enabled:   getEnvBool("METRICS_ENABLED", true),
			Namespace: getEnvString("METRICS_NAMESPACE", "voyago"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Resilience.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.Resilience.CacheCapacity < 1 {
		return fmt.Errorf("response cache capacity must be at least 1")
	}
	if c.Resilience.CacheSweepSize < 1 || c.Resilience.CacheSweepSize > c.Resilience.CacheCapacity {
		return fmt.Errorf("cache sweep size must be between 1 and the cache capacity")
	}
	if c.Resilience.BreakerFailureRate <= 0 || c.Resilience.BreakerFailureRate > 1 {
		return fmt.Errorf("breaker failure rate must be in (0, 1]")
	}
	if c.Resilience.HistorySize < 1 {
		return fmt.Errorf("error history size must be at least 1")
	}
	if c.Providers.UnhealthyThreshold < 1 {
		return fmt.Errorf("provider unhealthy threshold must be at least 1")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("redis host is required when redis is enabled")
	}
	return nil
}

// parseAlternatives parses "svc:alt1|alt2;svc2:alt3" into the substitute
// table, falling back to the built-in defaults when empty.
func parseAlternatives(raw string) map[string][]string {
	if raw == "" {
		return DefaultAlternatives()
	}

	table := make(map[string][]string)
	for _, pair := range strings.Split(raw, ";") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		service := strings.TrimSpace(parts[0])
		var alts []string
		for _, alt := range strings.Split(parts[1], "|") {
			if alt = strings.TrimSpace(alt); alt != "" {
				alts = append(alts, alt)
			}
		}
		if service != "" && len(alts) > 0 {
			table[service] = alts
		}
	}

	if len(table) == 0 {
		return DefaultAlternatives()
	}
	return table
}

// Environment variable helpers

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

package resilience

import (
	"context"
	"sort"

	"github.com/voyago/voyago-travel-assistant/pkg/logging"
	"github.com/voyago/voyago-travel-assistant/pkg/metrics"
)

// Breaker is the capability a circuit breaker exposes to this layer:
// protected execution and state introspection. The default implementation is
// CircuitBreaker; tests and callers may inject their own via BreakerFactory.
type Breaker interface {
	Execute(ctx context.Context, req func(context.Context) (interface{}, error)) (interface{}, error)
	State() CircuitState
	Counts() Counts
	Name() string
}

// BreakerFactory builds a breaker for a named provider service
type BreakerFactory func(service string, config BreakerConfig) Breaker

// BreakerStatus is a read-only snapshot of one breaker
type BreakerStatus struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Counts Counts `json:"counts"`
}

// CircuitBreakerRegistry holds one breaker per known provider service. The
// map is populated once at construction and never mutated afterward, so it
// is safe to read concurrently without synchronization.
type CircuitBreakerRegistry struct {
	breakers map[string]Breaker
	logger   *logging.Logger
}

// NewCircuitBreakerRegistry creates a breaker for every named service using
// the given factory. A nil factory uses the built-in CircuitBreaker with
// metrics wired to state transitions.
func NewCircuitBreakerRegistry(services []string, config BreakerConfig, factory BreakerFactory, m *metrics.Metrics) *CircuitBreakerRegistry {
	if factory == nil {
		factory = func(service string, cfg BreakerConfig) Breaker {
			cfg.Name = service
			userHook := cfg.OnStateChange
			cfg.OnStateChange = func(name string, from, to CircuitState) {
				m.RecordBreakerTransition(name, from.String(), to.String())
				m.UpdateBreakerState(name, int(to))
				if userHook != nil {
					userHook(name, from, to)
				}
			}
			return NewCircuitBreaker(cfg)
		}
	}

	registry := &CircuitBreakerRegistry{
		breakers: make(map[string]Breaker, len(services)),
		logger:   logging.GetLogger(),
	}

	for _, service := range services {
		if _, exists := registry.breakers[service]; exists {
			continue
		}
		registry.breakers[service] = factory(service, config)
	}

	registry.logger.Debug("Circuit breaker registry initialized", "services", len(registry.breakers))
	return registry
}

// Get returns the breaker registered for a service
func (r *CircuitBreakerRegistry) Get(service string) (Breaker, bool) {
	breaker, ok := r.breakers[service]
	return breaker, ok
}

// Services returns the sorted list of services with a registered breaker
func (r *CircuitBreakerRegistry) Services() []string {
	services := make([]string, 0, len(r.breakers))
	for service := range r.breakers {
		services = append(services, service)
	}
	sort.Strings(services)
	return services
}

// Status returns a snapshot of every registered breaker
func (r *CircuitBreakerRegistry) Status() map[string]BreakerStatus {
	status := make(map[string]BreakerStatus, len(r.breakers))
	for service, breaker := range r.breakers {
		status[service] = BreakerStatus{
			Name:   breaker.Name(),
			State:  breaker.State().String(),
			Counts: breaker.Counts(),
		}
	}
	return status
}

package resilience

import (
	"context"

	"github.com/voyago/voyago-travel-assistant/pkg/logging"
	"github.com/voyago/voyago-travel-assistant/pkg/mcp"
	"github.com/voyago/voyago-travel-assistant/pkg/metrics"
)

// AvailabilityChecker reports whether a provider service is currently
// usable. The orchestrator wires the provider health tracker here; tests can
// inject their own. A configured checker is consulted in addition to the
// transport's own capability query, never instead of it.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, service string) bool
}

// ParamAdapter translates call parameters from a primary provider's shape
// to a substitute provider's shape. Adapters are registered per
// (source, target) pair; parameter shapes between alternative providers are
// static and known at configuration time.
type ParamAdapter func(params mcp.Params) mcp.Params

type adapterKey struct {
	from string
	to   string
}

// AlternativeProviderRegistry holds the ordered substitute lists for each
// primary provider and performs substitution when a primary fails. The
// substitute table is read-only after initialization.
type AlternativeProviderRegistry struct {
	alternatives map[string][]string
	adapters     map[adapterKey]ParamAdapter
	transport    mcp.Transport
	availability AvailabilityChecker
	logger       *logging.Logger
	metrics      *metrics.Metrics
}

// NewAlternativeProviderRegistry creates a registry over the given
// substitute table. Availability defaults to the transport's own check.
func NewAlternativeProviderRegistry(transport mcp.Transport, table map[string][]string, m *metrics.Metrics) *AlternativeProviderRegistry {
	alternatives := make(map[string][]string, len(table))
	for service, alts := range table {
		alternatives[service] = append([]string(nil), alts...)
	}

	return &AlternativeProviderRegistry{
		alternatives: alternatives,
		adapters:     make(map[adapterKey]ParamAdapter),
		transport:    transport,
		logger:       logging.GetLogger(),
		metrics:      m,
	}
}

// RegisterAdapter installs a parameter adapter for a (source, target)
// provider pair. Must be called during setup, before concurrent use.
func (r *AlternativeProviderRegistry) RegisterAdapter(from, to string, adapter ParamAdapter) {
	r.adapters[adapterKey{from: from, to: to}] = adapter
}

// SetAvailabilityChecker adds a second availability gate on top of the
// transport's. Must be called during setup, before concurrent use.
func (r *AlternativeProviderRegistry) SetAvailabilityChecker(checker AvailabilityChecker) {
	r.availability = checker
}

// HasAlternatives reports whether substitutes are configured for a service
func (r *AlternativeProviderRegistry) HasAlternatives(service string) bool {
	return len(r.alternatives[service]) > 0
}

// Alternatives returns a copy of the configured substitutes for a service
func (r *AlternativeProviderRegistry) Alternatives(service string) []string {
	return append([]string(nil), r.alternatives[service]...)
}

// ConfiguredServices returns the number of services with substitutes
func (r *AlternativeProviderRegistry) ConfiguredServices() int {
	return len(r.alternatives)
}

// TrySubstitutes iterates the configured substitutes for the original
// service in order and returns the first success. A single failed attempt
// per candidate is sufficient to move to the next; no partial retries happen
// within this path.
func (r *AlternativeProviderRegistry) TrySubstitutes(ctx context.Context, originalService, method string, params mcp.Params) *FallbackResult {
	candidates := r.alternatives[originalService]
	if len(candidates) == 0 {
		return failureResult(StrategyAlternativeService, "No alternative services available").
			withMeta("original_service", originalService)
	}

	for _, candidate := range candidates {
		if !r.isAvailable(ctx, candidate) {
			r.logger.Debug("Skipping unavailable alternative",
				"original_service", originalService,
				"alternative_service", candidate,
			)
			continue
		}

		adapted := r.adaptParams(originalService, candidate, params)
		result, err := r.transport.Invoke(ctx, candidate, method, adapted)
		r.metrics.RecordProviderInvocation(candidate, err)
		r.metrics.RecordSubstitution(originalService, candidate, err == nil)

		if err != nil {
			r.logger.Warn("Alternative service failed",
				"original_service", originalService,
				"alternative_service", candidate,
				"method", method,
				"error", err.Error(),
			)
			continue
		}

		return successResult(StrategyAlternativeService, result).
			withMeta("original_service", originalService).
			withMeta("alternative_service", candidate)
	}

	return failureResult(StrategyAlternativeService, "All alternative services failed").
		withMeta("original_service", originalService).
		withMeta("attempted", len(candidates))
}

// isAvailable requires both the transport's capability query and the
// configured checker (when set) to pass.
func (r *AlternativeProviderRegistry) isAvailable(ctx context.Context, service string) bool {
	if !r.transport.IsAvailable(ctx, service) {
		return false
	}
	if r.availability != nil {
		return r.availability.IsAvailable(ctx, service)
	}
	return true
}

// adaptParams applies the registered adapter for the pair, defaulting to
// pass-through plus tags recording the substitution.
func (r *AlternativeProviderRegistry) adaptParams(from, to string, params mcp.Params) mcp.Params {
	if adapter, ok := r.adapters[adapterKey{from: from, to: to}]; ok {
		return adapter(params)
	}

	adapted := make(mcp.Params, len(params)+2)
	for k, v := range params {
		adapted[k] = v
	}
	adapted["_adapted_from"] = from
	adapted["_adapted_to"] = to
	return adapted
}

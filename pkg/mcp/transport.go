// Package mcp defines the boundary to the MCP-style provider transport.
//
// The transport is the only component that produces real provider data; the
// resilience layer consumes it through the Transport interface and never
// looks inside provider payloads.
package mcp

import "context"

// Params carries the provider call parameters. Values must be
// JSON-serializable; the resilience layer fingerprints them for caching.
type Params = map[string]interface{}

// Transport performs provider operations against a concrete backend
// (flight search, accommodation search, maps, weather).
type Transport interface {
	// Invoke calls method on the named provider service and returns the
	// provider's payload or an error.
	Invoke(ctx context.Context, service, method string, params Params) (interface{}, error)

	// IsAvailable reports whether the named service is currently usable.
	// It is consulted during alternative-provider substitution only.
	IsAvailable(ctx context.Context, service string) bool
}

// TransportFunc adapts a function to the Transport interface. Availability
// defaults to true; use a full implementation when health gating matters.
type TransportFunc func(ctx context.Context, service, method string, params Params) (interface{}, error)

// Invoke implements Transport
func (f TransportFunc) Invoke(ctx context.Context, service, method string, params Params) (interface{}, error) {
	return f(ctx, service, method, params)
}

// IsAvailable implements Transport
func (f TransportFunc) IsAvailable(ctx context.Context, service string) bool {
	return true
}

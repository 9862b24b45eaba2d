// Package metrics provides Prometheus metrics collection for medioxide components.
//
// All metrics are optional - if not initialized, components use no-op
// implementations with zero overhead, so the server runs the same with or
// without a metrics endpoint.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	serverMetrics := prometheus.NewServerMetrics()
//	indexMetrics := prometheus.NewIndexMetrics()
//
//	// Or use nil for no-op behavior
//	adapter := fileserver.New(config, resolver, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all medioxide metrics.
	// Protected by registryOnce for write-once, read-many access.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// This must be called before creating any Prometheus-backed metrics. It's safe
// to call multiple times - subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil if InitRegistry
// has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// Package metrics defines metrics interfaces for the runtime's core
// subsystems. Every interface is optional: components accept a nil metrics
// value and skip collection entirely, so metrics are zero-overhead unless
// InitRegistry is called.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	enabled  bool
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection and returns the registry backing
// it. Safe to call more than once; later calls return the same registry.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the active registry, creating one if necessary.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return registry
}

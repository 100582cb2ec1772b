// Package metrics defines the observability interfaces of the CDAP runtime
// and owns the Prometheus registry they are backed by.
//
// All metrics interfaces are optional: passing nil disables collection with
// zero overhead.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registryMu sync.RWMutex
	registry   *prometheus.Registry
)

// InitRegistry creates the process-wide metrics registry with the standard
// Go runtime and process collectors. Calling it twice is a no-op.
func InitRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()

	if registry != nil {
		return
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// Handler returns the HTTP handler exposing the registry in the Prometheus
// text format, or nil when metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

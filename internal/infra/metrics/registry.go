package metrics

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registry is private to the service so tests and repeated wiring never
// collide with the global default registry.
var (
	registry = prometheus.NewRegistry()
	once     sync.Once
	pending  []prometheus.Collector
)

// register is called from init in each metrics file.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister adds every declared collector plus the Go runtime and process
// collectors. Safe to call more than once.
func MustRegister() {
	once.Do(func() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry.MustRegister(pending...)
	})
}

// Handler serves the service registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Package metrics exposes auth activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/goliatone/go-storefront-auth"
)

// Collector counts activity events. It is an auth.ActivitySink so it can be
// fanned out next to the logging sink.
type Collector struct {
	events      *prometheus.CounterVec
	failures    *prometheus.CounterVec
	roleChanges *prometheus.CounterVec
}

var _ auth.ActivitySink = (*Collector)(nil)

// NewCollector creates the collector and registers its metrics on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_auth_events_total",
			Help: "Auth activity events by type",
		}, []string{"event"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_auth_failures_total",
			Help: "Failed auth operations by event type and error code",
		}, []string{"event", "code"}),
		roleChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_auth_role_changes_total",
			Help: "Role changes by target role",
		}, []string{"to"}),
	}

	reg.MustRegister(
		c.events,
		c.failures,
		c.roleChanges,
	)

	return c
}

// Record implements auth.ActivitySink
func (c *Collector) Record(_ context.Context, event auth.ActivityEvent) error {
	name := string(event.EventType)
	c.events.WithLabelValues(name).Inc()

	if code := event.ErrorCode(); code != "" {
		c.failures.WithLabelValues(name, code).Inc()
	}

	if event.EventType == auth.ActivityEventRoleChanged && event.ToRole != "" {
		c.roleChanges.WithLabelValues(string(event.ToRole)).Inc()
	}

	return nil
}

// Handler serves the registry in the Prometheus exposition format
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NewMux mounts Handler on /metrics for the dedicated metrics listener
func NewMux(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// Package metrics exposes poller counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the poller's Prometheus metrics on a private registry,
// so multiple collectors (e.g. in tests) never collide.
type Collector struct {
	registry *prometheus.Registry

	eventsProcessed prometheus.Counter
	unknownPersons  prometheus.Counter
	duplicateScans  prometheus.Counter
	pollErrors      prometheus.Counter
	presences       prometheus.Counter
	presentToday    prometheus.Gauge
}

// NewCollector creates and registers all poller metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_events_processed_total",
			Help: "Total number of raw events newly marked processed",
		}),
		unknownPersons: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_unknown_person_events_total",
			Help: "Total number of events referencing a person absent from the roster",
		}),
		duplicateScans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_duplicate_scans_total",
			Help: "Total number of events for a person already marked present that day",
		}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_poll_errors_total",
			Help: "Total number of abandoned poll cycles (connect or read failure)",
		}),
		presences: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_presences_total",
			Help: "Total number of first-seen presence markers written",
		}),
		presentToday: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_present_today",
			Help: "Number of persons marked present on the active day",
		}),
	}

	c.registry.MustRegister(
		c.eventsProcessed,
		c.unknownPersons,
		c.duplicateScans,
		c.pollErrors,
		c.presences,
		c.presentToday,
	)

	return c
}

// RecordProcessed counts one newly processed event key.
func (c *Collector) RecordProcessed() {
	c.eventsProcessed.Inc()
}

// RecordUnknownPerson counts one event for a person not on the roster.
func (c *Collector) RecordUnknownPerson() {
	c.unknownPersons.Inc()
}

// RecordDuplicateScan counts one repeat scan within a day.
func (c *Collector) RecordDuplicateScan() {
	c.duplicateScans.Inc()
}

// RecordPollError counts one abandoned poll cycle.
func (c *Collector) RecordPollError() {
	c.pollErrors.Inc()
}

// RecordPresence counts one new presence marker.
func (c *Collector) RecordPresence() {
	c.presences.Inc()
}

// SetPresentToday sets the present-count gauge for the active day.
func (c *Collector) SetPresentToday(n int) {
	c.presentToday.Set(float64(n))
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

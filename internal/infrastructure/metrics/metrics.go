// Package metrics exposes the bridge's Prometheus metrics.
//
// A Metrics value owns a private registry with the Go and process
// collectors, counts events by type (as an event sink) and commands by
// source and outcome (as a command recorder), and samples session
// statistics at scrape time.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-zwave/internal/commands"
	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

const namespace = "graylogic_zwave"

// StatsSource supplies session statistics. *zwave.Session satisfies it.
type StatsSource interface {
	Stats() zw.Stats
}

// Metrics holds the registry and the bridge's own collectors.
type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	commands *prometheus.CounterVec
}

// New creates a registry and registers the standard collectors plus the
// session statistics read from source. source may be nil.
func New(source StatsSource) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events emitted by the dispatcher, by type.",
		}, []string{"type"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands run against the network, by source, command and outcome.",
		}, []string{"source", "command", "outcome"}),
	}
	reg.MustRegister(m.events, m.commands)

	if source != nil {
		m.registerSession(source)
	}
	return m
}

func (m *Metrics) registerSession(source StatsSource) {
	gauge := func(name, help string, fn func(zw.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(source.Stats()) })
	}
	counter := func(name, help string, fn func(zw.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn(source.Stats())) })
	}

	m.registry.MustRegister(
		gauge("connected", "1 while a controller is attached.", func(s zw.Stats) float64 { return boolFloat(s.Connected) }),
		gauge("driver_ready", "1 once the driver reported ready.", func(s zw.Stats) float64 { return boolFloat(s.Ready) }),
		gauge("nodes", "Nodes in the cache.", func(s zw.Stats) float64 { return float64(s.Nodes) }),
		gauge("queue_depth", "Notifications waiting for the consumer.", func(s zw.Stats) float64 { return float64(s.QueueDepth) }),
		counter("notifications_received_total", "Notifications accepted from the driver.", func(s zw.Stats) uint64 { return s.Received }),
		counter("notifications_dropped_total", "Notifications dropped because the queue was full.", func(s zw.Stats) uint64 { return s.Dropped }),
		counter("notifications_unhandled_total", "Notifications of a type the dispatcher ignores.", func(s zw.Stats) uint64 { return s.Unhandled }),
	)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// HandleEvent implements zwave.EventSink.
func (m *Metrics) HandleEvent(e zw.Event) {
	m.events.WithLabelValues(string(e.Type)).Inc()
}

// RecordCommand implements zwave.CommandRecorder. Unknown command names are
// counted as "other" to bound label cardinality.
func (m *Metrics) RecordCommand(_ context.Context, source string, cmd zw.Command, err error) {
	outcome := commands.Classify(err)
	name := cmd.Name
	if outcome == commands.OutcomeUnknownCommand {
		name = "other"
	}
	m.commands.WithLabelValues(source, name, string(outcome)).Inc()
}

// GaugeFunc registers a gauge sampled from fn at scrape time, for
// components that keep their own counters (journal, MQTT bridge, hub).
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

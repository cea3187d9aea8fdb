// Package metrics exposes Prometheus metrics for plugin reloads and
// command invocations.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/hotcalc/internal/command"
	"github.com/dshills/hotcalc/internal/plugin"
)

// Invocation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeArity    = "arity_mismatch"
	OutcomeDomain   = "domain_error"
	OutcomeError    = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Plugin metrics
	PluginEventsTotal *prometheus.CounterVec
	PluginsLoaded     prometheus.Gauge

	// Command metrics
	CommandInvocationsTotal *prometheus.CounterVec
	CommandDuration         *prometheus.HistogramVec
	CommandsRegistered      prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		PluginEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotcalc_plugin_events_total",
				Help: "Plugin manager events by result and triggering file change",
			},
			[]string{"type", "trigger"},
		),
		PluginsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hotcalc_plugins_loaded",
				Help: "Number of commands currently backed by plugins",
			},
		),
		CommandInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotcalc_command_invocations_total",
				Help: "Total number of command invocations",
			},
			[]string{"command", "outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hotcalc_command_duration_seconds",
				Help:    "Command invocation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 10, 7),
			},
			[]string{"command"},
		),
		CommandsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hotcalc_commands_registered",
				Help: "Number of commands in the registry",
			},
		),
	}

	registry.MustRegister(
		m.PluginEventsTotal,
		m.PluginsLoaded,
		m.CommandInvocationsTotal,
		m.CommandDuration,
		m.CommandsRegistered,
	)

	return m
}

// ObservePluginEvent records a plugin manager event. Its signature matches
// plugin.EventHandler.
func (m *Metrics) ObservePluginEvent(ev plugin.ManagerEvent) {
	m.PluginEventsTotal.WithLabelValues(ev.Type.String(), ev.Trigger.String()).Inc()
}

// ObserveRegistry sets the command gauges from a registry snapshot.
func (m *Metrics) ObserveRegistry(commands []*command.Descriptor) {
	plugins := 0
	for _, d := range commands {
		if !d.IsBuiltin() {
			plugins++
		}
	}
	m.CommandsRegistered.Set(float64(len(commands)))
	m.PluginsLoaded.Set(float64(plugins))
}

// ObserveInvocation records one command invocation.
func (m *Metrics) ObserveInvocation(name string, elapsed time.Duration, err error) {
	outcome := Outcome(err)
	if outcome == OutcomeNotFound {
		// Unknown names are user input; keep label cardinality bounded.
		name = "unknown"
	}
	m.CommandInvocationsTotal.WithLabelValues(name, outcome).Inc()
	if outcome != OutcomeNotFound {
		m.CommandDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

// Outcome classifies an invocation error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, command.ErrCommandNotFound):
		return OutcomeNotFound
	case errors.Is(err, command.ErrArityMismatch):
		return OutcomeArity
	case errors.Is(err, command.ErrDomain):
		return OutcomeDomain
	default:
		return OutcomeError
	}
}

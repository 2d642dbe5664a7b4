package hashhistory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the protocol's Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "hashhistory").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics collects protocol counters. A nil *Metrics records nothing.
//
// Metrics collected:
//   - hashhistory_writes_total: fragment writes by method and strategy
//   - hashhistory_redundant_writes_total: push/replace onto the current path
//   - hashhistory_hash_corrections_total: malformed fragments rewritten
//   - hashhistory_duplicate_events_total: repeated notifications dropped
//   - hashhistory_location_changes_total: locations delivered to listeners
//   - hashhistory_persisted_states_total: states saved to StateStorage
//   - hashhistory_listeners: currently attached listeners
type Metrics struct {
	writes          *prometheus.CounterVec
	redundantWrites *prometheus.CounterVec
	corrections     prometheus.Counter
	duplicates      prometheus.Counter
	changes         prometheus.Counter
	persists        prometheus.Counter
	listeners       prometheus.Gauge
}

// NewMetrics registers the protocol metrics. Protocols sharing a registry
// must share one Metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "hashhistory",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	counter := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}

	return &Metrics{
		writes: factory.NewCounterVec(
			counter("writes_total", "Total number of fragment writes"),
			[]string{"method", "strategy"}),
		redundantWrites: factory.NewCounterVec(
			counter("redundant_writes_total", "Total number of push/replace calls targeting the current fragment"),
			[]string{"method"}),
		corrections: factory.NewCounter(
			counter("hash_corrections_total", "Total number of malformed fragments rewritten")),
		duplicates: factory.NewCounter(
			counter("duplicate_events_total", "Total number of repeated hashchange notifications dropped")),
		changes: factory.NewCounter(
			counter("location_changes_total", "Total number of locations delivered to listeners")),
		persists: factory.NewCounter(
			counter("persisted_states_total", "Total number of location states saved out of band")),
		listeners: factory.NewGauge(prometheus.GaugeOpts(
			counter("listeners", "Number of attached location listeners"))),
	}
}

// The recorders below are no-ops on a nil *Metrics.

func (m *Metrics) write(method, strategy string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(method, strategy).Inc()
}

func (m *Metrics) redundant(method string) {
	if m == nil {
		return
	}
	m.redundantWrites.WithLabelValues(method).Inc()
}

func (m *Metrics) correction() {
	if m == nil {
		return
	}
	m.corrections.Inc()
}

func (m *Metrics) duplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *Metrics) change() {
	if m == nil {
		return
	}
	m.changes.Inc()
}

func (m *Metrics) persisted() {
	if m == nil {
		return
	}
	m.persists.Inc()
}

func (m *Metrics) listenerAdded() {
	if m == nil {
		return
	}
	m.listeners.Inc()
}

func (m *Metrics) listenerRemoved() {
	if m == nil {
		return
	}
	m.listeners.Dec()
}

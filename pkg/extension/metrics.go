package extension

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/trackstate/pkg/state"
)

// MetricsConfig configures the Prometheus extension.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "trackstate").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for writes per batch.
	// Default: 1, 2, 5, 10, 25, 50, 100, 250
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus extension.
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

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "trackstate",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus collectors shared by every extension built
// against one registry.
type metrics struct {
	writesTotal        *prometheus.CounterVec
	notificationsTotal prometheus.Counter
	passesTotal        prometheus.Counter
	batchWrites        prometheus.Histogram
	activeStores       prometheus.Gauge
}

var (
	registeredMu sync.Mutex
	registered   = map[prometheus.Registerer]*metrics{}
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		writesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of applied writes by operation and action",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "action"}),

		notificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of observer callbacks run",
			ConstLabels: config.ConstLabels,
		}),

		passesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notification_passes_total",
			Help:        "Total number of notification passes over subscribers",
			ConstLabels: config.ConstLabels,
		}),

		batchWrites: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_writes",
			Help:        "Number of writes applied inside one outermost batch",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		activeStores: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_stores",
			Help:        "Number of stores created and not destroyed",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// metricsFor returns the collectors for config.Registry, registering them
// on first use.
func metricsFor(config MetricsConfig) *metrics {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	if m, ok := registered[config.Registry]; ok {
		return m
	}
	m := initMetrics(config)
	registered[config.Registry] = m
	return m
}

// PrometheusExtension records store activity as Prometheus metrics.
type PrometheusExtension struct {
	m *metrics

	mu      sync.Mutex
	batches map[*state.Store]int
}

// Prometheus creates an extension that collects Prometheus metrics for the
// stores it is registered with.
//
// Metrics collected:
//   - trackstate_writes_total: Counter of applied writes by op (set, merge)
//     and action (insert, update, delete)
//   - trackstate_notifications_total: Counter of observer callbacks run
//   - trackstate_notification_passes_total: Counter of notification passes
//   - trackstate_batch_writes: Histogram of writes per outermost batch
//   - trackstate_active_stores: Gauge of live stores
//
// Example:
//
//	s, _ := state.New(doc, state.WithExtensions(
//	    extension.Prometheus(extension.WithNamespace("myapp")),
//	))
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) *PrometheusExtension {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &PrometheusExtension{
		m:       metricsFor(config),
		batches: make(map[*state.Store]int),
	}
}

// Name implements state.Extension.
func (p *PrometheusExtension) Name() string { return "prometheus" }

// OnInit implements state.InitHook.
func (p *PrometheusExtension) OnInit(*state.Store) {
	p.m.activeStores.Inc()
}

// OnDestroy implements state.DestroyHook.
func (p *PrometheusExtension) OnDestroy(s *state.Store) {
	p.m.activeStores.Dec()
	p.mu.Lock()
	delete(p.batches, s)
	p.mu.Unlock()
}

// OnSet implements state.SetHook.
func (p *PrometheusExtension) OnSet(ev state.SetEvent) {
	p.m.writesTotal.WithLabelValues(opOf(ev), actionName(actionOf(ev))).Inc()
	if ev.Store.InBatch() {
		p.mu.Lock()
		p.batches[ev.Store]++
		p.mu.Unlock()
	}
}

// OnNotify implements state.NotifyHook.
func (p *PrometheusExtension) OnNotify(ev state.NotifyEvent) {
	p.m.passesTotal.Inc()
	p.m.notificationsTotal.Add(float64(ev.Observers))
}

// OnBatchStart implements state.BatchHook.
func (p *PrometheusExtension) OnBatchStart(s *state.Store) {
	p.mu.Lock()
	p.batches[s] = 0
	p.mu.Unlock()
}

// OnBatchFinish implements state.BatchHook.
func (p *PrometheusExtension) OnBatchFinish(s *state.Store) {
	p.mu.Lock()
	n := p.batches[s]
	delete(p.batches, s)
	p.mu.Unlock()
	p.m.batchWrites.Observe(float64(n))
}

// Package metrics records pass signals in a Prometheus registry.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

// Collector implements ports.MetricsCollector on a private registry. The
// standard metrics are registered up front; other names are created on first
// use with the label names seen then.
type Collector struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	logger     ports.Logger
}

// NewCollector creates a collector with the standard metrics registered.
func NewCollector(logger ports.Logger) *Collector {
	c := &Collector{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		logger:     logger,
	}

	c.counters[ports.MetricItemsTotal] = c.mustRegister(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ports.MetricItemsTotal,
		Help: "Config items processed, by kind and action.",
	}, []string{"kind", "action"})).(*prometheus.CounterVec)

	c.counters[ports.MetricAPICallsTotal] = c.mustRegister(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ports.MetricAPICallsTotal,
		Help: "Controller API calls, by operation.",
	}, []string{"operation"})).(*prometheus.CounterVec)

	c.counters[ports.MetricPassesTotal] = c.mustRegister(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ports.MetricPassesTotal,
		Help: "Reconciliation passes, by status.",
	}, []string{"status"})).(*prometheus.CounterVec)

	c.histograms[ports.MetricTaskWaitSeconds] = c.mustRegister(prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    ports.MetricTaskWaitSeconds,
		Help:    "Seconds spent waiting for controller tasks, by kind.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1200},
	}, []string{"kind"})).(*prometheus.HistogramVec)

	return c
}

func (c *Collector) mustRegister(col prometheus.Collector) prometheus.Collector {
	c.registry.MustRegister(col)
	return col
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes every metric to path in the text exposition format,
// for the node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// IncCounter increments the named counter.
func (c *Collector) IncCounter(ctx context.Context, name string, labels map[string]string) {
	c.mu.Lock()
	vec, ok := c.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, labelNames(labels))
		if !c.register(ctx, name, vec) {
			c.mu.Unlock()
			return
		}
		c.counters[name] = vec
	}
	c.mu.Unlock()

	counter, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		c.warn(ctx, name, err)
		return
	}
	counter.Inc()
}

// SetGauge sets the named gauge.
func (c *Collector) SetGauge(ctx context.Context, name string, value float64, labels map[string]string) {
	c.mu.Lock()
	vec, ok := c.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, labelNames(labels))
		if !c.register(ctx, name, vec) {
			c.mu.Unlock()
			return
		}
		c.gauges[name] = vec
	}
	c.mu.Unlock()

	gauge, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		c.warn(ctx, name, err)
		return
	}
	gauge.Set(value)
}

// ObserveHistogram records value in the named histogram.
func (c *Collector) ObserveHistogram(ctx context.Context, name string, value float64, labels map[string]string) {
	c.mu.Lock()
	vec, ok := c.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: name, Buckets: prometheus.DefBuckets}, labelNames(labels))
		if !c.register(ctx, name, vec) {
			c.mu.Unlock()
			return
		}
		c.histograms[name] = vec
	}
	c.mu.Unlock()

	observer, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		c.warn(ctx, name, err)
		return
	}
	observer.Observe(value)
}

// register must be called with c.mu held.
func (c *Collector) register(ctx context.Context, name string, col prometheus.Collector) bool {
	if err := c.registry.Register(col); err != nil {
		c.warn(ctx, name, err)
		return false
	}
	return true
}

func (c *Collector) warn(ctx context.Context, name string, err error) {
	if c.logger != nil {
		c.logger.Warn(ctx, "metric dropped", "metric", name, "error", err)
	}
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Summary renders counters as "name{labels} value" lines, sorted, for
// human-readable output.
func (c *Collector) Summary() ([]string, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	var lines []string
	for _, family := range families {
		for _, m := range family.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			pairs := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				pairs = append(pairs, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", family.GetName(), strings.Join(pairs, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	return lines, nil
}

var _ ports.MetricsCollector = (*Collector)(nil)

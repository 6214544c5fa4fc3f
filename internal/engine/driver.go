// Package engine drives reconciliation passes: every config item walks
// validate, observe, plan, act, await and verify in input order.
package engine

import (
	"context"
	"fmt"

	"k8s.io/utils/clock"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
	"github.com/alexisbeaulieu97/ccreconcile/internal/tasks"
)

// KindKey is the reserved config key that selects an item's kind.
const KindKey = "kind"

// ItemHook observes every finished item.
type ItemHook func(ctx context.Context, result reconcile.ItemResult)

// Driver runs reconciliation passes against one controller.
type Driver struct {
	gw       ports.Gateway
	registry ports.ResourceRegistry
	tracker  ports.TaskTracker
	clock    clock.Clock
	logger   ports.Logger
	metrics  ports.MetricsCollector
	hooks    []ItemHook
}

// Option customises a Driver.
type Option func(*Driver)

// WithLogger attaches a logger.
func WithLogger(l ports.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(d *Driver) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithTracker replaces the per-pass task tracker.
func WithTracker(t ports.TaskTracker) Option {
	return func(d *Driver) { d.tracker = t }
}

// WithClock sets the clock handed to per-pass trackers.
func WithClock(c clock.Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithItemHook registers a callback invoked after each item.
func WithItemHook(h ItemHook) Option {
	return func(d *Driver) {
		if h != nil {
			d.hooks = append(d.hooks, h)
		}
	}
}

// New creates a driver.
func New(gw ports.Gateway, registry ports.ResourceRegistry, opts ...Option) *Driver {
	d := &Driver{
		gw:       gw,
		registry: registry,
		clock:    clock.RealClock{},
		metrics:  ports.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// work pairs an item with the resource adapting its kind.
type work struct {
	item *reconcile.Item
	res  ports.Resource
}

func (w work) label() string {
	return fmt.Sprintf("%s %s", w.item.Kind(), w.item.Key())
}

// Run executes one pass and returns its report. Validation problems and an
// unsupported controller version abort the pass before any write; every
// other failure is confined to its item.
func (d *Driver) Run(ctx context.Context, cfg reconcile.PassConfig, records []schema.Record) reconcile.Report {
	cfg = cfg.ApplyDefaults()
	builder := reconcile.NewReportBuilder(cfg.DryRun)
	start := d.clock.Now()

	items, err := d.prepare(cfg, records)
	if err != nil {
		d.log(ctx, "warn", "configuration rejected", "error", err)
		builder.Abort(err)
		return builder.Build()
	}

	if err := d.checkVersion(ctx, cfg, items); err != nil {
		d.log(ctx, "warn", "controller version check failed", "error", err)
		builder.Abort(err)
		return builder.Build()
	}

	tracker := d.trackerFor(cfg)
	for _, w := range items {
		result := d.reconcileItem(ctx, cfg, tracker, w)
		builder.Add(result)
		d.finished(ctx, result)
	}

	report := builder.Build()
	d.log(ctx, "info", "pass finished",
		"status", string(report.Status),
		"changed", report.Changed,
		"items", len(items),
		"duration_ms", d.clock.Since(start).Milliseconds(),
	)
	return report
}

func (d *Driver) trackerFor(cfg reconcile.PassConfig) ports.TaskTracker {
	if d.tracker != nil {
		return d.tracker
	}
	opts := []tasks.Option{tasks.WithClock(d.clock)}
	if d.logger != nil {
		opts = append(opts, tasks.WithLogger(d.logger.With("component", "tracker")))
	}
	return tasks.New(d.gw, cfg.TaskTimeout, cfg.PollInterval, opts...)
}

func (d *Driver) finished(ctx context.Context, result reconcile.ItemResult) {
	d.metrics.IncCounter(ctx, ports.MetricItemsTotal, map[string]string{
		"kind":   result.Kind,
		"action": string(result.Action),
	})

	fields := []interface{}{
		"kind", result.Kind,
		"natural_key", result.NaturalKey,
		"action", string(result.Action),
	}
	if result.Error != nil {
		d.log(ctx, "warn", "item failed", append(fields, "error", result.Error)...)
	} else {
		d.log(ctx, "info", "item reconciled", fields...)
	}

	for _, h := range d.hooks {
		h(ctx, result)
	}
}

func (d *Driver) log(ctx context.Context, level, msg string, fields ...interface{}) {
	if d.logger == nil {
		return
	}
	switch level {
	case "debug":
		d.logger.Debug(ctx, msg, fields...)
	case "warn":
		d.logger.Warn(ctx, msg, fields...)
	case "error":
		d.logger.Error(ctx, msg, fields...)
	default:
		d.logger.Info(ctx, msg, fields...)
	}
}

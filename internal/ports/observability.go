package ports

import "context"

// Standard metric names.
const (
	// MetricItemsTotal counts processed items, labelled by kind and action.
	MetricItemsTotal = "ccreconcile_items_total"
	// MetricAPICallsTotal counts controller calls, labelled by operation.
	MetricAPICallsTotal = "ccreconcile_api_calls_total"
	// MetricTaskWaitSeconds observes time spent awaiting tasks, labelled by kind.
	MetricTaskWaitSeconds = "ccreconcile_task_wait_seconds"
	// MetricPassesTotal counts passes, labelled by status.
	MetricPassesTotal = "ccreconcile_passes_total"
)

// MetricsCollector records quantitative observability signals. Adapters may
// back onto Prometheus or any other sink.
type MetricsCollector interface {
	IncCounter(ctx context.Context, name string, labels map[string]string)
	SetGauge(ctx context.Context, name string, value float64, labels map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, labels map[string]string)
}

// NoopMetrics discards every signal.
type NoopMetrics struct{}

func (NoopMetrics) IncCounter(context.Context, string, map[string]string)                {}
func (NoopMetrics) SetGauge(context.Context, string, float64, map[string]string)         {}
func (NoopMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

func TestCollectorCountsStandardMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCollector(nil)

	c.IncCounter(ctx, ports.MetricItemsTotal, map[string]string{"kind": "transit", "action": "created"})
	c.IncCounter(ctx, ports.MetricItemsTotal, map[string]string{"kind": "transit", "action": "created"})
	c.IncCounter(ctx, ports.MetricItemsTotal, map[string]string{"kind": "site", "action": "none"})
	c.IncCounter(ctx, ports.MetricAPICallsTotal, map[string]string{"operation": "list"})
	c.ObserveHistogram(ctx, ports.MetricTaskWaitSeconds, 3.5, map[string]string{"kind": "transit"})

	require.Equal(t, 2.0, testutil.ToFloat64(c.counters[ports.MetricItemsTotal].WithLabelValues("transit", "created")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.counters[ports.MetricAPICallsTotal].WithLabelValues("list")))
	require.Equal(t, 1, testutil.CollectAndCount(c.histograms[ports.MetricTaskWaitSeconds]))
	require.Equal(t, 2, testutil.CollectAndCount(c.counters[ports.MetricItemsTotal]))
}

func TestCollectorCreatesAdHocMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCollector(nil)

	c.SetGauge(ctx, "ccreconcile_items_pending", 4, map[string]string{"kind": "site"})
	c.SetGauge(ctx, "ccreconcile_items_pending", 2, map[string]string{"kind": "site"})
	require.Equal(t, 2.0, testutil.ToFloat64(c.gauges["ccreconcile_items_pending"].WithLabelValues("site")))

	// Mismatched label sets are dropped instead of panicking.
	c.SetGauge(ctx, "ccreconcile_items_pending", 1, map[string]string{"other": "x"})
	require.Equal(t, 1, testutil.CollectAndCount(c.gauges["ccreconcile_items_pending"]))
}

func TestCollectorSummaryAndTextfile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCollector(nil)
	c.IncCounter(ctx, ports.MetricPassesTotal, map[string]string{"status": "ok"})

	lines, err := c.Summary()
	require.NoError(t, err)
	require.Equal(t, []string{`ccreconcile_passes_total{status="ok"} 1`}, lines)

	path := filepath.Join(t.TempDir(), "ccreconcile.prom")
	require.NoError(t, c.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `ccreconcile_passes_total{status="ok"} 1`))
}

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		payload := make(map[string]interface{})
		require.NoError(t, json.Unmarshal([]byte(line), &payload), "line %q", line)
		out = append(out, payload)
	}
	return out
}

func TestLoggerIncludesCorrelationIDAndLayer(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{
		Writer:    &buf,
		Level:     "debug",
		Layer:     "infrastructure",
		Component: "gateway",
	})
	require.NoError(t, err)

	ctx := ports.WithCorrelationID(context.Background(), "abc123")
	logger.Info(ctx, "request sent", "path", "/dna/intent/api/v1/sda/transitNetworks")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	payload := lines[0]
	require.Equal(t, "infrastructure", payload["layer"])
	require.Equal(t, "gateway", payload["component"])
	require.Equal(t, "abc123", payload["correlation_id"])
	require.Equal(t, "/dna/intent/api/v1/sda/transitNetworks", payload["path"])
	require.Equal(t, "request sent", payload["message"])
	require.Equal(t, "info", payload["level"])
}

func TestLoggerWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf})
	require.NoError(t, err)

	child := logger.With("component", "tracker")
	child.Warn(context.Background(), "status poll failed", "task_id", "t-1", "error", errors.New("boom"))

	payload := decodeLines(t, &buf)[0]
	require.Equal(t, "tracker", payload["component"])
	require.Equal(t, "t-1", payload["task_id"])
	require.Equal(t, "boom", payload["error"])
	require.Equal(t, "warn", payload["level"])
	require.NotContains(t, payload, "correlation_id")
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf, Level: "warning"})
	require.NoError(t, err)

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden")
	logger.Error(context.Background(), "shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "shown", lines[0]["message"])
}

func TestLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "verbose"})
	require.ErrorContains(t, err, `unknown log level "verbose"`)
}

func TestLoggerFileAppendAndTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccreconcile.log")

	write := func(appendMode bool, msg string) {
		logger, err := New(Options{FilePath: path, Append: appendMode})
		require.NoError(t, err)
		logger.Info(context.Background(), msg)
		require.NoError(t, logger.Close())
	}

	write(true, "first")
	write(true, "second")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(data), "\n"))

	write(false, "third")
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "\n"))
	require.Contains(t, string(data), "third")
}

func TestConsoleLoggerWritesText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf, Console: true, Component: "driver"})
	require.NoError(t, err)

	logger.Info(context.Background(), "item finished", "kind", "transit")

	out := buf.String()
	require.Contains(t, out, "item finished")
	require.Contains(t, out, "kind=transit")
	require.Contains(t, out, "component=driver")
}

func TestMergeFieldsOverridesKeepOrder(t *testing.T) {
	got := mergeFields(
		[]interface{}{"component", "gateway", "kind", "transit"},
		[]interface{}{"kind", "site", 42, "ignored", "key", "T1"},
		map[string]interface{}{"layer": "infrastructure", "correlation_id": ""},
	)
	require.Equal(t, []interface{}{"component", "gateway", "kind", "site", "key", "T1", "layer", "infrastructure"}, got)
}

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()
	logger.Info(context.Background(), "ignored")
	require.Same(t, logger, logger.With("k", "v"))
}

func TestBufferFlushesInOrder(t *testing.T) {
	buffer := NewBuffer(2)
	pending := buffer.Logger().With("component", "args")
	pending.Info(context.Background(), "one")
	pending.Warn(context.Background(), "two")
	pending.Error(context.Background(), "three")
	require.Equal(t, 2, buffer.Len())

	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf, Level: "debug"})
	require.NoError(t, err)
	buffer.Flush(logger)
	require.Zero(t, buffer.Len())

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	require.Equal(t, "two", lines[0]["message"])
	require.Equal(t, "three", lines[1]["message"])
	require.Equal(t, "args", lines[1]["component"])
}

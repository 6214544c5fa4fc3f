// Package logging adapts structured loggers to ports.Logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	cblog "github.com/charmbracelet/log"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel accepts debug, info, warn, warning, error and critical.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "critical":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Options configures a Logger.
type Options struct {
	// Writer receives entries when FilePath is empty. Defaults to stderr.
	Writer io.Writer
	// FilePath sends entries to a file, appended or truncated per Append.
	FilePath string
	Append   bool
	Level    string
	// Console renders human-readable lines instead of JSON.
	Console   bool
	Layer     string
	Component string
	Fields    map[string]interface{}
}

// sink writes one fully merged entry.
type sink interface {
	write(level Level, msg string, kv []interface{})
}

// Logger implements ports.Logger over zerolog, or over charmbracelet/log
// for console output.
type Logger struct {
	sink   sink
	fields []interface{}
	layer  string
	closer io.Closer
}

// New creates a Logger with the supplied options.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	var closer io.Closer
	if opts.FilePath != "" {
		flags := os.O_CREATE | os.O_WRONLY
		if opts.Append {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(opts.FilePath, flags, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writer, closer = f, f
	}

	var s sink
	if opts.Console {
		s = newConsoleSink(writer, level)
	} else {
		s = newJSONSink(writer, level)
	}

	fields := mapToFields(opts.Fields)
	if opts.Component != "" {
		fields = append(fields, "component", opts.Component)
	}
	layer := opts.Layer
	if layer == "" {
		layer = "infrastructure"
	}

	return &Logger{sink: s, fields: fields, layer: layer, closer: closer}, nil
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Debug emits a debug log entry.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelDebug, msg, fields...)
}

// Info emits an info log entry.
func (l *Logger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelInfo, msg, fields...)
}

// Warn emits a warning log entry.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelWarn, msg, fields...)
}

// Error emits an error log entry.
func (l *Logger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelError, msg, fields...)
}

// With derives a new logger with persistent fields.
func (l *Logger) With(fields ...interface{}) ports.Logger {
	if l == nil {
		return &NoOpLogger{}
	}
	next := make([]interface{}, len(l.fields), len(l.fields)+len(fields))
	copy(next, l.fields)
	next = append(next, fields...)
	return &Logger{sink: l.sink, fields: next, layer: l.layer}
}

func (l *Logger) log(ctx context.Context, level Level, msg string, fields ...interface{}) {
	if l == nil || l.sink == nil {
		return
	}
	extras := map[string]interface{}{"layer": l.layer}
	if id := ports.GetCorrelationID(ctx); id != "" {
		extras["correlation_id"] = id
	}
	l.sink.write(level, msg, mergeFields(l.fields, fields, extras))
}

type jsonSink struct {
	logger zerolog.Logger
}

func newJSONSink(w io.Writer, level Level) *jsonSink {
	return &jsonSink{logger: zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger()}
}

func (s *jsonSink) write(level Level, msg string, kv []interface{}) {
	event := s.logger.WithLevel(zerologLevel(level))
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		switch v := kv[i+1].(type) {
		case error:
			event = event.Str(key, v.Error())
		case fmt.Stringer:
			event = event.Str(key, v.String())
		default:
			event = event.Interface(key, v)
		}
	}
	event.Msg(msg)
}

func zerologLevel(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

type consoleSink struct {
	logger *cblog.Logger
}

func newConsoleSink(w io.Writer, level Level) *consoleSink {
	logger := cblog.NewWithOptions(w, cblog.Options{
		Level:           consoleLevel(level),
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	return &consoleSink{logger: logger}
}

func (s *consoleSink) write(level Level, msg string, kv []interface{}) {
	switch level {
	case LevelDebug:
		s.logger.Debug(msg, kv...)
	case LevelWarn:
		s.logger.Warn(msg, kv...)
	case LevelError:
		s.logger.Error(msg, kv...)
	default:
		s.logger.Info(msg, kv...)
	}
}

func consoleLevel(level Level) cblog.Level {
	switch level {
	case LevelDebug:
		return cblog.DebugLevel
	case LevelWarn:
		return cblog.WarnLevel
	case LevelError:
		return cblog.ErrorLevel
	}
	return cblog.InfoLevel
}

func mapToFields(input map[string]interface{}) []interface{} {
	if len(input) == 0 {
		return nil
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := make([]interface{}, 0, len(input)*2)
	for _, k := range keys {
		res = append(res, k, input[k])
	}
	return res
}

// mergeFields flattens key/value pairs. Later keys override earlier ones but
// keep their first position; extras are appended in key order.
func mergeFields(base []interface{}, additions []interface{}, extras map[string]interface{}) []interface{} {
	store := make(map[string]interface{})
	order := make([]string, 0)

	addPair := func(key string, value interface{}) {
		if key == "" {
			return
		}
		if _, exists := store[key]; !exists {
			order = append(order, key)
		}
		store[key] = value
	}

	process := func(values []interface{}) {
		for i := 0; i+1 < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			addPair(key, values[i+1])
		}
	}

	process(base)
	process(additions)

	extraKeys := make([]string, 0, len(extras))
	for key, value := range extras {
		if s, ok := value.(string); value == nil || (ok && s == "") {
			continue
		}
		extraKeys = append(extraKeys, key)
	}
	sort.Strings(extraKeys)
	for _, key := range extraKeys {
		addPair(key, extras[key])
	}

	result := make([]interface{}, 0, len(order)*2)
	for _, key := range order {
		result = append(result, key, store[key])
	}
	return result
}

var _ ports.Logger = (*Logger)(nil)

package logging

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

const defaultBufferLimit = 1000

type bufferedEntry struct {
	ctx    context.Context
	level  Level
	msg    string
	fields []interface{}
}

// Buffer holds entries logged while the argument file is still being read,
// before the configured logger exists. The oldest entries are dropped once
// the limit is reached.
type Buffer struct {
	mu      sync.Mutex
	limit   int
	entries []bufferedEntry
}

// NewBuffer creates a buffer holding at most limit entries (default 1000).
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = defaultBufferLimit
	}
	return &Buffer{limit: limit}
}

// Logger returns a ports.Logger that records into the buffer.
func (b *Buffer) Logger() ports.Logger {
	return &bufferLogger{buffer: b}
}

func (b *Buffer) add(entry bufferedEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == b.limit {
		b.entries = append(b.entries[:0], b.entries[1:]...)
	}
	b.entries = append(b.entries, entry)
}

// Len returns the number of pending entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Flush replays pending entries into delegate in order and empties the buffer.
func (b *Buffer) Flush(delegate ports.Logger) {
	if delegate == nil {
		return
	}
	b.mu.Lock()
	entries := b.entries
	b.entries = nil
	b.mu.Unlock()

	for _, e := range entries {
		switch e.level {
		case LevelDebug:
			delegate.Debug(e.ctx, e.msg, e.fields...)
		case LevelWarn:
			delegate.Warn(e.ctx, e.msg, e.fields...)
		case LevelError:
			delegate.Error(e.ctx, e.msg, e.fields...)
		default:
			delegate.Info(e.ctx, e.msg, e.fields...)
		}
	}
}

type bufferLogger struct {
	buffer *Buffer
	fields []interface{}
}

func (l *bufferLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.record(ctx, LevelDebug, msg, fields)
}

func (l *bufferLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.record(ctx, LevelInfo, msg, fields)
}

func (l *bufferLogger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.record(ctx, LevelWarn, msg, fields)
}

func (l *bufferLogger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.record(ctx, LevelError, msg, fields)
}

func (l *bufferLogger) With(fields ...interface{}) ports.Logger {
	return &bufferLogger{buffer: l.buffer, fields: append(append([]interface{}{}, l.fields...), fields...)}
}

func (l *bufferLogger) record(ctx context.Context, level Level, msg string, fields []interface{}) {
	l.buffer.add(bufferedEntry{
		ctx:    ctx,
		level:  level,
		msg:    msg,
		fields: append(append([]interface{}{}, l.fields...), fields...),
	})
}

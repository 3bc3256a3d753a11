// Package audit writes one JSON line per chat command to a dedicated log, so
// operators can see who called which API resource without reading debug logs.
package audit

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/erigo/internal/tracing"
	"github.com/rs/zerolog"
)

// Event statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

// Event is a single audit record. Metadata must never carry credentials.
type Event struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"` // user identity, e.g. tg:42
	Action    string                 `json:"action"`          // command name
	Status    string                 `json:"status"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// Logger records audit events. A nil *Logger discards everything.
type Logger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	closer io.Closer
}

// New returns an audit logger writing to w
func New(w io.Writer) *Logger {
	return &Logger{
		logger: zerolog.New(w),
	}
}

// Open returns an audit logger appending to the file at path
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	l := New(file)
	l.closer = file
	return l, nil
}

// Record writes event, filling the timestamp and the trace id from ctx
func (l *Logger) Record(ctx context.Context, event Event) {
	if l == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.TraceID == "" {
		event.TraceID = tracing.GetTraceID(ctx)
	}
	if event.Actor == "" {
		event.Actor = tracing.GetUser(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.logger.Log().
		Str("event_type", event.Type).
		Time("timestamp", event.Timestamp).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status)

	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	if len(event.Metadata) > 0 {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Send()
}

// RecordCommand records the outcome of a chat command
func (l *Logger) RecordCommand(ctx context.Context, command, status string, metadata map[string]interface{}) {
	l.Record(ctx, Event{
		Type:     "command",
		Action:   command,
		Status:   status,
		Metadata: metadata,
	})
}

// Close closes the underlying file, if any
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

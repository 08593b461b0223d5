// Package analytics records per-turn events. Emission is fire-and-forget: a
// slow or failing sink never delays or fails a turn.
package analytics

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// EventType names what happened.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventTurn           EventType = "turn"
	EventEvidence       EventType = "evidence"
)

// Event is one analytics record.
type Event struct {
	Type      EventType     `json:"type"`
	SessionID string        `json:"session_id"`
	UserID    string        `json:"user_id,omitempty"`
	UserRole  string        `json:"user_role,omitempty"`
	Action    string        `json:"action,omitempty"`
	Relevant  bool          `json:"relevant"`
	Responses int           `json:"responses"`
	Fallbacks int           `json:"fallbacks"`
	Duration  time.Duration `json:"duration"`
	Detail    string        `json:"detail,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Sink persists batches of events.
type Sink interface {
	Write(ctx context.Context, events []Event) error
	Close() error
}

// Emitter accepts events without blocking.
type Emitter interface {
	Emit(Event)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink; a nil logger discards.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogSink{logger: logger.With("component", "analytics")}
}

// Write logs each event at info level.
func (s *LogSink) Write(ctx context.Context, events []Event) error {
	for _, e := range events {
		s.logger.InfoContext(ctx, "analytics event",
			"type", e.Type,
			"session_id", e.SessionID,
			"user_role", e.UserRole,
			"action", e.Action,
			"relevant", e.Relevant,
			"responses", e.Responses,
			"fallbacks", e.Fallbacks,
			"duration_ms", e.Duration.Milliseconds(),
		)
	}
	return nil
}

// Close is a no-op.
func (s *LogSink) Close() error { return nil }

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write appends events.
func (s *MemorySink) Write(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events returns a copy of everything written so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Close is a no-op.
func (s *MemorySink) Close() error { return nil }

// Discard drops every event.
type Discard struct{}

// Emit does nothing.
func (Discard) Emit(Event) {}

// Write drops events, so Discard also serves as a Sink.
func (Discard) Write(context.Context, []Event) error { return nil }

// Close is a no-op.
func (Discard) Close() error { return nil }

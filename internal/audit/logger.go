package audit

import (
	"time"

	"github.com/google/uuid"
)

// Logger records audit events and publishes them on an optional bus.
// Nil-safe: a *Logger with no bus still records through Sink, and the
// dispatcher holds a nil-checked *Logger exactly as the teacher's handler
// gates h.auditor, so audit recording is an optional, not a load-bearing,
// dependency.
type Logger struct {
	bus  *Bus
	Sink func(Record)
}

// NewLogger creates a Logger. bus may be nil if no subscribers are wired
// up (e.g. the stdio-only server mode).
func NewLogger(bus *Bus, sink func(Record)) *Logger {
	return &Logger{bus: bus, Sink: sink}
}

// Bus returns the event bus this Logger publishes to, so a live consumer
// (e.g. the operator-facing /audit/stream endpoint) can Subscribe to it.
// Nil if this Logger was built with no bus.
func (l *Logger) Bus() *Bus {
	if l == nil {
		return nil
	}
	return l.bus
}

// Record stores and publishes one audit event, stamping it with a fresh
// id and the current time. A nil Logger records nothing.
func (l *Logger) Record(sessionID, kind, subject string, success bool, detail map[string]any) {
	if l == nil {
		return
	}
	rec := Record{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		Subject:   subject,
		Success:   success,
		Detail:    detail,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if l.Sink != nil {
		l.Sink(rec)
	}
	if l.bus != nil {
		l.bus.Publish(&rec)
	}
}

// Package diagnostics is the fire-and-forget event channel for the
// scheduling engine. Events carry counts and scope identifiers only —
// never medication names, dosages or volumes.
package diagnostics

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event names reported by the engine.
const (
	EventCorruptionDetected = "index_corruption_detected"
	EventRebuildSucceeded   = "index_rebuild_succeeded"
	EventRebuildFailed      = "index_rebuild_failed"
	EventReconcileCompleted = "reconcile_completed"
	EventPendingLimitWarn   = "pending_limit_warning"
)

// Event is one diagnostic occurrence.
type Event struct {
	ID     string
	Name   string
	At     time.Time
	Fields map[string]any
}

// NewEvent builds an event stamped with a fresh ID and the current time.
func NewEvent(name string, fields map[string]any) Event {
	return Event{
		ID:     uuid.NewString(),
		Name:   name,
		At:     time.Now(),
		Fields: fields,
	}
}

// Sink receives engine events. Implementations must never return an error
// and must never block scheduling: a broken sink is silently a no-op.
type Sink interface {
	Report(event Event)
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(event Event) {
	if s.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("eventId", event.ID),
		zap.Time("at", event.At),
	}
	for k, v := range event.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	s.logger.Info("diagnostic: "+event.Name, fields...)
}

// NopSink drops everything.
type NopSink struct{}

func (NopSink) Report(Event) {}

// Package audit records who did what to which entity.
package audit

import (
	"context"
	"errors"
	"sync"

	"github.com/ukydev/maintenance-scheduler/internal/models"
)

// Recorder receives audit events.
type Recorder interface {
	RecordEvent(ctx context.Context, event models.AuditEvent) error
}

// Filter narrows a query over the in-memory log. Empty fields match everything.
type Filter struct {
	Actor      string
	EntityType string
	Action     string
}

func (f Filter) matches(e models.AuditEvent) bool {
	return (f.Actor == "" || f.Actor == e.Actor) &&
		(f.EntityType == "" || f.EntityType == e.EntityType) &&
		(f.Action == "" || f.Action == e.Action)
}

// Log keeps audit events in memory in the order they were recorded.
type Log struct {
	mu     sync.RWMutex
	events []models.AuditEvent
}

// NewLog creates an empty in-memory audit log.
func NewLog() *Log {
	return &Log{}
}

// RecordEvent appends the event.
func (l *Log) RecordEvent(_ context.Context, event models.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Events returns a copy of the events matching f.
func (l *Log) Events(f Filter) []models.AuditEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.AuditEvent
	for _, e := range l.events {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Multi fans an event out to several recorders. Every recorder is tried;
// the returned error joins all failures.
type Multi []Recorder

// RecordEvent forwards the event to each recorder.
func (m Multi) RecordEvent(ctx context.Context, event models.AuditEvent) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-scheduler/internal/models"
)

// ErrBufferFull is returned when a Buffered sink cannot accept more events.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is returned by RecordEvent after Close.
var ErrClosed = errors.New("audit sink closed")

// Buffered queues events and delivers them to next from a single
// goroutine, so callers never wait on a slow sink. Delivery failures are
// logged.
type Buffered struct {
	next   Recorder
	log    logrus.FieldLogger
	events chan models.AuditEvent
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewBuffered starts delivering to next with room for size queued events.
func NewBuffered(next Recorder, size int, log logrus.FieldLogger) *Buffered {
	if size < 1 {
		size = 1
	}
	b := &Buffered{
		next:   next,
		log:    log,
		events: make(chan models.AuditEvent, size),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Buffered) run() {
	defer close(b.done)
	for event := range b.events {
		if err := b.next.RecordEvent(context.Background(), event); err != nil {
			b.log.WithError(err).WithFields(logrus.Fields{
				"event_id":    event.ID,
				"entity_type": event.EntityType,
				"action":      event.Action,
			}).Warn("Failed to deliver audit event")
		}
	}
}

// RecordEvent queues the event without blocking.
func (b *Buffered) RecordEvent(_ context.Context, event models.AuditEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.events <- event:
		return nil
	default:
		return fmt.Errorf("%w: dropped event %s", ErrBufferFull, event.ID)
	}
}

// Close stops accepting events and waits until the queue is drained or ctx ends.
func (b *Buffered) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

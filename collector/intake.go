// Package collector defines the profiling event model and the ingestion
// point between the host adapter and the rest of the pipeline.
package collector

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const defaultQueueSize = 4096

var (
	// ErrIntakeClosed is returned by Push once the stop barrier has begun.
	ErrIntakeClosed = errors.New("intake is closed")
	// ErrQueueFull is returned when the bounded queue cannot accept an event
	// without blocking the producer.
	ErrQueueFull = errors.New("intake queue is full")
)

// Intake is the bounded queue between concurrent event producers (the host
// timer source, meter pollers, background workers) and the single consumer
// that builds the span tree. Push never blocks for unbounded time.
type Intake struct {
	log *zap.Logger

	mu     sync.Mutex
	closed bool
	last   map[string]int64 // context -> last accepted timestamp
	events chan ProfileEvent
}

// NewIntake creates an intake with the given queue size. Size <= 0 selects
// the default.
func NewIntake(size int, log *zap.Logger) *Intake {
	if size <= 0 {
		size = defaultQueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Intake{
		log:    log,
		last:   make(map[string]int64),
		events: make(chan ProfileEvent, size),
	}
}

// Push validates and enqueues one event. Safe for concurrent producers.
// Events on the same context must carry non-decreasing timestamps; a
// regression is rejected so a broken host clock cannot corrupt the tree.
func (in *Intake) Push(ev ProfileEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return ErrIntakeClosed
	}
	if last, ok := in.last[ev.Context]; ok && ev.Time < last {
		return fmt.Errorf("%w: %s %q at %d after %d", ErrTimeRegression, ev.Kind, ev.Name, ev.Time, last)
	}

	select {
	case in.events <- ev:
		in.last[ev.Context] = ev.Time
		return nil
	default:
		in.log.Warn("intake queue full, dropping event",
			zap.String("name", ev.Name),
			zap.Stringer("kind", ev.Kind))
		return ErrQueueFull
	}
}

// Close begins the quiescence barrier: no new events are accepted, but
// everything already queued stays readable from Events until drained.
func (in *Intake) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.closed = true
	close(in.events)
}

// Events exposes the consumer side of the queue. The channel is closed by
// Close once all accepted events have been handed over.
func (in *Intake) Events() <-chan ProfileEvent {
	return in.events
}

// LastSeen reports the newest timestamp accepted for a context, and whether
// the context has been seen at all.
func (in *Intake) LastSeen(context string) (int64, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	t, ok := in.last[context]
	return t, ok
}

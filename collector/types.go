package collector

import (
	"errors"
	"fmt"
)

// EventKind discriminates the closed set of profiling event variants.
type EventKind int

const (
	// EventStart opens a new span on the event's context.
	EventStart EventKind = iota
	// EventStop closes the innermost open span on the event's context.
	EventStop
	// EventMeter carries one instantaneous sample of a named meter.
	EventMeter
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventMeter:
		return "meter"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ProfileEvent is an immutable record of one instant on the profiling
// timeline, as emitted by the host timer source.
type ProfileEvent struct {
	// Name identifies the operation or meter, hierarchical paths allowed
	// (e.g. "render/layer/draw").
	Name string
	Kind EventKind
	// Time is a monotonic clock reading in nanoseconds. Events must arrive
	// in non-decreasing Time order per context.
	Time int64
	// Value is the numeric payload of meter samples. Ignored for start/stop.
	Value float64
	// Context names the independent timeline (thread, task) the event
	// belongs to. Empty means the default context.
	Context string
}

var (
	ErrEmptyName      = errors.New("profile event has empty name")
	ErrUnknownKind    = errors.New("profile event has unknown kind")
	ErrNegativeTime   = errors.New("profile event has negative timestamp")
	ErrTimeRegression = errors.New("profile event timestamp regressed within its context")
)

// Validate checks the event's own fields. Ordering across events is enforced
// by the Intake, span matching by the tree builder.
func (ev ProfileEvent) Validate() error {
	if ev.Name == "" {
		return ErrEmptyName
	}
	if ev.Kind != EventStart && ev.Kind != EventStop && ev.Kind != EventMeter {
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(ev.Kind))
	}
	if ev.Time < 0 {
		return fmt.Errorf("%w: %s %q at %d", ErrNegativeTime, ev.Kind, ev.Name, ev.Time)
	}
	return nil
}

// Start builds a span-opening event.
func Start(name, context string, time int64) ProfileEvent {
	return ProfileEvent{Name: name, Kind: EventStart, Time: time, Context: context}
}

// Stop builds a span-closing event.
func Stop(name, context string, time int64) ProfileEvent {
	return ProfileEvent{Name: name, Kind: EventStop, Time: time, Context: context}
}

// Meter builds a meter-sample event.
func Meter(name string, time int64, value float64) ProfileEvent {
	return ProfileEvent{Name: name, Kind: EventMeter, Time: time, Value: value}
}

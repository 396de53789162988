package processor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Joonalai/profiler-qgis-plugin/collector"
	"github.com/Joonalai/profiler-qgis-plugin/profiler"
)

// MismatchPolicy selects how the builder reacts to a stop event that does
// not match the innermost open span on its context.
type MismatchPolicy int

const (
	// MismatchDiscard drops the offending stop and keeps recording. The
	// discard is counted, never silent.
	MismatchDiscard MismatchPolicy = iota
	// MismatchAbort ends the session with a StructuralMismatchError.
	MismatchAbort
)

func (p MismatchPolicy) String() string {
	if p == MismatchAbort {
		return "abort"
	}
	return "discard"
}

// ParseMismatchPolicy maps a config string onto a policy.
func ParseMismatchPolicy(s string) (MismatchPolicy, error) {
	switch s {
	case "", "discard":
		return MismatchDiscard, nil
	case "abort":
		return MismatchAbort, nil
	default:
		return MismatchDiscard, fmt.Errorf("unknown mismatch policy %q", s)
	}
}

// Builder maintains a stack of open spans per context and folds the event
// stream into a Tree. It is single-writer: exactly one goroutine (the
// session's apply loop) calls Apply.
type Builder struct {
	policy MismatchPolicy
	log    *zap.Logger

	tree     *Tree
	stacks   map[string][]int
	lastTime map[string]int64

	discarded   int
	forceClosed int
}

// NewBuilder creates an empty builder.
func NewBuilder(policy MismatchPolicy, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		policy:   policy,
		log:      log,
		tree:     newTree(),
		stacks:   make(map[string][]int),
		lastTime: make(map[string]int64),
	}
}

// Apply folds one validated event into the tree. A non-nil error is fatal
// for the session (MismatchAbort only); discard-mode mismatches return nil.
func (b *Builder) Apply(ev collector.ProfileEvent) error {
	switch ev.Kind {
	case collector.EventStart:
		b.applyStart(ev)
		return nil
	case collector.EventStop:
		return b.applyStop(ev)
	case collector.EventMeter:
		b.tree.addMeterSample(ev.Name, ev.Time, ev.Value)
		return nil
	default:
		return fmt.Errorf("%w: %d", collector.ErrUnknownKind, int(ev.Kind))
	}
}

func (b *Builder) applyStart(ev collector.ProfileEvent) {
	stack := b.stacks[ev.Context]
	parent := -1
	if len(stack) > 0 {
		parent = stack[len(stack)-1]
	}
	id := b.tree.addSpan(ev.Name, ev.Context, ev.Time, parent)
	b.stacks[ev.Context] = append(stack, id)
	b.lastTime[ev.Context] = ev.Time
}

func (b *Builder) applyStop(ev collector.ProfileEvent) error {
	b.lastTime[ev.Context] = ev.Time
	stack := b.stacks[ev.Context]
	if len(stack) == 0 || b.tree.spans[stack[len(stack)-1]].Name != ev.Name {
		mismatch := &profiler.StructuralMismatchError{
			Context: ev.Context,
			Name:    ev.Name,
			Time:    ev.Time,
		}
		if b.policy == MismatchAbort {
			return mismatch
		}
		b.discarded++
		b.log.Warn("discarding mismatched stop event", zap.Error(mismatch))
		return nil
	}
	id := stack[len(stack)-1]
	b.stacks[ev.Context] = stack[:len(stack)-1]
	b.tree.closeSpan(id, ev.Time, false)
	return nil
}

// finish force-closes every span still open at the stop barrier, innermost
// first, at the last timestamp seen on its context.
func (b *Builder) finish() {
	for context, stack := range b.stacks {
		end := b.lastTime[context]
		for i := len(stack) - 1; i >= 0; i-- {
			b.tree.closeSpan(stack[i], end, true)
			b.forceClosed++
		}
		delete(b.stacks, context)
	}
}

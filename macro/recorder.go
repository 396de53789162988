package macro

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Joonalai/profiler-qgis-plugin/profiler"
)

var (
	ErrNotRecording     = errors.New("recorder is not recording")
	ErrAlreadyRecording = errors.New("recorder is already recording")
)

// RecorderOptions tunes a Recorder.
type RecorderOptions struct {
	// Clock supplies monotonic nanoseconds; defaults to a real clock.
	Clock profiler.Clock
	// FilterMouseMoves reduces a leading mouse-move burst to its final
	// position when the recording stops.
	FilterMouseMoves bool
	Logger           *zap.Logger
}

// Recorder captures qualifying input events into an in-progress macro.
// States: idle → recording (⇄ paused) → idle. Not safe for concurrent use;
// the host delivers input events from one thread.
type Recorder struct {
	clock       profiler.Clock
	filterMoves bool
	log         *zap.Logger

	recording bool
	paused    bool
	events    []Event
	last      int64 // clock reading at the previous recorded event
	pausedAt  int64
	pausedAcc int64 // paused time since the previous recorded event
}

// NewRecorder creates an idle recorder.
func NewRecorder(opts RecorderOptions) *Recorder {
	clock := opts.Clock
	if clock == nil {
		clock = profiler.NewClock()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{clock: clock, filterMoves: opts.FilterMouseMoves, log: log}
}

// Recording reports whether a recording (possibly paused) is in progress.
func (r *Recorder) Recording() bool { return r.recording }

// Paused reports whether the recording is paused.
func (r *Recorder) Paused() bool { return r.recording && r.paused }

// Start begins a fresh recording.
func (r *Recorder) Start() error {
	if r.recording {
		return ErrAlreadyRecording
	}
	r.recording = true
	r.paused = false
	r.events = nil
	r.last = r.clock()
	r.pausedAcc = 0
	return nil
}

// Pause suspends capture. Input seen while paused is dropped, and the pause
// duration is excluded from the next event's delay.
func (r *Recorder) Pause() error {
	if !r.recording {
		return ErrNotRecording
	}
	if !r.paused {
		r.paused = true
		r.pausedAt = r.clock()
	}
	return nil
}

// Resume continues a paused recording without losing timing continuity.
func (r *Recorder) Resume() error {
	if !r.recording {
		return ErrNotRecording
	}
	if r.paused {
		r.paused = false
		r.pausedAcc += r.clock() - r.pausedAt
	}
	return nil
}

// Record timestamps one input event and appends it. The event's DelayMS is
// computed here; any value set by the caller is overwritten.
func (r *Recorder) Record(ev Event) error {
	if !r.recording {
		return ErrNotRecording
	}
	if r.paused {
		return nil
	}

	now := r.clock()
	elapsed := now - r.last - r.pausedAcc
	if elapsed < 0 {
		elapsed = 0
	}
	r.last = now
	r.pausedAcc = 0

	if ev.Kind == KindMouseMove {
		r.recordMove(ev)
		return nil
	}
	if r.duplicateOfPrevious(ev) {
		r.log.Debug("suppressing duplicate input event", zap.String("kind", string(ev.Kind)))
		return nil
	}
	ev.DelayMS = elapsed / int64(time.Millisecond)
	r.events = append(r.events, ev)
	return nil
}

// recordMove folds consecutive mouse moves into a single event's path, the
// way the host delivers high-frequency move streams.
func (r *Recorder) recordMove(ev Event) {
	pos := ev.Pos
	if n := len(r.events); n > 0 && r.events[n-1].Kind == KindMouseMove {
		last := &r.events[n-1]
		if len(last.Path) == 0 || last.Path[len(last.Path)-1] != pos {
			last.Path = append(last.Path, pos)
		}
		return
	}
	ev.DelayMS = 0
	ev.Path = []Point{pos}
	r.events = append(r.events, ev)
}

// duplicateOfPrevious looks back to the most recent event of the same class
// (key or mouse button) and drops exact repeats, which the host event filter
// tends to deliver twice.
func (r *Recorder) duplicateOfPrevious(ev Event) bool {
	for i := len(r.events) - 1; i >= 0; i-- {
		prev := r.events[i]
		if ev.isKey() && prev.isKey() {
			return prev.Kind == ev.Kind && prev.Key == ev.Key
		}
		if ev.isButton() && prev.isButton() {
			return prev.Kind == ev.Kind && prev.Button == ev.Button
		}
	}
	return false
}

// Stop ends the recording and returns the captured macro.
func (r *Recorder) Stop() (*Macro, error) {
	if !r.recording {
		return nil, ErrNotRecording
	}
	r.recording = false
	r.paused = false

	events := r.events
	r.events = nil
	if r.filterMoves && len(events) > 0 && events[0].Kind == KindMouseMove {
		// Only the final position of the leading move burst matters.
		first := events[0]
		if len(first.Path) > 1 {
			first.Path = []Point{first.Path[len(first.Path)-1]}
			events[0] = first
		}
	}
	r.log.Debug("recording stopped", zap.Int("events", len(events)))
	return &Macro{Version: FormatVersion, Speed: 1.0, Events: events}, nil
}

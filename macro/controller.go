package macro

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// State of the controller's record/play state machine.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StatePlaying:
		return "playing"
	default:
		return "idle"
	}
}

var ErrBusy = errors.New("macro recorder/player is busy")

// Controller ties one Recorder and one Player together and enforces that
// recording and playing are mutually exclusive: idle → recording → idle and
// idle → playing → idle are the only transitions.
type Controller struct {
	log *zap.Logger

	mu       sync.Mutex
	state    State
	recorder *Recorder
	player   *Player
}

// NewController wires a controller around the given recorder and player.
func NewController(rec *Recorder, player *Player, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{log: log, recorder: rec, player: player}
}

// State reports the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartRecording transitions idle → recording.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrBusy
	}
	if err := c.recorder.Start(); err != nil {
		return err
	}
	c.state = StateRecording
	return nil
}

// Record forwards one input event to the recorder.
func (c *Controller) Record(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return ErrNotRecording
	}
	return c.recorder.Record(ev)
}

// PauseRecording suspends capture without ending the recording.
func (c *Controller) PauseRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return ErrNotRecording
	}
	return c.recorder.Pause()
}

// ResumeRecording continues a paused recording.
func (c *Controller) ResumeRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return ErrNotRecording
	}
	return c.recorder.Resume()
}

// StopRecording transitions recording → idle and returns the macro.
func (c *Controller) StopRecording() (*Macro, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return nil, ErrNotRecording
	}
	m, err := c.recorder.Stop()
	c.state = StateIdle
	return m, err
}

// Play transitions idle → playing for the duration of the run. Whatever the
// outcome — completion, cancellation, injection failure — the controller is
// back in idle when Play returns.
func (c *Controller) Play(ctx context.Context, m *Macro, inj Injector) (int, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return 0, ErrBusy
	}
	c.state = StatePlaying
	c.mu.Unlock()

	dispatched, err := c.player.Play(ctx, m, inj)

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	if err != nil {
		c.log.Warn("macro run ended early",
			zap.Int("dispatched", dispatched),
			zap.Int("total", len(m.Events)),
			zap.Error(err))
	}
	return dispatched, err
}

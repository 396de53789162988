package macro

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Joonalai/profiler-qgis-plugin/profiler"
)

// Injector is the host's input-injection surface. Implementations deliver
// one synthetic input event and report whether the target could accept it.
type Injector interface {
	Inject(ctx context.Context, ev Event) error
}

// InjectorFunc adapts a function to the Injector interface.
type InjectorFunc func(ctx context.Context, ev Event) error

func (f InjectorFunc) Inject(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Player replays macros through an Injector, reproducing the recorded
// inter-event delays scaled by a speed factor.
type Player struct {
	speed float64
	log   *zap.Logger
}

// NewPlayer creates a player. speed scales every delay: 1.0 replays at the
// recorded pace, 0.5 twice as fast. Non-positive values fall back to 1.0.
func NewPlayer(speed float64, log *zap.Logger) *Player {
	if speed <= 0 {
		speed = 1.0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Player{speed: speed, log: log}
}

// Play dispatches the macro's events with their recorded spacing. The wait
// before each event sits in a timer select, so cancellation through ctx
// takes effect within one delay window and never busy-waits. An injector
// failure aborts the run immediately; the host is left in whatever state
// the last dispatched event produced. Returns the number of events
// dispatched and, on abort, a PlaybackTargetUnavailableError (or the
// context error on cancellation).
func (p *Player) Play(ctx context.Context, m *Macro, inj Injector) (int, error) {
	speed := p.speed
	if m.Speed > 0 {
		speed *= m.Speed
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	dispatched := 0
	for _, ev := range m.Events {
		if wait := time.Duration(float64(ev.Delay()) * speed); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return dispatched, ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return dispatched, err
		}

		if err := inj.Inject(ctx, ev); err != nil {
			p.log.Warn("macro playback aborted",
				zap.Int("dispatched", dispatched),
				zap.Error(err))
			return dispatched, &profiler.PlaybackTargetUnavailableError{
				Dispatched: dispatched,
				Err:        err,
			}
		}
		dispatched++
	}
	return dispatched, nil
}

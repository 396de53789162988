package processor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Joonalai/profiler-qgis-plugin/collector"
	"github.com/Joonalai/profiler-qgis-plugin/profiler"
)

// Options configures a recording session.
type Options struct {
	// QueueSize bounds the ingestion queue. <= 0 selects the default.
	QueueSize int
	// Mismatch selects the builder's reaction to unmatched stop events.
	Mismatch MismatchPolicy
	// Clock supplies monotonic timestamps for the convenience helpers.
	// Defaults to a clock anchored at session creation.
	Clock profiler.Clock
	// StartedAt is the wall-clock moment of the session start, recorded in
	// the result for persistence. Defaults to time.Now().
	StartedAt time.Time
	Logger    *zap.Logger
}

// Result is the frozen outcome of one session. The tree is immutable and
// safe for concurrent readers.
type Result struct {
	ID        uuid.UUID
	StartedAt time.Time
	Tree      *Tree
	// Discarded counts mismatched stop events dropped in discard mode.
	Discarded int
	// ForceClosed counts spans still open at the stop barrier and closed at
	// their context's last seen timestamp.
	ForceClosed int
}

// Session is one active recording: a bounded intake fed by concurrent
// producers and a single apply goroutine folding events into the tree.
type Session struct {
	id        uuid.UUID
	log       *zap.Logger
	clock     profiler.Clock
	startedAt time.Time
	intake    *collector.Intake
	builder   *Builder
	eg        *errgroup.Group

	stopOnce sync.Once
	done     chan struct{}
	result   *Result
	stopErr  error
}

// NewSession creates a session and starts its apply loop immediately.
func NewSession(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = profiler.NewClock()
	}
	startedAt := opts.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	s := &Session{
		id:        uuid.New(),
		clock:     clock,
		startedAt: startedAt,
		intake:    collector.NewIntake(opts.QueueSize, log),
		builder:   NewBuilder(opts.Mismatch, log),
		eg:        &errgroup.Group{},
		done:      make(chan struct{}),
	}
	s.log = log.With(zap.String("session", s.id.String()))

	s.eg.Go(s.applyLoop)
	return s
}

// ID is the unique identifier of this session.
func (s *Session) ID() uuid.UUID { return s.id }

// Now reads the session clock.
func (s *Session) Now() int64 { return s.clock() }

// Ingest validates and queues one event. Safe for concurrent producers;
// returns collector.ErrIntakeClosed once the stop barrier has begun.
func (s *Session) Ingest(ev collector.ProfileEvent) error {
	return s.intake.Push(ev)
}

// Profile opens a span named name on the given context now and returns the
// function that closes it, for instrumenting a block of code:
//
//	defer session.Profile("render/layers", "main")()
//
// Ingestion failures are logged, not returned; instrumentation must never
// break the instrumented code path.
func (s *Session) Profile(name, context string) func() {
	if err := s.Ingest(collector.Start(name, context, s.clock())); err != nil {
		s.log.Warn("profile start dropped", zap.String("name", name), zap.Error(err))
		return func() {}
	}
	return func() {
		if err := s.Ingest(collector.Stop(name, context, s.clock())); err != nil {
			s.log.Warn("profile stop dropped", zap.String("name", name), zap.Error(err))
		}
	}
}

// applyLoop is the single consumer of the intake. Each context's stack is
// touched only here, so the builder needs no internal locking. After a fatal
// builder error the loop keeps draining so producers observe the barrier,
// but applies nothing further.
func (s *Session) applyLoop() error {
	var fatal error
	for ev := range s.intake.Events() {
		if fatal != nil {
			continue
		}
		if err := s.builder.Apply(ev); err != nil {
			s.log.Error("session aborted", zap.Error(err))
			fatal = err
		}
	}
	return fatal
}

// Stop is the session barrier: it stops accepting new events, waits for
// everything already accepted to be applied, freezes the tree and returns
// the result. The wait is bounded by ctx; a second call returns the same
// outcome. With MismatchAbort a recorded mismatch surfaces here as a
// StructuralMismatchError.
func (s *Session) Stop(ctx context.Context) (*Result, error) {
	s.stopOnce.Do(func() {
		s.intake.Close()
		go func() {
			err := s.eg.Wait()
			s.builder.finish()
			if err != nil {
				s.stopErr = err
			} else {
				s.result = &Result{
					ID:          s.id,
					StartedAt:   s.startedAt,
					Tree:        s.builder.tree,
					Discarded:   s.builder.discarded,
					ForceClosed: s.builder.forceClosed,
				}
				s.log.Info("session frozen",
					zap.Int("spans", s.result.Tree.NumSpans()),
					zap.Int("discarded", s.result.Discarded),
					zap.Int("force_closed", s.result.ForceClosed))
			}
			close(s.done)
		}()
	})

	select {
	case <-s.done:
		return s.result, s.stopErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

package processor

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrSessionActive rejects starting a second concurrent session.
	ErrSessionActive = errors.New("a profiling session is already active")
	// ErrNoActiveSession rejects stopping when nothing records.
	ErrNoActiveSession = errors.New("no active profiling session")
)

// Manager enforces the single-active-session rule. Components receive the
// explicit *Session handle it hands out; there is no global profiler state.
type Manager struct {
	log *zap.Logger

	mu     sync.Mutex
	active *Session
}

// NewManager creates an empty manager.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{log: log}
}

// Start begins a new session, failing if one is already active.
func (m *Manager) Start(opts Options) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, ErrSessionActive
	}
	if opts.Logger == nil {
		opts.Logger = m.log
	}
	m.active = NewSession(opts)
	m.log.Info("session started", zap.String("id", m.active.ID().String()))
	return m.active, nil
}

// Active returns the current session handle, if any.
func (m *Manager) Active() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != nil
}

// Stop freezes and detaches the active session. The session slot is freed
// even when the stop surfaces a builder error, so a broken recording never
// wedges the manager; only a barrier timeout keeps the session attached.
func (m *Manager) Stop(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	session := m.active
	m.mu.Unlock()
	if session == nil {
		return nil, ErrNoActiveSession
	}

	result, err := session.Stop(ctx)
	if err != nil && errors.Is(err, ctx.Err()) {
		return nil, err
	}
	m.mu.Lock()
	if m.active == session {
		m.active = nil
	}
	m.mu.Unlock()
	return result, err
}

// Replace stops the active session (if any) and starts a fresh one in its
// place, returning the old result alongside the new handle.
func (m *Manager) Replace(ctx context.Context, opts Options) (*Session, *Result, error) {
	var previous *Result
	if _, ok := m.Active(); ok {
		result, err := m.Stop(ctx)
		if err != nil {
			return nil, nil, err
		}
		previous = result
	}
	session, err := m.Start(opts)
	if err != nil {
		return nil, previous, err
	}
	return session, previous, nil
}

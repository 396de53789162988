// Package profiler holds the pieces shared by every stage of the plugin:
// the monotonic clock and the error taxonomy.
package profiler

import "fmt"

// StructuralMismatchError reports a stop event that does not match the
// currently open span on its context. It indicates an instrumentation bug in
// the profiled code, not in the profiler itself.
type StructuralMismatchError struct {
	Context string
	Name    string
	Time    int64
}

func (e *StructuralMismatchError) Error() string {
	return fmt.Sprintf("structural mismatch on context %q: stop %q at %dns has no matching start", e.Context, e.Name, e.Time)
}

// PersistenceFormatError reports a corrupt or unrecognized session or macro
// file. Offset is the byte offset of the failure when known, -1 otherwise.
type PersistenceFormatError struct {
	Path   string
	Offset int64
	Err    error
}

func (e *PersistenceFormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("malformed file %s at offset %d: %v", e.Path, e.Offset, e.Err)
	}
	return fmt.Sprintf("malformed file %s: %v", e.Path, e.Err)
}

func (e *PersistenceFormatError) Unwrap() error { return e.Err }

// PlaybackTargetUnavailableError reports a macro run aborted because the
// host surface refused an injected event. Dispatched counts the events
// delivered before the failure.
type PlaybackTargetUnavailableError struct {
	Dispatched int
	Err        error
}

func (e *PlaybackTargetUnavailableError) Error() string {
	return fmt.Sprintf("playback target unavailable after %d dispatched events: %v", e.Dispatched, e.Err)
}

func (e *PlaybackTargetUnavailableError) Unwrap() error { return e.Err }

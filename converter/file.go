package converter

import (
	"fmt"
	"os"

	"github.com/google/pprof/profile"

	"github.com/Joonalai/profiler-qgis-plugin/processor"
	"github.com/Joonalai/profiler-qgis-plugin/profiler"
)

// WriteFile persists a frozen session as a gzipped pprof file readable by
// external visualization tools (go tool pprof, speedscope, pyroscope).
func WriteFile(res *processor.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating session file: %w", err)
	}
	prof := ToProfile(res)
	if err := prof.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing session file: %w", err)
	}
	return nil
}

// ReadFile loads a session file written by WriteFile. Corrupt or truncated
// files (an interrupted write, a foreign format) surface as
// PersistenceFormatError; a partially readable tree is never returned.
func ReadFile(path string) (*processor.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}
	defer f.Close()

	prof, err := profile.Parse(f)
	if err != nil {
		return nil, &profiler.PersistenceFormatError{Path: path, Offset: fileOffset(f), Err: err}
	}
	if err := prof.CheckValid(); err != nil {
		return nil, &profiler.PersistenceFormatError{Path: path, Offset: -1, Err: err}
	}
	res, err := FromProfile(prof)
	if err != nil {
		return nil, &profiler.PersistenceFormatError{Path: path, Offset: -1, Err: err}
	}
	return res, nil
}

// fileOffset reports how far the reader got before failing, best effort.
func fileOffset(f *os.File) int64 {
	off, err := f.Seek(0, 1)
	if err != nil {
		return -1
	}
	return off
}

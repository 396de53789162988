package macro

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Joonalai/profiler-qgis-plugin/profiler"
)

// FormatVersion is the current macro file format. Readers accept any file
// up to this version (older macros stay playable) and reject newer ones.
const FormatVersion = 1

// Save writes the macro as indented JSON.
func Save(m *Macro, path string) error {
	out := *m
	out.Version = FormatVersion
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding macro: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing macro file: %w", err)
	}
	return nil
}

// Load reads a macro file written by Save, any format version up to the
// current one. Unknown fields from older writers are ignored, which is what
// keeps the format forward compatible.
func Load(path string) (*Macro, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading macro file: %w", err)
	}

	var m Macro
	if err := json.Unmarshal(data, &m); err != nil {
		offset := int64(-1)
		var syntax *json.SyntaxError
		if errors.As(err, &syntax) {
			offset = syntax.Offset
		}
		var typ *json.UnmarshalTypeError
		if errors.As(err, &typ) {
			offset = typ.Offset
		}
		return nil, &profiler.PersistenceFormatError{Path: path, Offset: offset, Err: err}
	}
	if m.Version == 0 {
		// Files written before the version field was introduced.
		m.Version = 1
	}
	if m.Version > FormatVersion {
		return nil, &profiler.PersistenceFormatError{
			Path:   path,
			Offset: -1,
			Err:    fmt.Errorf("macro format version %d is newer than supported %d", m.Version, FormatVersion),
		}
	}
	if m.Speed == 0 {
		m.Speed = 1.0
	}
	return &m, nil
}

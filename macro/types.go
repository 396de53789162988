// Package macro records and replays timestamped user input events.
package macro

import "time"

// Kind names one input event variant. Stored as strings so persisted macros
// stay readable across plugin versions.
type Kind string

const (
	KindKeyPress     Kind = "key_press"
	KindKeyRelease   Kind = "key_release"
	KindMousePress   Kind = "mouse_press"
	KindMouseRelease Kind = "mouse_release"
	KindDoubleClick  Kind = "double_click"
	KindMouseMove    Kind = "mouse_move"
)

// Point is a screen coordinate in the host's global space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Event is one recorded input action plus the delay since the previous
// event. Only the fields relevant to the Kind are populated.
type Event struct {
	// DelayMS is the pause before this event, in milliseconds, with time
	// spent paused during recording already excluded.
	DelayMS   int64 `json:"delay_ms"`
	Kind      Kind  `json:"kind"`
	Key       int   `json:"key,omitempty"`
	Button    int   `json:"button,omitempty"`
	Modifiers int   `json:"modifiers,omitempty"`
	Pos       Point `json:"pos,omitempty"`
	// Path carries the coordinates of a collapsed mouse-move run.
	Path []Point `json:"path,omitempty"`
}

// Delay is the event's pause as a Duration.
func (e Event) Delay() time.Duration { return time.Duration(e.DelayMS) * time.Millisecond }

func (e Event) isKey() bool {
	return e.Kind == KindKeyPress || e.Kind == KindKeyRelease
}

func (e Event) isButton() bool {
	return e.Kind == KindMousePress || e.Kind == KindMouseRelease
}

// Macro is an ordered, named, replayable sequence of events.
type Macro struct {
	// Version gates the persisted format; see FormatVersion.
	Version int     `json:"version"`
	Name    string  `json:"name,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
	Events  []Event `json:"events"`
}

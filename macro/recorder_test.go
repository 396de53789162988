package macro_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joonalai/profiler-qgis-plugin/macro"
)

const ms = int64(time.Millisecond)

// fakeClock drives a recorder deterministically.
type fakeClock struct{ now int64 }

func (c *fakeClock) fn() int64 { return c.now }

func newRecorder(t *testing.T, clock *fakeClock, filterMoves bool) *macro.Recorder {
	t.Helper()
	r := macro.NewRecorder(macro.RecorderOptions{
		Clock:            clock.fn,
		FilterMouseMoves: filterMoves,
	})
	require.NoError(t, r.Start())
	return r
}

func TestRecorderDelays(t *testing.T) {
	clock := &fakeClock{}
	r := newRecorder(t, clock, false)

	clock.now = 100 * ms
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindKeyPress, Key: 65}))
	clock.now += 250 * ms
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindKeyRelease, Key: 65}))

	m, err := r.Stop()
	require.NoError(t, err)
	require.Len(t, m.Events, 2)
	assert.EqualValues(t, 100, m.Events[0].DelayMS)
	assert.EqualValues(t, 250, m.Events[1].DelayMS)
	assert.Equal(t, macro.FormatVersion, m.Version)
	assert.Equal(t, 1.0, m.Speed)
}

func TestRecorderPauseExcludedFromDelays(t *testing.T) {
	clock := &fakeClock{}
	r := newRecorder(t, clock, false)

	clock.now = 50 * ms
	require.NoError(t, r.Pause())
	require.True(t, r.Paused())

	// Input seen while paused is dropped.
	clock.now = 200 * ms
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindKeyPress, Key: 13}))

	clock.now = 300 * ms
	require.NoError(t, r.Resume())
	clock.now = 350 * ms
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindMousePress, Button: 1}))

	m, err := r.Stop()
	require.NoError(t, err)
	require.Len(t, m.Events, 1)
	// 350ms wall time minus the 250ms pause.
	assert.EqualValues(t, 100, m.Events[0].DelayMS)
}

func TestRecorderSuppressesDuplicates(t *testing.T) {
	clock := &fakeClock{}
	r := newRecorder(t, clock, false)

	require.NoError(t, r.Record(macro.Event{Kind: macro.KindKeyPress, Key: 65}))
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindKeyPress, Key: 65}))
	// Same key repeated across an unrelated mouse event is still a repeat.
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindMousePress, Button: 1}))
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindKeyPress, Key: 65}))
	// A different key is not.
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindKeyPress, Key: 66}))

	m, err := r.Stop()
	require.NoError(t, err)
	require.Len(t, m.Events, 3)
	assert.Equal(t, macro.KindKeyPress, m.Events[0].Kind)
	assert.Equal(t, macro.KindMousePress, m.Events[1].Kind)
	assert.Equal(t, 66, m.Events[2].Key)
}

func TestRecorderCollapsesMouseMoves(t *testing.T) {
	clock := &fakeClock{}
	r := newRecorder(t, clock, false)

	require.NoError(t, r.Record(macro.Event{Kind: macro.KindMouseMove, Pos: macro.Point{X: 1, Y: 1}}))
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindMouseMove, Pos: macro.Point{X: 2, Y: 2}}))
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindMouseMove, Pos: macro.Point{X: 2, Y: 2}}))
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindMousePress, Button: 1}))
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindMouseMove, Pos: macro.Point{X: 9, Y: 9}}))

	m, err := r.Stop()
	require.NoError(t, err)
	require.Len(t, m.Events, 3)
	// The run folds into one event; the repeated position is dropped.
	assert.Equal(t, []macro.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, m.Events[0].Path)
	// A move after a non-move starts a new run.
	assert.Equal(t, []macro.Point{{X: 9, Y: 9}}, m.Events[2].Path)
}

func TestRecorderFiltersLeadingMoveBurst(t *testing.T) {
	clock := &fakeClock{}
	r := newRecorder(t, clock, true)

	require.NoError(t, r.Record(macro.Event{Kind: macro.KindMouseMove, Pos: macro.Point{X: 1, Y: 1}}))
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindMouseMove, Pos: macro.Point{X: 5, Y: 5}}))
	require.NoError(t, r.Record(macro.Event{Kind: macro.KindMousePress, Button: 1}))

	m, err := r.Stop()
	require.NoError(t, err)
	require.Len(t, m.Events, 2)
	assert.Equal(t, []macro.Point{{X: 5, Y: 5}}, m.Events[0].Path)
}

func TestRecorderStateErrors(t *testing.T) {
	r := macro.NewRecorder(macro.RecorderOptions{})

	require.ErrorIs(t, r.Record(macro.Event{Kind: macro.KindKeyPress}), macro.ErrNotRecording)
	require.ErrorIs(t, r.Pause(), macro.ErrNotRecording)
	_, err := r.Stop()
	require.ErrorIs(t, err, macro.ErrNotRecording)

	require.NoError(t, r.Start())
	require.ErrorIs(t, r.Start(), macro.ErrAlreadyRecording)

	_, err = r.Stop()
	require.NoError(t, err)
	assert.False(t, r.Recording())
}

package converter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joonalai/profiler-qgis-plugin/collector"
	"github.com/Joonalai/profiler-qgis-plugin/converter"
	"github.com/Joonalai/profiler-qgis-plugin/processor"
)

func recordSession(t *testing.T, events ...collector.ProfileEvent) *processor.Result {
	t.Helper()
	s := processor.NewSession(processor.Options{
		StartedAt: time.Unix(1700000000, 0),
	})
	for _, ev := range events {
		require.NoError(t, s.Ingest(ev))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := s.Stop(ctx)
	require.NoError(t, err)
	return res
}

func sessionFixture(t *testing.T) *processor.Result {
	return recordSession(t,
		collector.Start("render", "main", 0),
		collector.Start("render/layers", "main", 100),
		collector.Stop("render/layers", "main", 400),
		collector.Start("render/labels", "main", 400),
		collector.Stop("render/labels", "main", 550),
		collector.Stop("render", "main", 1000),
		collector.Start("job", "worker", 50),
		collector.Stop("job", "worker", 800),
		collector.Meter("memory", 120, 512.25),
		collector.Meter("memory", 720, 514.5),
	)
}

func TestProfileRoundTrip(t *testing.T) {
	res := sessionFixture(t)

	prof := converter.ToProfile(res)
	require.NoError(t, prof.CheckValid())

	back, err := converter.FromProfile(prof)
	require.NoError(t, err)

	assert.Equal(t, res.ID, back.ID)
	assert.Equal(t, res.StartedAt.UnixNano(), back.StartedAt.UnixNano())
	assert.Equal(t, res.Discarded, back.Discarded)
	assert.Equal(t, res.ForceClosed, back.ForceClosed)

	// Same tree shape: identical pre-order (name, context, timings, self).
	type row struct {
		Name, Context    string
		Start, End, Self int64
		Depth            int
	}
	flatten := func(tree *processor.Tree) []row {
		var rows []row
		tree.Walk(func(id, depth int) bool {
			s := tree.Span(id)
			rows = append(rows, row{s.Name, s.Context, s.Start, s.End, s.Self, depth})
			return true
		})
		return rows
	}
	assert.Equal(t, flatten(res.Tree), flatten(back.Tree))

	// Identical per-name statistics.
	require.Equal(t, res.Tree.Names(), back.Tree.Names())
	for _, name := range res.Tree.Names() {
		want, _ := res.Tree.Aggregate(name)
		got, _ := back.Tree.Aggregate(name)
		assert.Equal(t, want, got, name)
	}

	// Meter series survive with their ordering and values.
	require.Equal(t, res.Tree.MeterNames(), back.Tree.MeterNames())
	for _, name := range res.Tree.MeterNames() {
		assert.Equal(t, res.Tree.Meter(name).Samples, back.Tree.Meter(name).Samples, name)
	}
}

func TestRoundTripKeepsForcedAndDiscarded(t *testing.T) {
	res := recordSession(t,
		collector.Start("a", "", 0),
		collector.Stop("mismatched", "", 1),
		collector.Start("a/b", "", 2),
		// Both spans stay open; the barrier closes them.
	)
	require.Equal(t, 1, res.Discarded)
	require.Equal(t, 2, res.ForceClosed)

	back, err := converter.FromProfile(converter.ToProfile(res))
	require.NoError(t, err)
	assert.Equal(t, 1, back.Discarded)
	assert.Equal(t, 2, back.ForceClosed)

	ids := back.Tree.SpansNamed("a/b")
	require.Len(t, ids, 1)
	assert.True(t, back.Tree.Span(ids[0]).Forced)
}

func TestFromProfileRejectsForeignProfiles(t *testing.T) {
	res := sessionFixture(t)
	prof := converter.ToProfile(res)
	for _, sample := range prof.Sample {
		delete(sample.NumLabel, "span_start_ns")
		delete(sample.NumLabel, "ts_ns")
	}
	_, err := converter.FromProfile(prof)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lacks")
}

func TestSampleValuesAreSelfTimes(t *testing.T) {
	res := recordSession(t,
		collector.Start("a", "", 0),
		collector.Start("a/b", "", 1),
		collector.Stop("a/b", "", 5),
		collector.Stop("a", "", 10),
	)
	prof := converter.ToProfile(res)

	values := make(map[string]int64)
	for _, sample := range prof.Sample {
		name := sample.Location[0].Line[0].Function.Name
		values[name] = sample.Value[0]
	}
	assert.EqualValues(t, 6, values["a"])
	assert.EqualValues(t, 4, values["a/b"])
}

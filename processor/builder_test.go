package processor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joonalai/profiler-qgis-plugin/collector"
	"github.com/Joonalai/profiler-qgis-plugin/processor"
	"github.com/Joonalai/profiler-qgis-plugin/profiler"
)

// record runs the events through a fresh session and freezes it.
func record(t *testing.T, policy processor.MismatchPolicy, events ...collector.ProfileEvent) (*processor.Result, error) {
	t.Helper()
	s := processor.NewSession(processor.Options{Mismatch: policy})
	for _, ev := range events {
		require.NoError(t, s.Ingest(ev))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Stop(ctx)
}

func TestNestedSpans(t *testing.T) {
	res, err := record(t, processor.MismatchDiscard,
		collector.Start("a", "", 0),
		collector.Start("a/b", "", 1),
		collector.Stop("a/b", "", 5),
		collector.Stop("a", "", 10),
	)
	require.NoError(t, err)

	tree := res.Tree
	require.Len(t, tree.Roots(), 1)
	root := tree.Span(tree.Roots()[0])
	require.Equal(t, "a", root.Name)
	assert.EqualValues(t, 10, root.End-root.Start)
	assert.EqualValues(t, 6, root.Self)

	require.Len(t, root.Children, 1)
	child := tree.Span(root.Children[0])
	require.Equal(t, "a/b", child.Name)
	assert.EqualValues(t, 4, child.End-child.Start)
	assert.EqualValues(t, 4, child.Self)
	assert.Equal(t, tree.Roots()[0], child.Parent)
}

// Duration decomposes into self time plus the children's durations, at
// every level of the tree.
func TestSelfDurationProperty(t *testing.T) {
	res, err := record(t, processor.MismatchDiscard,
		collector.Start("root", "", 0),
		collector.Start("left", "", 10),
		collector.Start("left/inner", "", 15),
		collector.Stop("left/inner", "", 30),
		collector.Stop("left", "", 40),
		collector.Start("right", "", 50),
		collector.Stop("right", "", 90),
		collector.Stop("root", "", 100),
	)
	require.NoError(t, err)

	tree := res.Tree
	tree.Walk(func(id, _ int) bool {
		span := tree.Span(id)
		var childTotal int64
		for _, c := range span.Children {
			child := tree.Span(c)
			childTotal += child.End - child.Start
		}
		assert.EqualValues(t, span.End-span.Start, span.Self+childTotal, span.Name)
		assert.GreaterOrEqual(t, span.Self, int64(0), span.Name)
		return true
	})
}

func TestContextsNestIndependently(t *testing.T) {
	res, err := record(t, processor.MismatchDiscard,
		collector.Start("ui", "main", 0),
		collector.Start("job", "worker", 2),
		collector.Stop("ui", "main", 4),
		collector.Stop("job", "worker", 9),
	)
	require.NoError(t, err)

	require.Len(t, res.Tree.Roots(), 2)
	for _, id := range res.Tree.Roots() {
		span := res.Tree.Span(id)
		assert.Empty(t, span.Children)
		assert.True(t, span.Closed())
	}
}

func TestMismatchedStopDiscarded(t *testing.T) {
	res, err := record(t, processor.MismatchDiscard,
		collector.Start("a", "", 0),
		collector.Stop("not-a", "", 3),
		collector.Stop("nothing-open", "other", 4),
		collector.Stop("a", "", 5),
	)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Discarded)
	require.Len(t, res.Tree.Roots(), 1)
	span := res.Tree.Span(res.Tree.Roots()[0])
	assert.Equal(t, "a", span.Name)
	assert.EqualValues(t, 5, span.End)
}

func TestMismatchedStopAborts(t *testing.T) {
	_, err := record(t, processor.MismatchAbort,
		collector.Start("a", "", 0),
		collector.Stop("b", "", 1),
	)
	require.Error(t, err)

	var mismatch *profiler.StructuralMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "b", mismatch.Name)
	assert.EqualValues(t, 1, mismatch.Time)
}

func TestOpenSpansForceClosedAtBarrier(t *testing.T) {
	res, err := record(t, processor.MismatchDiscard,
		collector.Start("outer", "", 0),
		collector.Start("inner", "", 5),
		collector.Stop("inner", "", 8),
		collector.Start("dangling", "", 9),
	)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ForceClosed)
	tree := res.Tree
	tree.Walk(func(id, _ int) bool {
		span := tree.Span(id)
		assert.True(t, span.Closed(), span.Name)
		// Closed at the last timestamp seen on the context.
		assert.LessOrEqual(t, span.End, int64(9), span.Name)
		return true
	})
	dangling := tree.Span(tree.SpansNamed("dangling")[0])
	assert.True(t, dangling.Forced)
	inner := tree.Span(tree.SpansNamed("inner")[0])
	assert.False(t, inner.Forced)
}

func TestAggregates(t *testing.T) {
	res, err := record(t, processor.MismatchDiscard,
		collector.Start("op", "", 0),
		collector.Stop("op", "", 10),
		collector.Start("op", "", 20),
		collector.Stop("op", "", 50),
		collector.Start("op", "", 60),
		collector.Stop("op", "", 80),
	)
	require.NoError(t, err)

	agg, ok := res.Tree.Aggregate("op")
	require.True(t, ok)
	assert.EqualValues(t, 3, agg.Count)
	assert.EqualValues(t, 60, agg.Total)
	assert.EqualValues(t, 10, agg.Min)
	assert.EqualValues(t, 30, agg.Max)
	assert.Equal(t, time.Duration(20), agg.Mean())
}

func TestMeterSamples(t *testing.T) {
	res, err := record(t, processor.MismatchDiscard,
		collector.Meter("memory", 1, 100.5),
		collector.Start("a", "", 2),
		collector.Meter("memory", 3, 101.25),
		collector.Stop("a", "", 4),
		collector.Meter("fps", 4, 60),
	)
	require.NoError(t, err)

	require.Equal(t, []string{"fps", "memory"}, res.Tree.MeterNames())
	memory := res.Tree.Meter("memory")
	require.Len(t, memory.Samples, 2)
	assert.Equal(t, processor.MeterSample{Time: 1, Value: 100.5}, memory.Samples[0])
	assert.Equal(t, processor.MeterSample{Time: 3, Value: 101.25}, memory.Samples[1])
}

func TestRebuildTreeRejectsOverlap(t *testing.T) {
	_, err := processor.RebuildTree([]processor.SpanRecord{
		{Name: "parent", Start: 0, End: 10},
		{Name: "child", Start: 5, End: 15, Depth: 1},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlaps")
}

func TestRebuildTreeRejectsMissingAncestor(t *testing.T) {
	_, err := processor.RebuildTree([]processor.SpanRecord{
		{Name: "orphan", Start: 0, End: 10, Depth: 2},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ancestor")
}

func TestRebuildTreeRoundTripShape(t *testing.T) {
	records := []processor.SpanRecord{
		{Name: "a", Start: 0, End: 10},
		{Name: "a/b", Start: 1, End: 5, Depth: 1},
		{Name: "a/c", Start: 5, End: 9, Depth: 1},
	}
	tree, err := processor.RebuildTree(records, nil)
	require.NoError(t, err)

	require.Len(t, tree.Roots(), 1)
	root := tree.Span(tree.Roots()[0])
	require.Equal(t, "a", root.Name)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "a/b", tree.Span(root.Children[0]).Name)
	assert.Equal(t, "a/c", tree.Span(root.Children[1]).Name)
	assert.EqualValues(t, 2, root.Self)
}

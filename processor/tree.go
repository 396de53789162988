// Package processor turns the flat profiling event stream into span trees
// and owns the recording session lifecycle.
package processor

import (
	"fmt"
	"sort"
	"time"
)

// Span is one start→stop interval. Spans live in the arena owned by their
// Tree; parent/child links are arena indices, so the structure carries no
// pointer cycles.
type Span struct {
	Name    string
	Context string
	// Start and End are monotonic nanoseconds. End is -1 while open.
	Start int64
	End   int64
	// Self is the span's duration minus the summed durations of its
	// children. Valid once the span is closed.
	Self int64
	// Parent is the arena index of the enclosing span, -1 for roots.
	Parent   int
	Children []int
	// Forced marks spans closed by the stop barrier instead of a stop event.
	Forced bool
}

// Closed reports whether the span has an end time.
func (s *Span) Closed() bool { return s.End >= 0 }

// Duration is End-Start for closed spans, zero otherwise.
func (s *Span) Duration() time.Duration {
	if !s.Closed() {
		return 0
	}
	return time.Duration(s.End - s.Start)
}

// SelfDuration is the span's self time as a Duration.
func (s *Span) SelfDuration() time.Duration { return time.Duration(s.Self) }

// Aggregate accumulates per-name duration statistics over closed spans.
type Aggregate struct {
	Count int64
	Total int64
	Min   int64
	Max   int64
}

// Mean is Total/Count, zero when no spans were recorded.
func (a Aggregate) Mean() time.Duration {
	if a.Count == 0 {
		return 0
	}
	return time.Duration(a.Total / a.Count)
}

func (a *Aggregate) add(dur int64) {
	if a.Count == 0 || dur < a.Min {
		a.Min = dur
	}
	if dur > a.Max {
		a.Max = dur
	}
	a.Count++
	a.Total += dur
}

// MeterSample is one (timestamp, value) reading of a named meter.
type MeterSample struct {
	Time  int64
	Value float64
}

// MeterSeries is the ordered sample sequence of one meter, independent of
// the span tree but time-aligned with it.
type MeterSeries struct {
	Name    string
	Samples []MeterSample
}

// Tree is the aggregate structure of one recording session: the span arena,
// the root set, per-name indexes and statistics, and the meter series.
// Mutated only by the builder; immutable once the session is frozen.
type Tree struct {
	spans  []Span
	roots  []int
	byName map[string][]int
	aggs   map[string]Aggregate
	meters map[string]*MeterSeries
}

func newTree() *Tree {
	return &Tree{
		byName: make(map[string][]int),
		aggs:   make(map[string]Aggregate),
		meters: make(map[string]*MeterSeries),
	}
}

// NumSpans is the arena size, open spans included.
func (t *Tree) NumSpans() int { return len(t.spans) }

// Span returns the arena entry for id. The pointer is for reading; callers
// must not mutate frozen trees.
func (t *Tree) Span(id int) *Span { return &t.spans[id] }

// Roots lists root span ids in creation order.
func (t *Tree) Roots() []int { return t.roots }

// SpansNamed lists ids of every span sharing a name.
func (t *Tree) SpansNamed(name string) []int { return t.byName[name] }

// Aggregate returns the duration statistics recorded under a name.
func (t *Tree) Aggregate(name string) (Aggregate, bool) {
	a, ok := t.aggs[name]
	return a, ok
}

// Names lists all span names with aggregates, sorted.
func (t *Tree) Names() []string {
	names := make([]string, 0, len(t.aggs))
	for name := range t.aggs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Meter returns the sample series of a named meter, nil if absent.
func (t *Tree) Meter(name string) *MeterSeries { return t.meters[name] }

// MeterNames lists all recorded meter names, sorted.
func (t *Tree) MeterNames() []string {
	names := make([]string, 0, len(t.meters))
	for name := range t.meters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Walk visits spans depth-first in pre-order. fn returns whether to descend
// into the span's children.
func (t *Tree) Walk(fn func(id, depth int) bool) {
	type frame struct{ id, depth int }
	stack := make([]frame, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{t.roots[i], 0})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(top.id, top.depth) {
			continue
		}
		children := t.spans[top.id].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], top.depth + 1})
		}
	}
}

func (t *Tree) addSpan(name, context string, start int64, parent int) int {
	id := len(t.spans)
	t.spans = append(t.spans, Span{
		Name:    name,
		Context: context,
		Start:   start,
		End:     -1,
		Parent:  parent,
	})
	if parent < 0 {
		t.roots = append(t.roots, id)
	} else {
		t.spans[parent].Children = append(t.spans[parent].Children, id)
	}
	t.byName[name] = append(t.byName[name], id)
	return id
}

func (t *Tree) closeSpan(id int, end int64, forced bool) {
	span := &t.spans[id]
	span.End = end
	span.Forced = forced
	var childTotal int64
	for _, c := range span.Children {
		child := &t.spans[c]
		childTotal += child.End - child.Start
	}
	span.Self = span.End - span.Start - childTotal
	agg := t.aggs[span.Name]
	agg.add(span.End - span.Start)
	t.aggs[span.Name] = agg
}

func (t *Tree) addMeterSample(name string, ts int64, value float64) {
	series, ok := t.meters[name]
	if !ok {
		series = &MeterSeries{Name: name}
		t.meters[name] = series
	}
	series.Samples = append(series.Samples, MeterSample{Time: ts, Value: value})
}

// SpanRecord is the flat form of one closed span, used when reloading a
// persisted session. Depth is the span's nesting level (0 for roots); the
// persisted stack paths supply it, and it disambiguates zero-length spans
// sitting exactly on their parent's boundary.
type SpanRecord struct {
	Name    string
	Context string
	Start   int64
	End     int64
	Depth   int
	Forced  bool
}

// RebuildTree reconstructs a frozen tree from flat span records and meter
// series. Records violating the nesting invariants are rejected.
func RebuildTree(records []SpanRecord, meters map[string][]MeterSample) (*Tree, error) {
	sorted := make([]SpanRecord, len(records))
	copy(sorted, records)
	// Parents sort before their children: earlier start first, then longer
	// interval, then shallower depth.
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Context != b.Context {
			return a.Context < b.Context
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End > b.End
		}
		return a.Depth < b.Depth
	})

	tree := newTree()
	stack := make([]int, 0, 8)
	lastContext := ""
	for i, rec := range sorted {
		if rec.End < rec.Start {
			return nil, fmt.Errorf("span %q on context %q ends before it starts", rec.Name, rec.Context)
		}
		if i == 0 || rec.Context != lastContext {
			stack = stack[:0]
			lastContext = rec.Context
		}
		if rec.Depth > len(stack) {
			return nil, fmt.Errorf("span %q at depth %d has no ancestor chain", rec.Name, rec.Depth)
		}
		stack = stack[:rec.Depth]
		parent := -1
		if rec.Depth > 0 {
			parent = stack[rec.Depth-1]
			p := &tree.spans[parent]
			if rec.Start < p.Start || rec.End > p.End {
				return nil, fmt.Errorf("span %q [%d,%d] overlaps parent %q [%d,%d]",
					rec.Name, rec.Start, rec.End, p.Name, p.Start, p.End)
			}
		}
		id := tree.addSpan(rec.Name, rec.Context, rec.Start, parent)
		stack = append(stack, id)
		tree.spans[id].End = rec.End
		tree.spans[id].Forced = rec.Forced
	}

	// Self times and aggregates in a second pass, now that every child list
	// is complete.
	for id := range tree.spans {
		span := &tree.spans[id]
		var childTotal int64
		for _, c := range span.Children {
			child := &tree.spans[c]
			childTotal += child.End - child.Start
		}
		span.Self = span.End - span.Start - childTotal
		if span.Self < 0 {
			return nil, fmt.Errorf("span %q children exceed its own duration", span.Name)
		}
		agg := tree.aggs[span.Name]
		agg.add(span.End - span.Start)
		tree.aggs[span.Name] = agg
	}

	for name, samples := range meters {
		series := &MeterSeries{Name: name, Samples: append([]MeterSample(nil), samples...)}
		sort.SliceStable(series.Samples, func(i, j int) bool {
			return series.Samples[i].Time < series.Samples[j].Time
		})
		tree.meters[name] = series
	}
	return tree, nil
}

// Package query filters frozen span trees and meter series for display.
package query

import (
	"regexp"
	"strings"
	"time"

	"github.com/Joonalai/profiler-qgis-plugin/processor"
)

// Filter selects spans and meter samples. The zero Filter matches
// everything.
type Filter struct {
	// Name is matched as a case-insensitive substring of the span name.
	Name string
	// Pattern, when set, is a regular expression the span name must match.
	Pattern string
	// MinDuration drops spans shorter than the threshold.
	MinDuration time.Duration
	// Meter restricts Samples to meters whose name contains this substring,
	// case-insensitively. Ignored by span matching.
	Meter string
}

type compiledFilter struct {
	Filter
	nameLower  string
	meterLower string
	re         *regexp.Regexp
}

func (f Filter) compile() (*compiledFilter, error) {
	cf := &compiledFilter{
		Filter:     f,
		nameLower:  strings.ToLower(f.Name),
		meterLower: strings.ToLower(f.Meter),
	}
	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, err
		}
		cf.re = re
	}
	return cf, nil
}

func (cf *compiledFilter) matchSpan(span *processor.Span) bool {
	if cf.nameLower != "" && !strings.Contains(strings.ToLower(span.Name), cf.nameLower) {
		return false
	}
	if cf.re != nil && !cf.re.MatchString(span.Name) {
		return false
	}
	if cf.MinDuration > 0 && span.Duration() < cf.MinDuration {
		return false
	}
	return true
}

func (cf *compiledFilter) matchMeter(name string) bool {
	return cf.meterLower == "" || strings.Contains(strings.ToLower(name), cf.meterLower)
}

// Iterator yields matching spans of one frozen tree in depth-first
// pre-order. A branch is retained when it or any descendant matches, so the
// nesting shown to the user survives filtering. Restartable via Reset; not
// safe for concurrent use.
type Iterator struct {
	tree   *processor.Tree
	filter *compiledFilter

	keep  []bool // computed once, on first Next
	ready bool
	stack []int
}

// NewIterator builds an iterator over tree. Only the regular expression can
// fail to compile.
func NewIterator(tree *processor.Tree, filter Filter) (*Iterator, error) {
	cf, err := filter.compile()
	if err != nil {
		return nil, err
	}
	it := &Iterator{tree: tree, filter: cf}
	it.Reset()
	return it, nil
}

// Reset restarts the iteration from the first root. The keep-set is
// memoized across resets; trees are immutable once frozen.
func (it *Iterator) Reset() {
	roots := it.tree.Roots()
	it.stack = it.stack[:0]
	for i := len(roots) - 1; i >= 0; i-- {
		it.stack = append(it.stack, roots[i])
	}
}

// Next returns the id of the next retained span, or false when exhausted.
func (it *Iterator) Next() (int, bool) {
	if !it.ready {
		it.computeKeep()
		it.ready = true
	}
	for len(it.stack) > 0 {
		id := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]
		if !it.keep[id] {
			continue
		}
		children := it.tree.Span(id).Children
		for i := len(children) - 1; i >= 0; i-- {
			it.stack = append(it.stack, children[i])
		}
		return id, true
	}
	return 0, false
}

// Span is shorthand for it.tree.Span(id) on iterator output.
func (it *Iterator) Span(id int) *processor.Span { return it.tree.Span(id) }

// computeKeep marks every span that matches or has a matching descendant.
// One post-order pass over the arena.
func (it *Iterator) computeKeep() {
	it.keep = make([]bool, it.tree.NumSpans())
	for _, root := range it.tree.Roots() {
		it.mark(root)
	}
}

func (it *Iterator) mark(id int) bool {
	span := it.tree.Span(id)
	kept := it.filter.matchSpan(span)
	for _, c := range span.Children {
		if it.mark(c) {
			kept = true
		}
	}
	it.keep[id] = kept
	return kept
}

// MeterPoint pairs a sample with the meter it came from.
type MeterPoint struct {
	Meter  string
	Sample processor.MeterSample
}

// Samples returns the meter samples selected by the filter, ordered by meter
// name and then by time. Independent of the span iteration.
func Samples(tree *processor.Tree, filter Filter) ([]MeterPoint, error) {
	cf, err := filter.compile()
	if err != nil {
		return nil, err
	}
	var points []MeterPoint
	for _, name := range tree.MeterNames() {
		if !cf.matchMeter(name) {
			continue
		}
		for _, sample := range tree.Meter(name).Samples {
			points = append(points, MeterPoint{Meter: name, Sample: sample})
		}
	}
	return points, nil
}

// Collect drains an iterator into a slice of span ids, mostly for display
// layers that want the whole result at once.
func Collect(it *Iterator) []int {
	var ids []int
	for {
		id, ok := it.Next()
		if !ok {
			return ids
		}
		ids = append(ids, id)
	}
}

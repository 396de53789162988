// Package converter maps frozen sessions to and from external profile
// formats: pprof for persistence and collapsed flamegraph text for export.
package converter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/google/uuid"

	"github.com/Joonalai/profiler-qgis-plugin/processor"
)

// Label and comment keys of the pprof encoding. Span samples carry their
// self time as the value; start and duration labels make the round trip
// lossless while any pprof reader still sees a plain wall-time profile.
const (
	labelContext    = "context"
	labelKind       = "kind"
	labelForced     = "forced"
	labelStartNanos = "span_start_ns"
	labelDurNanos   = "span_dur_ns"
	labelTimeNanos  = "ts_ns"
	labelValueMicro = "value_micro"

	kindMeter = "meter"

	commentSession   = "session="
	commentDiscarded = "discarded="
)

// ToProfile encodes a frozen session as a pprof profile: one sample per
// closed span (stack = name path, value = self time), one sample per meter
// reading. Function and location tables are deduplicated by name, as the
// host profiler has no source locations to offer.
func ToProfile(res *processor.Result) *profile.Profile {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "wall", Unit: "nanoseconds"},
			{Type: "spans", Unit: "count"},
		},
		PeriodType: &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
		Period:     1,
		TimeNanos:  res.StartedAt.UnixNano(),
		Comments: []string{
			commentSession + res.ID.String(),
			commentDiscarded + strconv.Itoa(res.Discarded),
		},
	}

	functions := make(map[string]*profile.Function)
	locations := make(map[string]*profile.Location)
	locationFor := func(name string) *profile.Location {
		if loc, ok := locations[name]; ok {
			return loc
		}
		fn := &profile.Function{
			ID:         uint64(len(functions) + 1),
			Name:       name,
			SystemName: name,
		}
		functions[name] = fn
		prof.Function = append(prof.Function, fn)
		loc := &profile.Location{
			ID:   uint64(len(locations) + 1),
			Line: []profile.Line{{Function: fn}},
		}
		locations[name] = loc
		prof.Location = append(prof.Location, loc)
		return loc
	}

	tree := res.Tree
	var first, last int64 = -1, -1
	tree.Walk(func(id, depth int) bool {
		span := tree.Span(id)
		if !span.Closed() {
			return true
		}
		if first < 0 || span.Start < first {
			first = span.Start
		}
		if span.End > last {
			last = span.End
		}

		// Leaf-first stack, following the name path up to the root.
		var stack []*profile.Location
		for at := id; at >= 0; at = tree.Span(at).Parent {
			stack = append(stack, locationFor(tree.Span(at).Name))
		}

		sample := &profile.Sample{
			Location: stack,
			Value:    []int64{span.Self, 1},
			Label:    map[string][]string{labelContext: {span.Context}},
			NumLabel: map[string][]int64{
				labelStartNanos: {span.Start},
				labelDurNanos:   {span.End - span.Start},
			},
		}
		if span.Forced {
			sample.Label[labelForced] = []string{"true"}
		}
		prof.Sample = append(prof.Sample, sample)
		return true
	})

	for _, name := range tree.MeterNames() {
		series := tree.Meter(name)
		loc := locationFor(name)
		for _, s := range series.Samples {
			prof.Sample = append(prof.Sample, &profile.Sample{
				Location: []*profile.Location{loc},
				Value:    []int64{0, 1},
				Label: map[string][]string{
					labelContext: {""},
					labelKind:    {kindMeter},
				},
				NumLabel: map[string][]int64{
					labelTimeNanos:  {s.Time},
					labelValueMicro: {int64(s.Value * 1e6)},
				},
			})
			if s.Time > last {
				last = s.Time
			}
		}
	}

	if first > 0 && last > first {
		prof.DurationNanos = last - first
	} else if last > 0 {
		prof.DurationNanos = last
	}
	return prof
}

// FromProfile rebuilds a frozen session from a profile written by ToProfile.
// Profiles missing the span labels are rejected as unrecognized.
func FromProfile(prof *profile.Profile) (*processor.Result, error) {
	res := &processor.Result{}
	for _, comment := range prof.Comments {
		switch {
		case strings.HasPrefix(comment, commentSession):
			id, err := uuid.Parse(strings.TrimPrefix(comment, commentSession))
			if err == nil {
				res.ID = id
			}
		case strings.HasPrefix(comment, commentDiscarded):
			if n, err := strconv.Atoi(strings.TrimPrefix(comment, commentDiscarded)); err == nil {
				res.Discarded = n
			}
		}
	}
	if prof.TimeNanos > 0 {
		res.StartedAt = time.Unix(0, prof.TimeNanos)
	}

	var records []processor.SpanRecord
	meters := make(map[string][]processor.MeterSample)
	for i, sample := range prof.Sample {
		name, err := leafName(sample)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		if kind := firstLabel(sample.Label, labelKind); kind == kindMeter {
			ts, ok := firstNumLabel(sample.NumLabel, labelTimeNanos)
			if !ok {
				return nil, fmt.Errorf("sample %d: meter sample lacks %s label", i, labelTimeNanos)
			}
			micro, ok := firstNumLabel(sample.NumLabel, labelValueMicro)
			if !ok {
				return nil, fmt.Errorf("sample %d: meter sample lacks %s label", i, labelValueMicro)
			}
			meters[name] = append(meters[name], processor.MeterSample{
				Time:  ts,
				Value: float64(micro) / 1e6,
			})
			continue
		}

		start, ok := firstNumLabel(sample.NumLabel, labelStartNanos)
		if !ok {
			return nil, fmt.Errorf("sample %d: span sample lacks %s label", i, labelStartNanos)
		}
		dur, ok := firstNumLabel(sample.NumLabel, labelDurNanos)
		if !ok {
			return nil, fmt.Errorf("sample %d: span sample lacks %s label", i, labelDurNanos)
		}
		forced := firstLabel(sample.Label, labelForced) == "true"
		records = append(records, processor.SpanRecord{
			Name:    name,
			Context: firstLabel(sample.Label, labelContext),
			Start:   start,
			End:     start + dur,
			Depth:   len(sample.Location) - 1,
			Forced:  forced,
		})
		if forced {
			res.ForceClosed++
		}
	}

	tree, err := processor.RebuildTree(records, meters)
	if err != nil {
		return nil, err
	}
	res.Tree = tree
	return res, nil
}

func leafName(sample *profile.Sample) (string, error) {
	if len(sample.Location) == 0 || len(sample.Location[0].Line) == 0 ||
		sample.Location[0].Line[0].Function == nil {
		return "", fmt.Errorf("sample has no symbolized leaf location")
	}
	return sample.Location[0].Line[0].Function.Name, nil
}

func firstLabel(labels map[string][]string, key string) string {
	if vs := labels[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func firstNumLabel(labels map[string][]int64, key string) (int64, bool) {
	if vs := labels[key]; len(vs) > 0 {
		return vs[0], true
	}
	return 0, false
}

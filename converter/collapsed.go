package converter

import (
	"fmt"
	"io"
	"strings"

	"github.com/Joonalai/profiler-qgis-plugin/processor"
)

// ToCollapsed writes the session's span tree in collapsed flamegraph form:
// one "ctx;root;child;leaf <selfns>" line per span with self time, suitable
// for flamegraph.pl, speedscope and similar tools. Spans whose time is fully
// attributed to children produce no line of their own; their frames still
// appear in descendants' stacks.
func ToCollapsed(res *processor.Result, w io.Writer) error {
	tree := res.Tree
	var path []string
	var werr error
	tree.Walk(func(id, depth int) bool {
		if werr != nil {
			return false
		}
		span := tree.Span(id)
		path = append(path[:depth], span.Name)
		if !span.Closed() || span.Self <= 0 {
			return true
		}
		stack := strings.Join(path[:depth+1], ";")
		if span.Context != "" {
			stack = span.Context + ";" + stack
		}
		_, werr = fmt.Fprintf(w, "%s %d\n", stack, span.Self)
		return true
	})
	return werr
}

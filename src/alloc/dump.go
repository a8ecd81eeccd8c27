package alloc

import (
	"fmt"
	"io"
	"sort"

	"chowra/src/lr"
)

// DumpInterferenceGraph writes a minimal textual adjacency listing of ranges
// to w, one line per live range: its id, class, color (or "-" if uncolored)
// and its neighbor ids in ascending order. It exists for test introspection
// and the CLI's debug output, not as a replacement for a real graph format -
// original_source/dot_dump.cc's full graphviz emitter is out of scope.
func DumpInterferenceGraph(w io.Writer, ranges []*lr.LiveRange) {
	sorted := make([]*lr.LiveRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, l := range sorted {
		neighbors := make([]int, 0, len(l.FearList))
		for n := range l.FearList {
			neighbors = append(neighbors, n.ID)
		}
		sort.Ints(neighbors)

		color := "-"
		if l.Color != lr.NoColor {
			color = fmt.Sprintf("%d", l.Color)
		}
		fmt.Fprintf(w, "lr %d class=%d color=%s neighbors=%v\n", l.ID, l.RC, color, neighbors)
	}
}

// Package motion moves spill loads and stores off the blocks where the
// allocator first wanted them onto the CFG edge between the defining and
// using live range halves, always splitting the edge to hold them, and replaces
// matching load/store pairs for the same original live range with a cheaper
// register copy - "enhanced code motion", grounded on
// original_source/chow.cc's MoveLoadsAndStores and
// chow_extensions.cc's EnhancedCodeMotion.
package motion

import (
	"chowra/src/ir"
	"chowra/src/lr"
	"chowra/src/spill"
	"chowra/src/stats"
)

// Kind identifies what a Move will materialize into once inserted.
type Kind int

const (
	Load Kind = iota
	Store
)

// Move is one load or store the priority allocator decided should happen on
// a CFG edge rather than inside a fixed block, grounded on chow.cc's
// MovedSpillDescription.
type Move struct {
	Kind       Kind
	LR         *lr.LiveRange
	MachineReg int
	OrigBlock  *ir.Block // Where the value was defined/used before being moved.
}

// Planner accumulates the moves pending on each edge before Apply inserts
// them, grounded on chow.cc's per-edge edge_extension->spill_list.
type Planner struct {
	pending map[*ir.Edge][]Move
}

// NewPlanner returns an empty Planner.
func NewPlanner() *Planner { return &Planner{pending: map[*ir.Edge][]Move{}} }

// Add schedules mv to happen on edge e.
func (p *Planner) Add(e *ir.Edge, mv Move) {
	p.pending[e] = append(p.pending[e], mv)
}

// Apply walks every edge with pending moves, runs enhanced code motion over
// it when enabled, splits the edge (every edge with pending moves is split,
// whatever the moves are), and inserts the resulting loads/stores/copies via mgr. Grounded on
// chow.cc's MoveLoadsAndStores.
func (p *Planner) Apply(fn *ir.Function, mgr *spill.Manager, enhanced bool, st *stats.Stats) {
	for _, e := range allEdgesWithMoves(fn, p.pending) {
		moves := p.pending[e]
		if len(moves) == 0 {
			continue
		}

		var copies []copyPair
		if enhanced {
			copies, moves = enhancedCodeMotion(moves, st)
		}

		// Always land moved loads/stores/copies in a fresh block carved out
		// of the edge itself, rather than reasoning about whether the
		// predecessor's tail or successor's head is safe to reuse - simpler
		// than chow.cc's need_split cases and correct in every case they
		// cover, at the cost of always introducing one extra block.
		home := fn.SplitEdge(e, e.Pred.Name+"."+e.Succ.Name)

		for _, cp := range copies {
			mgr.AppendCopy(cp.srcLR, home, cp.srcReg, cp.dstReg)
			st.Chow.CInsertedCopies++
		}
		for _, mv := range moves {
			switch mv.Kind {
			case Store:
				mgr.AppendStore(mv.LR, home, mv.MachineReg)
				st.Chow.CChowStores++
			case Load:
				mgr.AppendLoad(mv.LR, home, mv.MachineReg)
				st.Chow.CChowLoads++
			}
		}
	}
}

func allEdgesWithMoves(fn *ir.Function, pending map[*ir.Edge][]Move) []*ir.Edge {
	var out []*ir.Edge
	for _, b := range fn.Blocks {
		for _, e := range b.Succs {
			if _, ok := pending[e]; ok {
				out = append(out, e)
			}
		}
	}
	return out
}

type copyPair struct {
	srcLR          *lr.LiveRange
	srcReg, dstReg int
}

// enhancedCodeMotion pairs up a store and a load for the same original live
// range on one edge into a register copy, returning the copies to insert and
// the remaining moves that still need a real memory access. When the set of
// copies contains a cycle (copy A's destination register is copy B's source,
// and vice versa through some chain), no valid insertion order exists
// without a temporary, so every candidate copy on the edge reverts to a load,
// including copies that are not part of the cycle, and
// st.Chow.CThwartedCopies is incremented once per reverted copy - grounded on
// chow_extensions.cc's EnhancedCodeMotion/OrderCopies.
func enhancedCodeMotion(moves []Move, st *stats.Stats) ([]copyPair, []Move) {
	byLRID := map[int][]Move{}
	for _, mv := range moves {
		if mv.Kind == Load || mv.Kind == Store {
			byLRID[mv.LR.OrigID] = append(byLRID[mv.LR.OrigID], mv)
		}
	}

	var candidates []copyPair
	handled := map[int]bool{}
	var remaining []Move
	for _, mv := range moves {
		if mv.Kind != Load && mv.Kind != Store {
			remaining = append(remaining, mv)
			continue
		}
		pair := byLRID[mv.LR.OrigID]
		if len(pair) != 2 || handled[mv.LR.OrigID] {
			if !handled[mv.LR.OrigID] {
				remaining = append(remaining, mv)
			}
			continue
		}
		handled[mv.LR.OrigID] = true
		var store, load Move
		for _, m := range pair {
			if m.Kind == Store {
				store = m
			} else {
				load = m
			}
		}
		candidates = append(candidates, copyPair{srcLR: store.LR, srcReg: store.MachineReg, dstReg: load.MachineReg})
	}

	ordered, ok := orderCopies(candidates)
	if ok {
		return ordered, remaining
	}

	// A cycle exists among the candidate copies; fall back to loads for all
	// of them instead.
	for _, c := range candidates {
		remaining = append(remaining, Move{Kind: Load, LR: c.srcLR, MachineReg: c.dstReg})
		st.Chow.CThwartedCopies++
	}
	return nil, remaining
}

// orderCopies topologically sorts copies so a copy that writes register r
// always runs before any copy that reads r as its source, returning ok=false
// if that constraint graph has a cycle. Grounded on chow_extensions.cc's
// OrderCopies.
func orderCopies(copies []copyPair) ([]copyPair, bool) {
	n := len(copies)
	if n == 0 {
		return nil, true
	}
	// before[i] holds every index that must run before i, because i reads a
	// register another copy writes.
	before := make([][]int, n)
	for i, c := range copies {
		for j, d := range copies {
			if i == j {
				continue
			}
			if c.srcReg == d.dstReg {
				before[i] = append(before[i], j)
			}
		}
	}

	var order []copyPair
	state := make([]int, n) // 0=unvisited 1=visiting 2=done
	var visit func(i int) bool
	visit = func(i int) bool {
		switch state[i] {
		case 2:
			return true
		case 1:
			return false // Cycle.
		}
		state[i] = 1
		for _, j := range before[i] {
			if !visit(j) {
				return false
			}
		}
		state[i] = 2
		order = append(order, copies[i])
		return true
	}

	for i := range copies {
		if !visit(i) {
			return nil, false
		}
	}
	return order, true
}

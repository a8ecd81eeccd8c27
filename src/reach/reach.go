// Package reach computes, per block, the set of blocks reachable from it along the
// CFG (including itself). lr.MarkStores uses it to union the reaching sets of every
// defining block of a live range and intersect with the range's own bb_list to
// decide which live units need a store. Grounded on original_source/reach.cc's
// worklist fixed-point iteration over a postorder block traversal.
package reach

import (
	"github.com/bits-and-blooms/bitset"

	"chowra/src/ir"
)

// Sets holds the computed reachable-block bitset for every block of one function,
// indexed by Block.ID.
type Sets struct {
	reach []*bitset.BitSet
}

// Compute runs the reachability fixed-point over fn and returns the resulting Sets.
func Compute(fn *ir.Function) *Sets {
	n := uint(len(fn.Blocks))
	s := &Sets{reach: make([]*bitset.BitSet, n)}
	for i := range s.reach {
		s.reach[i] = bitset.New(n)
	}

	postorder := postorderBlocks(fn)
	changed := true
	tmp := bitset.New(n)
	for changed {
		changed = false
		for _, b := range postorder {
			tmp.ClearAll()
			tmp.Set(uint(b.ID))
			for _, e := range b.Succs {
				tmp.InPlaceUnion(s.reach[e.Succ.ID])
			}
			if !tmp.Equal(s.reach[b.ID]) {
				changed = true
				s.reach[b.ID] = tmp.Clone()
			}
		}
	}
	return s
}

// ReachableBlocks returns the bitset of blocks reachable from b, indexed by Block.ID.
func (s *Sets) ReachableBlocks(b *ir.Block) *bitset.BitSet {
	return s.reach[b.ID]
}

// postorderBlocks returns fn's blocks in reverse-postorder-derived postorder, a
// simple DFS postorder since the CFG may be irreducible in principle but is
// expected to be reducible for the programs this allocator processes.
func postorderBlocks(fn *ir.Function) []*ir.Block {
	visited := make([]bool, len(fn.Blocks))
	var order []*ir.Block
	var visit func(b *ir.Block)
	visit = func(b *ir.Block) {
		if visited[b.ID] {
			return
		}
		visited[b.ID] = true
		for _, e := range b.Succs {
			visit(e.Succ)
		}
		order = append(order, b)
	}
	if entry := fn.Entry(); entry != nil {
		visit(entry)
	}
	for _, b := range fn.Blocks {
		visit(b)
	}
	return order
}

// Package cleave splits overlong basic blocks into a chain of smaller ones,
// grounded on original_source/cleave.c: each block longer than a configured
// instruction limit is cut from the bottom up into a new successor block,
// repeatedly, until every resulting block is short enough.
package cleave

import "chowra/src/ir"

// Pred decides where to cut blk, returning the instruction that should become
// the new block's last instruction, or nil if blk needs no further cleaving.
// Grounded on cleave.c's fnCleavePred (In_CleavePred by default).
type Pred func(blk *ir.Block) *ir.Inst

// ByInstCount returns a Pred that cleaves blk whenever it holds more than
// maxInsts instructions, cutting so the remainder (top part) still holds
// maxInsts, grounded on cleave.c's In_CleavePred.
func ByInstCount(maxInsts int) Pred {
	return func(blk *ir.Block) *ir.Inst {
		if maxInsts <= 0 || blk.Len() <= maxInsts {
			return nil
		}
		count := 0
		var cut *ir.Inst
		for i := blk.Last(); i != nil; i = i.Prev() {
			count++
			if count == maxInsts {
				if i != blk.First() {
					cut = i
				}
				break
			}
		}
		return cut
	}
}

// Blocks runs pred over every block of fn, cleaving each as many times as
// pred demands, and returns every newly created block in creation order.
// Grounded on cleave.c's CleaveBlocksWithPred/Blk_CleaveBlock.
func Blocks(fn *ir.Function, pred Pred) []*ir.Block {
	var created []*ir.Block
	// Snapshot the block list first: newly created blocks must not be
	// re-examined by this same pass, mirroring cleave.c's separate
	// discovery and cleave phases.
	targets := append([]*ir.Block(nil), fn.Blocks...)
	for _, blk := range targets {
		for {
			cut := pred(blk)
			if cut == nil {
				break
			}
			nb := cleaveAt(fn, blk, cut)
			created = append(created, nb)
		}
	}
	return created
}

// cleaveAt moves every instruction from cut to blk's end into a new block
// wired as blk's sole fallthrough successor, grounded on cleave.c's
// Blk2_CleaveBlockAt/MoveInstTo/FixControlFlow.
func cleaveAt(fn *ir.Function, blk *ir.Block, cut *ir.Inst) *ir.Block {
	nb := ir.NewBlock(fn.NextBlockID(), blk.Name+".cleave")
	fn.AddBlock(nb)

	var moved []*ir.Inst
	for i := cut; i != nil; i = i.Next() {
		moved = append(moved, i)
	}
	for _, i := range moved {
		blk.Remove(i)
		nb.Append(i.Op)
	}

	// Retarget blk's existing successor edges onto nb, then wire a single
	// fallthrough edge from blk to nb, mirroring FixControlFlow.
	for _, e := range blk.Succs {
		e.Pred = nb
		nb.Succs = append(nb.Succs, e)
	}
	blk.Succs = nil
	fn.AddEdge(blk, nb)
	return nb
}

package alloc

import (
	"chowra/src/ir"
	"chowra/src/lr"
)

// HowToSplit resolves the -s CLI selector to an lr.HowToSplitFunc, grounded on
// original_source/heuristics.cc's SplitStrategy/ChowSplit/UpAndDownSplit: both grow
// the new live range breadth-first from the seed block, differing only in whether
// they also explore predecessors.
func HowToSplit(id int, cp lr.ColorProvider) lr.HowToSplitFunc {
	expandPreds := id == HowToSplitUpAndDown
	return func(newlr, origlr *lr.LiveRange, start *lr.LiveUnit, include lr.IncludeInSplitFunc) {
		fringe := []*ir.Block{start.Block}
		for len(fringe) > 0 {
			b := fringe[0]
			fringe = fringe[1:]

			for _, e := range b.Succs {
				succ := e.Succ
				if origlr.ContainsBlock(succ) && include(newlr, origlr, succ) {
					if u := origlr.LiveUnitForBlock(succ); u != nil {
						origlr.TransferLiveUnitTo(newlr, u, cp)
						fringe = append(fringe, succ)
					}
				}
			}
			if expandPreds {
				for _, e := range b.Preds {
					pred := e.Pred
					if origlr.ContainsBlock(pred) && include(newlr, origlr, pred) {
						if u := origlr.LiveUnitForBlock(pred); u != nil {
							origlr.TransferLiveUnitTo(newlr, u, cp)
							fringe = append(fringe, pred)
						}
					}
				}
			}
		}
	}
}

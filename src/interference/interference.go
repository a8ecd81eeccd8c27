// Package interference builds the live ranges of a function and the interference
// graph among them, grounded on original_source/chow.cc's CreateLiveRanges and
// BuildInterferences: it walks every block once, backward, collecting the live
// ranges referenced or live-out in that block, and pairwise interferes whichever
// live ranges share a block and a register class.
package interference

import (
	"chowra/src/ir"
	"chowra/src/lr"
	"chowra/src/regclass"
	"chowra/src/unionfind"
)

// inferDefType classifies an Operation's def by the register class its opcode
// implies. The IR carries no separate type table, so the copy/call opcode used to
// move a value stands in for its class, mirroring the role
// original_source/Shared.h's Def_Type enum plays off of the operator table.
func inferDefType(op *ir.Operation) regclass.DefType {
	switch op.Op {
	case ir.OpF2F, ir.OpFJSR:
		return regclass.FloatDef
	case ir.OpD2D, ir.OpDJSR:
		return regclass.DoubleDef
	default:
		return regclass.IntDef
	}
}

// Build runs union-find over every phi in fn to collapse SSA names into original
// live-range ids, then walks every block to create one lr.LiveRange per id present
// in the function, add its live units, and wire pairwise interference edges.
func Build(fn *ir.Function, regTable *regclass.Table, cp lr.ColorProvider) ([]*lr.LiveRange, map[ir.Variable]int) {
	uf := unionfind.New(int(fn.MaxName()) + 1)
	for _, b := range fn.Blocks {
		for _, p := range b.Phis {
			for _, operand := range p.Operands {
				uf.Union(int(p.NewName), int(operand))
			}
		}
	}

	repToIdx := map[int]int{}
	var ranges []*lr.LiveRange
	defTypeByRep := map[int]regclass.DefType{}

	origLRID := func(v ir.Variable) int { return uf.Find(int(v)) }

	ensureLR := func(rep int, dt regclass.DefType) *lr.LiveRange {
		idx, ok := repToIdx[rep]
		if ok {
			return ranges[idx]
		}
		rc := regTable.ClassOf(dt)
		nmr := regTable.NumMachineReg(rc)
		l := lr.New(len(ranges), rc, dt, len(fn.Blocks), nmr)
		idx = len(ranges)
		ranges = append(ranges, l)
		repToIdx[rep] = idx
		defTypeByRep[rep] = dt
		return l
	}

	for _, b := range fn.Blocks {
		present := map[int]bool{}
		useDefCount := map[int]struct{ uses, defs int }{}
		startWithDef := map[int]bool{}
		// origNameByRep records the actual SSA name by which each live range is
		// known in this block - distinct from the union-find representative,
		// which only identifies which live range a name belongs to.
		origNameByRep := map[int]ir.Variable{}

		b.EachReverse(func(i *ir.Inst) {
			for _, d := range i.Op.Defs {
				rep := origLRID(d)
				present[rep] = true
				if _, ok := origNameByRep[rep]; !ok {
					origNameByRep[rep] = d
				}
				c := useDefCount[rep]
				c.defs++
				useDefCount[rep] = c
				if _, ok := defTypeByRep[rep]; !ok {
					defTypeByRep[rep] = inferDefType(i.Op)
				}
			}
			for _, u := range i.Op.Uses {
				rep := origLRID(u)
				present[rep] = true
				if _, ok := origNameByRep[rep]; !ok {
					origNameByRep[rep] = u
				}
				c := useDefCount[rep]
				c.uses++
				useDefCount[rep] = c
			}
		})
		// start_with_def: true iff the first real instruction of the block defines
		// this live range's original name.
		if first := b.First(); first != nil {
			for _, d := range first.Op.Defs {
				startWithDef[origLRID(d)] = true
			}
		}

		if b.LiveOut != nil {
			for e, ok := b.LiveOut.NextSet(0); ok; e, ok = b.LiveOut.NextSet(e + 1) {
				rep := origLRID(ir.Variable(e))
				present[rep] = true
				if _, ok := origNameByRep[rep]; !ok {
					origNameByRep[rep] = ir.Variable(e)
				}
			}
		}

		for rep := range present {
			dt := defTypeByRep[rep]
			l := ensureLR(rep, dt)
			c := useDefCount[rep]
			l.AddLiveUnitForBlock(b, origNameByRep[rep], c.uses, c.defs, startWithDef[rep], cp)
		}

		for rep := range present {
			l := repToIdx[rep]
			for rep2 := range present {
				if rep == rep2 {
					continue
				}
				l2 := repToIdx[rep2]
				if ranges[l].RC == ranges[l2].RC {
					ranges[l].AddInterference(ranges[l2])
				}
			}
		}
	}

	mapping := map[ir.Variable]int{}
	for v := ir.Variable(0); v <= fn.MaxName(); v++ {
		rep := uf.Find(int(v))
		if idx, ok := repToIdx[rep]; ok {
			mapping[v] = idx
		}
	}
	return ranges, mapping
}

package motion

import (
	"testing"

	"chowra/src/ir"
	"chowra/src/lr"
	"chowra/src/regclass"
	"chowra/src/spill"
	"chowra/src/stats"
)

func edgeFixture() (*ir.Function, *ir.Edge) {
	fn := ir.NewFunction("f")
	pred := ir.NewBlock(0, "pred")
	succ := ir.NewBlock(1, "succ")
	fn.AddBlock(pred)
	fn.AddBlock(succ)
	e := fn.AddEdge(pred, succ)
	return fn, e
}

func TestApplyInsertsAStandaloneLoadOnASplitBlock(t *testing.T) {
	fn, e := edgeFixture()
	p := NewPlanner()
	l := lr.New(1, 0, regclass.IntDef, 2, 4)
	p.Add(e, Move{Kind: Load, LR: l, MachineReg: 3})

	frame := ir.NewFrame(0, 0, 4)
	mgr := spill.New(frame, false, 9)
	st := stats.New()

	p.Apply(fn, mgr, false, st)

	if len(fn.Blocks) != 3 {
		t.Fatalf("expected Apply to split the edge into a new block, got %d blocks", len(fn.Blocks))
	}
	home := fn.Blocks[2]
	if home.Len() != 1 {
		t.Fatalf("expected the split block to hold exactly the inserted load, got %d insts", home.Len())
	}
	if st.Chow.CChowLoads != 1 {
		t.Errorf("expected CChowLoads to be incremented once, got %d", st.Chow.CChowLoads)
	}
}

// TestEnhancedCodeMotion reproduces scenario 5: two sibling splits of one LR,
// colored to different machine registers, meeting on edge (pred, succ). With
// enhanced code motion on, the store/load pair collapses into a single
// register copy and no memory op is emitted on that edge.
func TestEnhancedCodeMotion(t *testing.T) {
	fn, e := edgeFixture()
	p := NewPlanner()
	l := lr.New(1, 0, regclass.IntDef, 2, 4)
	p.Add(e, Move{Kind: Store, LR: l, MachineReg: 2})
	p.Add(e, Move{Kind: Load, LR: l, MachineReg: 5})

	frame := ir.NewFrame(0, 0, 4)
	mgr := spill.New(frame, false, 9)
	st := stats.New()

	p.Apply(fn, mgr, true, st)

	home := fn.Blocks[2]
	if home.Len() != 1 {
		t.Fatalf("expected the store/load pair to collapse into a single copy, got %d insts", home.Len())
	}
	if home.First().Op.Op != ir.OpI2I {
		t.Errorf("expected the merged instruction to be a register copy, got %v", home.First().Op.Op)
	}
	if st.Chow.CInsertedCopies != 1 {
		t.Errorf("expected CInsertedCopies to be incremented once, got %d", st.Chow.CInsertedCopies)
	}
	if st.Chow.CChowLoads != 0 || st.Chow.CChowStores != 0 {
		t.Errorf("expected no standalone load/store once merged into a copy")
	}
}

// TestCopyCycleFallback reproduces scenario 6: two splits meeting on two
// edges induce reciprocal copies r1=>r2 and r2=>r1 in the same split block.
// The cyclic dependence is detected, both copies revert to loads, and
// cThwartedCopies is incremented by 2.
func TestCopyCycleFallback(t *testing.T) {
	a := lr.New(1, 0, regclass.IntDef, 1, 4)
	b := lr.New(2, 0, regclass.IntDef, 1, 4)

	// a's copy writes register 1 (b's source) while b's copy writes
	// register 2 (a's source): a cycle with no valid copy ordering.
	moves := []Move{
		{Kind: Store, LR: a, MachineReg: 2},
		{Kind: Load, LR: a, MachineReg: 1},
		{Kind: Store, LR: b, MachineReg: 1},
		{Kind: Load, LR: b, MachineReg: 2},
	}

	st := stats.New()
	copies, remaining := enhancedCodeMotion(moves, st)

	if len(copies) != 0 {
		t.Errorf("expected no copies to survive a cyclic dependency, got %v", copies)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected both pairs to fall back to loads, got %d", len(remaining))
	}
	if st.Chow.CThwartedCopies != 2 {
		t.Errorf("expected CThwartedCopies to count both thwarted copies, got %d", st.Chow.CThwartedCopies)
	}
}

package rewrite

import (
	"testing"

	"chowra/src/alloc"
	"chowra/src/assign"
	"chowra/src/ir"
	"chowra/src/lr"
	"chowra/src/motion"
	"chowra/src/regclass"
	"chowra/src/spill"
	"chowra/src/stats"
)

func TestBuildIndexMapsEveryUnitByBlockAndOrigID(t *testing.T) {
	b0 := ir.NewBlock(0, "b0")
	b1 := ir.NewBlock(1, "b1")

	l1 := lr.New(1, 0, regclass.IntDef, 2, 8)
	l1.OrigID = 10
	l1.AddLiveUnitForBlock(b0, 1, 1, 0, false, nil)

	l2 := lr.New(2, 0, regclass.IntDef, 2, 8)
	l2.OrigID = 20
	l2.AddLiveUnitForBlock(b0, 2, 1, 0, false, nil)
	l2.AddLiveUnitForBlock(b1, 2, 0, 1, true, nil)

	idx := BuildIndex([]*lr.LiveRange{l1, l2})

	if ref, ok := idx.lookup(b0, 10); !ok || ref.lr != l1 {
		t.Errorf("expected b0/10 to resolve to l1, got %+v, %v", ref, ok)
	}
	if ref, ok := idx.lookup(b0, 20); !ok || ref.lr != l2 {
		t.Errorf("expected b0/20 to resolve to l2, got %+v, %v", ref, ok)
	}
	if _, ok := idx.lookup(b1, 10); ok {
		t.Errorf("expected b1/10 to be absent, l1 never occupies b1")
	}
	if ref, ok := idx.lookup(b1, 20); !ok || ref.lr != l2 {
		t.Errorf("expected b1/20 to resolve to l2, got %+v, %v", ref, ok)
	}
}

func TestRunRenamesColoredUsesAndDefsToMachineRegisters(t *testing.T) {
	fn := ir.NewFunction("f")
	b0 := ir.NewBlock(0, "b0")
	fn.AddBlock(b0)

	x, y, z := ir.Variable(1), ir.Variable(2), ir.Variable(3)
	op := ir.NewOperation(ir.OpAdd, nil, []ir.Variable{x, y}, []ir.Variable{z})
	b0.Append(op)

	mapping := map[ir.Variable]int{x: 10, y: 20, z: 30}

	table := regclass.NewTable(8, false, nil)
	color := alloc.NewColoring(table, 1)

	lx := lr.New(1, 0, regclass.IntDef, 1, 8)
	lx.OrigID = 10
	ly := lr.New(2, 0, regclass.IntDef, 1, 8)
	ly.OrigID = 20
	lz := lr.New(3, 0, regclass.IntDef, 1, 8)
	lz.OrigID = 30

	lx.AddLiveUnitForBlock(b0, x, 1, 0, false, nil)
	ly.AddLiveUnitForBlock(b0, y, 1, 0, false, nil)
	lz.AddLiveUnitForBlock(b0, z, 0, 1, false, nil)

	lx.AddInterference(ly)
	lx.AddInterference(lz)
	ly.AddInterference(lz)

	chooseFirst := func(l *lr.LiveRange, choices []int) int { return choices[0] }
	color.AssignColor(lx, chooseFirst)
	color.AssignColor(ly, chooseFirst)
	color.AssignColor(lz, chooseFirst)

	idx := BuildIndex([]*lr.LiveRange{lx, ly, lz})

	frame := ir.NewFrame(0, 0, 4)
	mgr := spill.New(frame, false, 9)
	pool := assign.NewPool(table)
	planner := motion.NewPlanner()
	st := stats.New()

	Run(fn, table, color, idx, mapping, mgr, pool, planner, Cfg{}, st)

	if b0.Len() != 1 {
		t.Fatalf("expected no loads/stores to be inserted for fully colored, non-crossing units, got %d insts", b0.Len())
	}
	if op.Uses[0] != ir.Variable(lx.Color) || op.Uses[1] != ir.Variable(ly.Color) {
		t.Errorf("expected uses to be renamed to their colors, got %v", op.Uses)
	}
	if op.Defs[0] != ir.Variable(lz.Color) {
		t.Errorf("expected the def to be renamed to its color, got %v", op.Defs)
	}
}

func TestHandleCopyConvertsSpilledSourceCopyToLoad(t *testing.T) {
	b0 := ir.NewBlock(0, "b0")
	src, dst := ir.Variable(1), ir.Variable(2)
	mapping := map[ir.Variable]int{src: 100, dst: 200}

	lsrc := lr.New(1, 0, regclass.IntDef, 1, 8)
	lsrc.OrigID = 100
	lsrc.AddLiveUnitForBlock(b0, src, 1, 0, false, nil)

	ldst := lr.New(2, 0, regclass.IntDef, 1, 8)
	ldst.OrigID = 200
	ldst.AddLiveUnitForBlock(b0, dst, 0, 1, false, nil)

	table := regclass.NewTable(8, false, nil)
	color := alloc.NewColoring(table, 1)
	color.AssignColor(ldst, func(l *lr.LiveRange, choices []int) int { return choices[0] })

	idx := BuildIndex([]*lr.LiveRange{lsrc, ldst})

	frame := ir.NewFrame(0, 0, 4)
	mgr := spill.New(frame, false, 9)

	inst := b0.Append(ir.NewOperation(ir.OpI2I, nil, []ir.Variable{src}, []ir.Variable{dst}))

	if !handleCopy(b0, inst, color, idx, mapping, mgr) {
		t.Fatalf("expected handleCopy to consume a copy whose source is spilled")
	}
	if inst.Op.Op != ir.OpLoadAI {
		t.Errorf("expected the copy to become a load, got %v", inst.Op.Op)
	}
	if inst.Op.Defs[0] != ir.Variable(ldst.Color) {
		t.Errorf("expected the load to define the destination's color, got %v", inst.Op.Defs)
	}
}

func TestHandleCopyLeavesOrdinaryCopyAloneWhenSourceIsColored(t *testing.T) {
	b0 := ir.NewBlock(0, "b0")
	src, dst := ir.Variable(1), ir.Variable(2)
	mapping := map[ir.Variable]int{src: 100, dst: 200}

	lsrc := lr.New(1, 0, regclass.IntDef, 1, 8)
	lsrc.OrigID = 100
	lsrc.AddLiveUnitForBlock(b0, src, 1, 0, false, nil)

	ldst := lr.New(2, 0, regclass.IntDef, 1, 8)
	ldst.OrigID = 200
	ldst.AddLiveUnitForBlock(b0, dst, 0, 1, false, nil)

	table := regclass.NewTable(8, false, nil)
	color := alloc.NewColoring(table, 1)
	chooseFirst := func(l *lr.LiveRange, choices []int) int { return choices[0] }
	color.AssignColor(lsrc, chooseFirst)
	color.AssignColor(ldst, chooseFirst)

	idx := BuildIndex([]*lr.LiveRange{lsrc, ldst})

	frame := ir.NewFrame(0, 0, 4)
	mgr := spill.New(frame, false, 9)

	inst := b0.Append(ir.NewOperation(ir.OpI2I, nil, []ir.Variable{src}, []ir.Variable{dst}))

	if handleCopy(b0, inst, color, idx, mapping, mgr) {
		t.Errorf("expected handleCopy to leave a copy between two colored ranges for the generic rename path")
	}
	if inst.Op.Op != ir.OpI2I {
		t.Errorf("expected the instruction to remain an untouched copy, got %v", inst.Op.Op)
	}
}

func TestLoadEntryPointsSchedulesOntoExternalPredecessorEdgeWhenMotionEnabled(t *testing.T) {
	fn := ir.NewFunction("f")
	b0 := ir.NewBlock(0, "pred")
	b1 := ir.NewBlock(1, "succ")
	fn.AddBlock(b0)
	fn.AddBlock(b1)
	fn.AddEdge(b0, b1)

	l := lr.New(1, 0, regclass.IntDef, 2, 8)
	l.OrigID = 5
	u := l.AddLiveUnitForBlock(b1, 1, 1, 0, false, nil)
	u.NeedLoad = true

	table := regclass.NewTable(8, false, nil)
	color := alloc.NewColoring(table, 2)
	color.AssignColor(l, func(lv *lr.LiveRange, choices []int) int { return choices[0] })

	idx := BuildIndex([]*lr.LiveRange{l})

	frame := ir.NewFrame(0, 0, 4)
	mgr := spill.New(frame, false, 9)
	planner := motion.NewPlanner()

	loadEntryPoints(b1, color, idx, mgr, planner, Cfg{MoveLoadsAndStores: true})

	st := stats.New()
	planner.Apply(fn, mgr, false, st)

	if len(fn.Blocks) != 3 {
		t.Fatalf("expected the scheduled load to split the predecessor edge into a new block, got %d blocks", len(fn.Blocks))
	}
	home := fn.Blocks[2]
	if home.Len() != 1 || home.First().Op.Defs[0] != ir.Variable(l.Color) {
		t.Errorf("expected the split block to hold a load into the live range's color, got %+v", home.First())
	}
}

func TestLoadEntryPointsInsertsInBlockWhenMotionDisabled(t *testing.T) {
	b0 := ir.NewBlock(0, "b0")
	anchor := b0.Append(ir.NewOperation(ir.OpAdd, nil, nil, nil))

	l := lr.New(1, 0, regclass.IntDef, 1, 8)
	l.OrigID = 5
	u := l.AddLiveUnitForBlock(b0, 1, 1, 0, false, nil)
	u.NeedLoad = true

	table := regclass.NewTable(8, false, nil)
	color := alloc.NewColoring(table, 1)
	color.AssignColor(l, func(lv *lr.LiveRange, choices []int) int { return choices[0] })

	idx := BuildIndex([]*lr.LiveRange{l})

	frame := ir.NewFrame(0, 0, 4)
	mgr := spill.New(frame, false, 9)

	loadEntryPoints(b0, color, idx, mgr, nil, Cfg{MoveLoadsAndStores: false})

	if b0.Len() != 2 {
		t.Fatalf("expected a load to be inserted ahead of the existing instruction, got %d insts", b0.Len())
	}
	if b0.First().Op.Defs[0] != ir.Variable(l.Color) {
		t.Errorf("expected the in-block load to define the live range's color, got %+v", b0.First().Op)
	}
	_ = anchor
}

func TestReloadEvictedInsertsALoadAfterTheEvictingInstruction(t *testing.T) {
	b0 := ir.NewBlock(0, "b0")
	after := b0.Append(ir.NewOperation(ir.OpJSR, nil, nil, nil))

	l := lr.New(1, 0, regclass.IntDef, 1, 8)
	l.OrigID = 7
	l.AddLiveUnitForBlock(b0, 1, 1, 0, false, nil)

	table := regclass.NewTable(8, false, nil)
	color := alloc.NewColoring(table, 1)
	color.AssignColor(l, func(lv *lr.LiveRange, choices []int) int { return choices[0] })

	idx := BuildIndex([]*lr.LiveRange{l})

	frame := ir.NewFrame(0, 0, 4)
	mgr := spill.New(frame, false, 9)

	reloadEvicted(b0, after, 7, color, idx, mgr)

	if b0.Len() != 2 {
		t.Fatalf("expected a reload instruction to be inserted, got %d insts", b0.Len())
	}
	last := after.Next()
	if last == nil || last.Op.Defs[0] != ir.Variable(l.Color) {
		t.Errorf("expected the reload to follow the evicting instruction and define the live range's color, got %+v", last)
	}
}

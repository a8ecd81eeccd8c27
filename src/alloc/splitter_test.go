package alloc

import (
	"strings"
	"testing"

	"chowra/src/ir"
	"chowra/src/lr"
	"chowra/src/regclass"
)

// chainFunction builds b0 -> b1 -> b2 -> b3.
func chainFunction() (*ir.Function, []*ir.Block) {
	fn := ir.NewFunction("f")
	blocks := make([]*ir.Block, 4)
	for i := range blocks {
		blocks[i] = ir.NewBlock(i, "b")
		fn.AddBlock(blocks[i])
	}
	for i := 0; i < 3; i++ {
		fn.AddEdge(blocks[i], blocks[i+1])
	}
	return fn, blocks
}

// newShellRange returns an empty live range sharing origID's class and type,
// standing in for the allocator's own lr.LiveRange.Split, which carries out
// the same mitosis step internally before calling a HowToSplitFunc.
func newShellRange(id int, origID int, numBlocks, numMachineReg int) *lr.LiveRange {
	n := lr.New(id, 0, regclass.IntDef, numBlocks, numMachineReg)
	n.OrigID = origID
	return n
}

func TestHowToSplitChowGrowsOnlyForward(t *testing.T) {
	fn, blocks := chainFunction()
	table := regclass.NewTable(8, false, nil)
	c := NewColoring(table, len(fn.Blocks))

	orig := lr.New(1, 0, regclass.IntDef, len(fn.Blocks), table.NumMachineReg(0))
	for _, b := range blocks {
		orig.AddLiveUnitForBlock(b, 1, 1, 0, false, c)
	}

	includeAll := func(newlr, origlr *lr.LiveRange, b *ir.Block) bool { return true }
	newlr := newShellRange(2, orig.OrigID, len(fn.Blocks), table.NumMachineReg(0))

	start := orig.LiveUnitForBlock(blocks[1])
	orig.TransferLiveUnitTo(newlr, start, c)

	howToSplit := HowToSplit(HowToSplitChow, c)
	howToSplit(newlr, orig, start, includeAll)

	for _, b := range blocks[1:] {
		if !newlr.ContainsBlock(b) {
			t.Errorf("expected the chow split to pull forward block %v into the new range", b.Name)
		}
	}
	if newlr.ContainsBlock(blocks[0]) {
		t.Errorf("expected the chow split not to walk backwards into block 0")
	}
}

func TestHowToSplitUpAndDownGrowsBothDirections(t *testing.T) {
	fn, blocks := chainFunction()
	table := regclass.NewTable(8, false, nil)
	c := NewColoring(table, len(fn.Blocks))

	orig := lr.New(1, 0, regclass.IntDef, len(fn.Blocks), table.NumMachineReg(0))
	for _, b := range blocks {
		orig.AddLiveUnitForBlock(b, 1, 1, 0, false, c)
	}

	includeAll := func(newlr, origlr *lr.LiveRange, b *ir.Block) bool { return true }
	newlr := newShellRange(2, orig.OrigID, len(fn.Blocks), table.NumMachineReg(0))

	start := orig.LiveUnitForBlock(blocks[1])
	orig.TransferLiveUnitTo(newlr, start, c)

	howToSplit := HowToSplit(HowToSplitUpAndDown, c)
	howToSplit(newlr, orig, start, includeAll)

	if !newlr.ContainsBlock(blocks[0]) {
		t.Errorf("expected the up-and-down split to also pull in the predecessor block 0")
	}
	if !newlr.ContainsBlock(blocks[2]) {
		t.Errorf("expected the up-and-down split to still pull in successor blocks")
	}
}

func TestDumpInterferenceGraphWritesOneLinePerRange(t *testing.T) {
	b0 := ir.NewBlock(0, "b0")
	table := regclass.NewTable(8, false, nil)
	a := lr.New(1, 0, regclass.IntDef, 1, table.NumMachineReg(0))
	b := lr.New(2, 0, regclass.IntDef, 1, table.NumMachineReg(0))
	a.AddLiveUnitForBlock(b0, 1, 1, 0, false, nil)
	b.AddLiveUnitForBlock(b0, 2, 1, 0, false, nil)
	a.AddInterference(b)
	a.Color = 3

	var sb strings.Builder
	DumpInterferenceGraph(&sb, []*lr.LiveRange{b, a})

	out := sb.String()
	if !strings.Contains(out, "lr 1 class=0 color=3 neighbors=[2]") {
		t.Errorf("expected a's line to list its color and neighbor, got:\n%s", out)
	}
	if !strings.Contains(out, "lr 2 class=0 color=- neighbors=[1]") {
		t.Errorf("expected b's line to show it uncolored, got:\n%s", out)
	}
}

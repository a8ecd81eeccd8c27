package alloc

import (
	"testing"

	"chowra/src/ir"
	"chowra/src/lr"
	"chowra/src/regclass"
)

func TestChooseFirstReturnsFirstChoice(t *testing.T) {
	a := lr.New(1, 0, regclass.IntDef, 1, 4)
	if got := chooseFirst(a, []int{2, 0, 3}); got != 2 {
		t.Errorf("chooseFirst should return choices[0] verbatim, got %d", got)
	}
}

func TestChooseMostForbiddenPrefersColorBlockedByMoreNeighbors(t *testing.T) {
	a := lr.New(1, 0, regclass.IntDef, 1, 4)
	n1 := lr.New(2, 0, regclass.IntDef, 1, 4)
	n2 := lr.New(3, 0, regclass.IntDef, 1, 4)
	a.AddInterference(n1)
	a.AddInterference(n2)

	// Color 1 is forbidden to both neighbors; color 0 only to n1.
	n1.Forbidden.Set(0)
	n1.Forbidden.Set(1)
	n2.Forbidden.Set(1)

	if got := chooseMostForbidden(a, []int{0, 1}); got != 1 {
		t.Errorf("expected color 1 (forbidden to both neighbors) to win, got %d", got)
	}
}

func TestChooseFromMostConstrainedPicksConstrainedNeighborsColor(t *testing.T) {
	a := lr.New(1, 0, regclass.IntDef, 1, 4)
	loose := lr.New(2, 0, regclass.IntDef, 1, 4)
	tight := lr.New(3, 0, regclass.IntDef, 1, 4)
	a.AddInterference(loose)
	a.AddInterference(tight)

	loose.Forbidden.Set(0) // forbidden count 1
	tight.Forbidden.Set(1) // forbidden count 3, includes choice 1
	tight.Forbidden.Set(2)
	tight.Forbidden.Set(3)

	if got := chooseFromMostConstrained(a, []int{0, 1}); got != 1 {
		t.Errorf("expected the more-constrained neighbor's forbidden color 1 to be chosen, got %d", got)
	}
}

func TestChooseWhenToSplitDefaultUsesHasColorAvailable(t *testing.T) {
	table := regclass.NewTable(4, false, nil)
	c := NewColoring(table, 1)
	a := lr.New(1, 0, regclass.IntDef, 1, table.NumMachineReg(0))

	fn := ChooseWhenToSplit(999, 1.0) // unknown id falls back to the default strategy
	if fn(c, a) {
		t.Errorf("expected an unconstrained live range not to need a split")
	}

	for i := uint(0); i < uint(table.NumMachineReg(0)); i++ {
		a.Forbidden.Set(i)
	}
	if !fn(c, a) {
		t.Errorf("expected a fully forbidden live range to need a split")
	}
}

func TestChooseWhenToSplitNumNeighborsTooGreat(t *testing.T) {
	table := regclass.NewTable(4, false, nil)
	c := NewColoring(table, 1)
	a := lr.New(1, 0, regclass.IntDef, 1, table.NumMachineReg(0))
	for i := 0; i < 10; i++ {
		n := lr.New(10+i, 0, regclass.IntDef, 1, table.NumMachineReg(0))
		a.AddInterference(n)
	}

	fn := ChooseWhenToSplit(WhenNumNeighborsTooGreat, 0.5)
	if !fn(c, a) {
		t.Errorf("expected 10 uncolored neighbors against few available colors to trigger a split")
	}
}

func TestChoosePriorityBaseWeightsUsesAndDefs(t *testing.T) {
	pf := ChoosePriority(PriorityClassic, 1, 1, 1, 1)
	u := &lr.LiveUnit{Uses: 2, Defs: 1}
	got := pf(u, 0, 0)
	want := 1*2.0 + 1*1.0
	if got != want {
		t.Errorf("ChoosePriority(classic) = %v, want %v", got, want)
	}
}

func TestChoosePriorityGNUIgnoresMoveCost(t *testing.T) {
	pf := ChoosePriority(PriorityGNU, 1, 1, 1, 2)
	u := &lr.LiveUnit{Uses: 1, Defs: 1}
	got := pf(u, 1, 0)
	want := 2.0 * 2.0 // (uses+defs) * loopDepthWeight^depth
	if got != want {
		t.Errorf("ChoosePriority(GNU) = %v, want %v", got, want)
	}
}

func TestEnsureFeasibleRaisesCountWhenForced(t *testing.T) {
	fn := ir.NewFunction("f")
	b0 := ir.NewBlock(0, "entry")
	fn.AddBlock(b0)
	b0.Append(ir.NewOperation(ir.OpAdd, nil,
		[]ir.Variable{1, 2, 3, 4, 5}, []ir.Variable{6}))

	n, err := EnsureFeasible(fn, 4, true)
	if err != nil {
		t.Fatalf("EnsureFeasible with force=true should not error, got %v", err)
	}
	if n != 6 {
		t.Errorf("expected the feasible count to be raised to 6, got %d", n)
	}
}

func TestEnsureFeasibleReportsErrorWhenNotForced(t *testing.T) {
	fn := ir.NewFunction("f")
	b0 := ir.NewBlock(0, "entry")
	fn.AddBlock(b0)
	b0.Append(ir.NewOperation(ir.OpAdd, nil,
		[]ir.Variable{1, 2, 3, 4, 5}, []ir.Variable{6}))

	_, err := EnsureFeasible(fn, 4, false)
	if err == nil {
		t.Fatalf("expected an infeasibility error")
	}
	fe, ok := err.(*FatalError)
	if !ok || fe.Tag != ErrInfeasible {
		t.Errorf("expected a FatalError tagged ErrInfeasible, got %v", err)
	}
}

func TestEnsureFeasibleLeavesCountUnchangedWhenAlreadyEnough(t *testing.T) {
	fn := ir.NewFunction("f")
	b0 := ir.NewBlock(0, "entry")
	fn.AddBlock(b0)
	b0.Append(ir.NewOperation(ir.OpAdd, nil, []ir.Variable{1, 2}, []ir.Variable{3}))

	n, err := EnsureFeasible(fn, 8, false)
	if err != nil || n != 8 {
		t.Errorf("expected (8, nil) when demand is already met, got (%d, %v)", n, err)
	}
}

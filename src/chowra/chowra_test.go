package chowra

import (
	"strings"
	"testing"

	"chowra/src/ir"
	"chowra/src/util"
)

func parseOneFunction(t *testing.T, text string) *ir.Function {
	t.Helper()
	m, err := ir.Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	if len(m.Functions) != 1 {
		t.Fatalf("expected exactly one function, got %d", len(m.Functions))
	}
	return m.Functions[0]
}

const straightLineFixture = `
function f
frame %0 0
block entry
  %1 = loadI 5
  %2 = loadI 7
  %3 = add %1 %2
  ret %3
`

func TestRunFunctionColorsAStraightLineFunctionWithinBudget(t *testing.T) {
	fn := parseOneFunction(t, straightLineFixture)

	opt := util.Options{NumRegisters: 4, SplitLimit: 10000, LoopDepthWeight: 10}
	st, err := RunFunction(fn, opt, nil)
	if err != nil {
		t.Fatalf("expected a function with three mutually interfering names and three available colors to allocate cleanly, got %v", err)
	}
	if st.Chow.ClrColored != 3 {
		t.Errorf("expected all three live ranges to be colored without spilling, got %d", st.Chow.ClrColored)
	}

	fn.Blocks[0].Each(func(i *ir.Inst) {
		for _, v := range i.Op.Uses {
			if int(v) >= opt.NumRegisters || int(v) < 0 {
				t.Errorf("expected every rewritten use to be a valid machine register below %d, got %d", opt.NumRegisters, v)
			}
		}
		for _, v := range i.Op.Defs {
			if int(v) >= opt.NumRegisters || int(v) < 0 {
				t.Errorf("expected every rewritten def to be a valid machine register below %d, got %d", opt.NumRegisters, v)
			}
		}
	})
}

func TestRunFunctionReportsInfeasibleErrorWhenNotForced(t *testing.T) {
	fn := parseOneFunction(t, straightLineFixture)

	opt := util.Options{NumRegisters: 1, SplitLimit: 10000, LoopDepthWeight: 10}
	_, err := RunFunction(fn, opt, nil)
	if err == nil {
		t.Fatalf("expected an infeasible-register error for a 3-operand instruction with only 1 register requested")
	}
	fe, ok := err.(*FatalError)
	if !ok {
		t.Fatalf("expected a *FatalError, got %T", err)
	}
	if fe.Tag != ErrInfeasible {
		t.Errorf("expected the infeasible tag, got %v", fe.Tag)
	}
}

func TestRunFunctionOutputRoundTripsThroughParse(t *testing.T) {
	fn := parseOneFunction(t, straightLineFixture)

	opt := util.Options{NumRegisters: 4, SplitLimit: 10000, LoopDepthWeight: 10}
	if _, err := RunFunction(fn, opt, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := fn.WriteString()
	if !strings.Contains(out, "function f") {
		t.Fatalf("expected the rewritten output to still name the function, got %q", out)
	}

	if _, err := ir.Parse(strings.NewReader(out)); err != nil {
		t.Errorf("expected the rewritten iloc to parse back cleanly, got %v", err)
	}
}

package ir

import "testing"

func TestOpcodeAttributeQueries(t *testing.T) {
	cases := []struct {
		op                                            Opcode
		load, store, cpy, call, frame, branch, commut bool
	}{
		{OpLoadAI, true, false, false, false, false, false, false},
		{OpStoreAO, false, true, false, false, false, false, false},
		{OpI2I, false, false, true, false, false, false, false},
		{OpJSR, false, false, false, true, false, false, false},
		{OpFrame, false, false, false, false, true, false, false},
		{OpCBR, false, false, false, false, false, true, false},
		{OpAdd, false, false, false, false, false, false, true},
		{OpSub, false, false, false, false, false, false, false},
	}
	for _, c := range cases {
		if got := c.op.IsLoad(); got != c.load {
			t.Errorf("%v.IsLoad() = %v, want %v", c.op, got, c.load)
		}
		if got := c.op.IsStore(); got != c.store {
			t.Errorf("%v.IsStore() = %v, want %v", c.op, got, c.store)
		}
		if got := c.op.IsCopy(); got != c.cpy {
			t.Errorf("%v.IsCopy() = %v, want %v", c.op, got, c.cpy)
		}
		if got := c.op.IsCall(); got != c.call {
			t.Errorf("%v.IsCall() = %v, want %v", c.op, got, c.call)
		}
		if got := c.op.IsFrame(); got != c.frame {
			t.Errorf("%v.IsFrame() = %v, want %v", c.op, got, c.frame)
		}
		if got := c.op.IsBranch(); got != c.branch {
			t.Errorf("%v.IsBranch() = %v, want %v", c.op, got, c.branch)
		}
		if got := c.op.IsCommutative(); got != c.commut {
			t.Errorf("%v.IsCommutative() = %v, want %v", c.op, got, c.commut)
		}
	}
}

func TestOpcodeIsExprIdentifiesRematerializationCandidates(t *testing.T) {
	for _, op := range []Opcode{OpLdi, OpAdd, OpSub, OpMult} {
		if !op.IsExpr() {
			t.Errorf("expected %v to be an expression opcode", op)
		}
	}
	for _, op := range []Opcode{OpLoadAI, OpJump, OpFrame, OpJSR} {
		if op.IsExpr() {
			t.Errorf("expected %v to not be an expression opcode", op)
		}
	}
}

func TestOpcodeStringReturnsMnemonic(t *testing.T) {
	cases := map[Opcode]string{
		OpAdd:    "add",
		OpLdi:    "loadI",
		OpLoadAI: "loadAI",
		OpCBR:    "cbr",
		OpRet:    "ret",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", op, got, want)
		}
	}
	if got := Opcode(-1).String(); got != "???" {
		t.Errorf("expected an unrecognised opcode to stringify to \"???\", got %q", got)
	}
}

func TestCopyOpcodeForWidthSelectsVariant(t *testing.T) {
	if got := CopyOpcodeForWidth(2, false); got != OpD2D {
		t.Errorf("expected width 2 to select d2d regardless of float-ness, got %v", got)
	}
	if got := CopyOpcodeForWidth(1, true); got != OpF2F {
		t.Errorf("expected width 1 float to select f2f, got %v", got)
	}
	if got := CopyOpcodeForWidth(1, false); got != OpI2I {
		t.Errorf("expected width 1 non-float to select i2i, got %v", got)
	}
}

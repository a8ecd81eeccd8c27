package ir

import "testing"

func TestNewOperationCopiesOwnedSlices(t *testing.T) {
	consts := []int{4}
	uses := []Variable{1, 2}
	defs := []Variable{3}

	o := NewOperation(OpAdd, consts, uses, defs)

	consts[0] = 99
	uses[0] = 99
	defs[0] = 99

	if o.Consts[0] != 4 {
		t.Errorf("expected NewOperation to copy Consts, mutation leaked through")
	}
	if o.Uses[0] != 1 {
		t.Errorf("expected NewOperation to copy Uses, mutation leaked through")
	}
	if o.Defs[0] != 3 {
		t.Errorf("expected NewOperation to copy Defs, mutation leaked through")
	}
}

func TestOperationReplaceUseSubstitutesAllOccurrences(t *testing.T) {
	o := NewOperation(OpAdd, nil, []Variable{1, 1, 2}, nil)
	o.ReplaceUse(1, 9)

	want := []Variable{9, 9, 2}
	for i, v := range want {
		if o.Uses[i] != v {
			t.Errorf("expected Uses[%d] == %d after ReplaceUse, got %d", i, v, o.Uses[i])
		}
	}
}

func TestOperationDefinesAndUsesVar(t *testing.T) {
	o := NewOperation(OpAdd, nil, []Variable{1, 2}, []Variable{3})

	if !o.Defines(3) {
		t.Errorf("expected Defines(3) to be true")
	}
	if o.Defines(1) {
		t.Errorf("expected Defines(1) to be false, 1 is a use not a def")
	}
	if !o.UsesVar(1) || !o.UsesVar(2) {
		t.Errorf("expected UsesVar to report true for both uses")
	}
	if o.UsesVar(3) {
		t.Errorf("expected UsesVar(3) to be false, 3 is a def not a use")
	}
}

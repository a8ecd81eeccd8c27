package ir

// Variable names an SSA value by its integer tag, as produced by the external SSA
// builder. Tag 0 is reserved and never denotes a real name.
type Variable int

// Operation is one instruction's opcode together with its constant operands and the
// SSA tags it uses and defines, grounded on original_source/SSA.h's Operation struct.
type Operation struct {
	Op     Opcode
	Consts []int      // Immediate/offset operands, in source order.
	Uses   []Variable // SSA tags read, in source order.
	Defs   []Variable // SSA tags written; at most one for every opcode except calls.
}

// NewOperation builds an Operation with the given uses and defs copied into owned slices.
func NewOperation(op Opcode, consts []int, uses, defs []Variable) *Operation {
	o := &Operation{Op: op}
	if len(consts) > 0 {
		o.Consts = append([]int(nil), consts...)
	}
	if len(uses) > 0 {
		o.Uses = append([]Variable(nil), uses...)
	}
	if len(defs) > 0 {
		o.Defs = append([]Variable(nil), defs...)
	}
	return o
}

// ReplaceUse substitutes every occurrence of from in Uses with to. Used by the
// splitter and the spiller's load insertion to retarget an operand onto a new name.
func (o *Operation) ReplaceUse(from, to Variable) {
	for i, v := range o.Uses {
		if v == from {
			o.Uses[i] = to
		}
	}
}

// Defines reports whether v is among Defs.
func (o *Operation) Defines(v Variable) bool {
	for _, d := range o.Defs {
		if d == v {
			return true
		}
	}
	return false
}

// UsesVar reports whether v is among Uses.
func (o *Operation) UsesVar(v Variable) bool {
	for _, u := range o.Uses {
		if u == v {
			return true
		}
	}
	return false
}

// Package remat implements the sparse conditional constant propagation lattice
// that identifies which SSA names are rematerializable - cheap enough to recompute
// from a pure expression, rather than spill/reload, grounded on
// original_source/rematerialize.cc's three-level TOP/CONST/BOTTOM lattice and its
// worklist propagation over def-use chains.
package remat

import "chowra/src/ir"

// Val is a lattice value: TOP (not yet seen a definition), CONST (defined by one
// consistent rematerializable expression) or BOTTOM (defined inconsistently, or by
// a non-expression operation - must be spilled for real).
type Val int

const (
	Top Val = iota
	Const
	Bottom
)

// Elem is one SSA name's lattice element: its value, and if Const, the expression
// operation that can be re-evaluated to reproduce it.
type Elem struct {
	Val Val
	Op  *ir.Operation
}

// Tags maps every SSA name of a function to its computed lattice element.
type Tags map[ir.Variable]Elem

// ComputeTags runs the fixed-point lattice propagation over fn and returns one Elem
// per SSA name. Grounded on original_source/rematerialize.cc's Remat::ComputeTags.
func ComputeTags(fn *ir.Function) Tags {
	tags := make(Tags, fn.MaxName()+1)
	for v := ir.Variable(0); v <= fn.MaxName(); v++ {
		tags[v] = Elem{Val: Top}
	}

	uses := buildUseIndex(fn)
	var worklist []ir.Variable

	// No frame pointer means no name can ever qualify as a frame operand; -1
	// is never a valid SSA name (NewName starts at 1).
	framePointer := ir.Variable(-1)
	if fn.Frame != nil {
		framePointer = fn.Frame.PointerName
	}

	// Seed: every def produced by an expression-eligible opcode starts at CONST;
	// a copy's def stays at TOP until propagation hands it the source's tag;
	// every other def starts at BOTTOM immediately since it can never be
	// rematerialized.
	for _, b := range fn.Blocks {
		b.Each(func(i *ir.Inst) {
			if len(i.Op.Defs) != 1 {
				for _, d := range i.Op.Defs {
					if tags[d].Val != Bottom {
						tags[d] = Elem{Val: Bottom}
						worklist = append(worklist, d)
					}
				}
				return
			}
			d := i.Op.Defs[0]
			if i.Op.Op.IsExpr() && onlyFrameOperands(i.Op, framePointer) {
				tags[d] = Elem{Val: Const, Op: i.Op}
			} else if !i.Op.Op.IsCopy() {
				tags[d] = Elem{Val: Bottom}
			}
			worklist = append(worklist, d)
		})
	}

	for len(worklist) > 0 {
		def := worklist[0]
		worklist = worklist[1:]

		for _, use := range uses[def] {
			switch u := use.(type) {
			case phiUse:
				orig := tags[u.phi.NewName]
				merged := meetOverPhi(u.phi, tags)
				if merged.Val != orig.Val || (merged.Val == Const && !sameExpr(merged.Op, orig.Op)) {
					tags[u.phi.NewName] = merged
					worklist = append(worklist, u.phi.NewName)
				}
			case opUse:
				if u.op.Op.IsCopy() {
					src, dst := u.op.Uses[0], u.op.Defs[0]
					if lower(tags[src].Val, tags[dst].Val) {
						tags[dst] = tags[src]
						worklist = append(worklist, dst)
					}
				} else {
					for _, d := range u.op.Defs {
						if tags[d].Val != Bottom {
							tags[d] = Elem{Val: Bottom}
							worklist = append(worklist, d)
						}
					}
				}
			}
		}
	}
	return tags
}

// onlyFrameOperands reports whether op has no register operand, or its one
// register operand is exactly the frame/stack pointer - i.e. it is safe to
// re-evaluate anywhere, not just in blocks dominated by its original
// definition.
func onlyFrameOperands(op *ir.Operation, framePointer ir.Variable) bool {
	return len(op.Uses) == 0 || (len(op.Uses) == 1 && op.Uses[0] == framePointer)
}

func lower(a, b Val) bool { return a < b }

func sameExpr(a, b *ir.Operation) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Op != b.Op || len(a.Consts) != len(b.Consts) || len(a.Uses) != len(b.Uses) {
		return false
	}
	for i := range a.Consts {
		if a.Consts[i] != b.Consts[i] {
			return false
		}
	}
	for i := range a.Uses {
		if a.Uses[i] != b.Uses[i] {
			return false
		}
	}
	return true
}

func meetOverPhi(p *ir.Phi, tags Tags) Elem {
	result := Elem{Val: Top}
	for _, operand := range p.Operands {
		e := tags[operand]
		switch {
		case e.Val == Bottom:
			return Elem{Val: Bottom}
		case result.Val == Top:
			result = e
		case result.Val == Const && e.Val == Const && !sameExpr(result.Op, e.Op):
			return Elem{Val: Bottom}
		case result.Val == Const && e.Val == Top:
			// keep result
		}
	}
	return result
}

type phiUse struct{ phi *ir.Phi }
type opUse struct{ op *ir.Operation }

// buildUseIndex maps each SSA name to every place it is used - either as a phi
// operand or as an Operation operand - since the IR does not carry def-use chains
// directly.
func buildUseIndex(fn *ir.Function) map[ir.Variable][]interface{} {
	idx := map[ir.Variable][]interface{}{}
	for _, b := range fn.Blocks {
		for _, p := range b.Phis {
			pp := p
			for _, operand := range pp.Operands {
				idx[operand] = append(idx[operand], phiUse{phi: pp})
			}
		}
		b.Each(func(i *ir.Inst) {
			op := i.Op
			for _, u := range op.Uses {
				idx[u] = append(idx[u], opUse{op: op})
			}
		})
	}
	return idx
}

// PhiSplit records that a phi-node's new name and one of its operands have
// incompatible lattice values, so the live range containing them must be split at
// the phi.
type PhiSplit struct {
	Parent ir.Variable // The phi's own new name.
	Child  ir.Variable // The disagreeing operand.
}

// FindPhiDisagreements scans every phi of fn and reports every operand whose tag
// differs from the phi's own, grounded on original_source/chow.cc's call to
// Remat::AddSplit when a phi operand's tag disagrees with its own new name.
func FindPhiDisagreements(fn *ir.Function, tags Tags) []PhiSplit {
	var out []PhiSplit
	for _, b := range fn.Blocks {
		for _, p := range b.Phis {
			for _, operand := range p.Operands {
				if !tagsEqual(tags, p.NewName, operand) {
					out = append(out, PhiSplit{Parent: p.NewName, Child: operand})
				}
			}
		}
	}
	return out
}

func tagsEqual(tags Tags, a, b ir.Variable) bool {
	ea, eb := tags[a], tags[b]
	if ea.Val != eb.Val {
		return false
	}
	if ea.Val == Const {
		return sameExpr(ea.Op, eb.Op)
	}
	return true
}

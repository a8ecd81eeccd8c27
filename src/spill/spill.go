// Package spill generates the load/store/copy instructions that move a
// spilled live range's value to and from memory, grounded on
// original_source/spill.cc: each original live range is lazily given one
// stack slot the first time it needs one, and a load becomes a lightweight
// recomputation instead of a memory read when the value is rematerializable.
package spill

import (
	"fmt"

	"chowra/src/ir"
	"chowra/src/lr"
	"chowra/src/regclass"
)

// Manager tracks the stack-slot assignment for every original live-range id
// of one function and builds the load/store/copy instructions the assigner
// needs, grounded on spill.cc's module-level frame/lr_mem_map globals
// (here held per-Manager instead of as process state).
type Manager struct {
	frame         *ir.Frame
	memMap        map[int]int // origLRID -> stack offset, lazily assigned.
	rematerialize bool
	frameReg      int // Machine register holding the frame pointer.
}

// New returns a Manager writing spill slots into frame. l.Rematerializable,
// set by package remat before allocation, decides per live range whether a
// load can be a rematerialization instead of a memory read.
func New(frame *ir.Frame, rematerialize bool, frameReg int) *Manager {
	return &Manager{frame: frame, memMap: map[int]int{}, rematerialize: rematerialize, frameReg: frameReg}
}

// SpillLocation returns origLRID's stack slot, reserving one of the given
// size on first use, grounded on spill.cc's SpillLocation/ReserveStackSpace.
func (m *Manager) SpillLocation(origLRID int, size int) int {
	if off, ok := m.memMap[origLRID]; ok {
		return off
	}
	off := m.frame.AllocSlot(size)
	m.memMap[origLRID] = off
	return off
}

// InsertLoad inserts a load for l's value before/after around, returning the
// new instruction. If l is rematerializable, the load is the original
// expression re-evaluated into dest instead of a memory read, grounded on
// spill.cc's InsertLoad/CreateLightWeightLoad/CreateHeavyWeightLoad.
func (m *Manager) InsertLoad(l *lr.LiveRange, around *ir.Inst, dest int, before bool) *ir.Inst {
	return insertAt(around, m.loadOp(l, dest), before)
}

// InsertStore inserts a store of src (holding l's value) around inst,
// grounded on spill.cc's InsertStore.
func (m *Manager) InsertStore(l *lr.LiveRange, around *ir.Inst, src int, before bool) *ir.Inst {
	return insertAt(around, m.storeOp(l, src), before)
}

// InsertCopy inserts a register-to-register copy from src to dest around
// inst, grounded on spill.cc's InsertCopy.
func (m *Manager) InsertCopy(l *lr.LiveRange, around *ir.Inst, src, dest int, before bool) *ir.Inst {
	return insertAt(around, copyOp(l, src, dest), before)
}

// AppendLoad/AppendStore/AppendCopy append to the end of blk directly,
// needed when the target is a freshly created, still-empty block (e.g. a
// split edge's new block) where there is no existing instruction to anchor
// an InsertBefore/InsertAfter call on.
func (m *Manager) AppendLoad(l *lr.LiveRange, blk *ir.Block, dest int) *ir.Inst {
	return blk.Append(m.loadOp(l, dest))
}

func (m *Manager) AppendStore(l *lr.LiveRange, blk *ir.Block, src int) *ir.Inst {
	return blk.Append(m.storeOp(l, src))
}

func (m *Manager) AppendCopy(l *lr.LiveRange, blk *ir.Block, src, dest int) *ir.Inst {
	return blk.Append(copyOp(l, src, dest))
}

// ConvertToLoad turns inst in place into a load of l's value into dest,
// discarding whatever operation it held before. Used by the renamer's
// copy handling (grounded on assign.cc's HandleCopy): rather than load a
// spilled copy source into a temporary and then keep the register-to-
// register copy, the copy instruction itself becomes the load directly
// into the copy's destination register.
func (m *Manager) ConvertToLoad(inst *ir.Inst, l *lr.LiveRange, dest int) {
	inst.Op = m.loadOp(l, dest)
}

func (m *Manager) loadOp(l *lr.LiveRange, dest int) *ir.Operation {
	if m.rematerialize && l.Rematerializable && l.RematOp != nil {
		return lightWeightLoad(l, dest)
	}
	return m.heavyWeightLoad(l, dest)
}

func (m *Manager) storeOp(l *lr.LiveRange, src int) *ir.Operation {
	width := regclass.RegWidth(l.Type)
	offset := m.SpillLocation(l.OrigID, width)
	return ir.NewOperation(storeOpcode(l.Type), []int{offset}, []ir.Variable{ir.Variable(src), ir.Variable(m.frameReg)}, nil)
}

func copyOp(l *lr.LiveRange, src, dest int) *ir.Operation {
	return ir.NewOperation(copyOpcode(l.Type), nil, []ir.Variable{ir.Variable(src)}, []ir.Variable{ir.Variable(dest)})
}

func (m *Manager) heavyWeightLoad(l *lr.LiveRange, dest int) *ir.Operation {
	width := regclass.RegWidth(l.Type)
	offset := m.SpillLocation(l.OrigID, width)
	return ir.NewOperation(loadOpcode(l.Type), []int{offset}, []ir.Variable{ir.Variable(m.frameReg)}, []ir.Variable{ir.Variable(dest)})
}

// lightWeightLoad re-evaluates l's stored rematerialization expression into
// dest instead of reading memory, grounded on spill.cc's
// CreateLightWeightLoad.
func lightWeightLoad(l *lr.LiveRange, dest int) *ir.Operation {
	orig := l.RematOp
	return ir.NewOperation(orig.Op, append([]int(nil), orig.Consts...), append([]ir.Variable(nil), orig.Uses...), []ir.Variable{ir.Variable(dest)})
}

func insertAt(around *ir.Inst, op *ir.Operation, before bool) *ir.Inst {
	b := around.Block()
	if before {
		return b.InsertBefore(op, around)
	}
	return b.InsertAfter(op, around)
}

func loadOpcode(t regclass.DefType) ir.Opcode {
	switch regclass.RegWidth(t) {
	case 2:
		return ir.OpLoadAI
	default:
		return ir.OpLoadAI
	}
}

func storeOpcode(t regclass.DefType) ir.Opcode {
	return ir.OpStoreAI
}

func copyOpcode(t regclass.DefType) ir.Opcode {
	switch t {
	case regclass.FloatDef:
		return ir.OpF2F
	case regclass.DoubleDef:
		return ir.OpD2D
	default:
		return ir.OpI2I
	}
}

// Comment renders a short diagnostic label for a load/store/copy
// instruction, grounded on spill.cc's sprintf-built Comment_Val strings.
func Comment(kind string, l *lr.LiveRange) string {
	return fmt.Sprintf("%s %d_%d", kind, l.OrigID, l.ID)
}

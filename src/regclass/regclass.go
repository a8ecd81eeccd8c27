// Package regclass models the machine's register classes: how many machine
// registers each has, how wide a value of a given definition type is, and which
// registers are reserved for the assigner's own use during spilling. Grounded on
// original_source/rc.cc's RegisterClass namespace, generalized from its hardcoded
// two-class (int/float) table to an arbitrary, partitionable class list.
package regclass

// DefType classifies what an Operation's single def produces, mirroring
// original_source/Shared.h's Def_Type enum.
type DefType int

const (
	NoDef DefType = iota
	IntDef
	FloatDef
	DoubleDef
	ComplexDef
	DComplexDef
	MultDef
)

// regWidth is how many machine registers of its class a value of the given
// def type occupies.
var regWidth = map[DefType]int{
	NoDef: 0, IntDef: 1, FloatDef: 1, DoubleDef: 2, ComplexDef: 2, DComplexDef: 2, MultDef: 0,
}

// RegWidth returns how many consecutive machine registers a value of type t
// occupies.
func RegWidth(t DefType) int { return regWidth[t] }

// ID identifies one register class.
type ID int

// ClassOf returns the register class a def type is allocated from. With
// partitioning disabled every def type maps to class 0.
func ClassOf(t DefType, partitioned bool) ID {
	if !partitioned {
		return 0
	}
	switch t {
	case FloatDef, DoubleDef, ComplexDef, DComplexDef:
		return 1
	default:
		return 0
	}
}

// Reserved holds the machine registers of a class set aside for the assigner's own
// use (spill/reload scratch regs, copy staging), never handed to a live range.
type Reserved struct {
	Regs []int
}

// Table holds the per-class register counts derived from the machine's total
// register count, the partitioning choice and any reserved registers, grounded on
// RegisterClass::Init's mRc_CReg computation.
type Table struct {
	partitioned bool
	numMachine  map[ID]int // Total machine registers per class, before reservation.
	reserved    map[ID]Reserved
	classes     []ID
	framePtrReg int
}

// NewTable builds a Table for numRegisters machine registers, optionally split
// across the int/float partition, reserving reservedRegs (register numbers, not
// counts) uniformly to every class they fall within. One additional register of
// class 0 is always set aside for addressing the stack frame, grounded on
// rc.cc's comment: "we save r0 for the frame pointer so we bump the remaining
// regs by one" - it is excluded from class 0's NumMachineReg (other classes keep
// their full count) the same way reservedRegs are, but never handed to the assigner's scratch pool, since spill
// loads and stores address memory through it directly.
func NewTable(numRegisters int, partitioned bool, reservedRegs []int) *Table {
	t := &Table{partitioned: partitioned, numMachine: map[ID]int{}, reserved: map[ID]Reserved{}, framePtrReg: numRegisters - 1}
	if partitioned {
		t.classes = []ID{0, 1}
	} else {
		t.classes = []ID{0}
	}
	for _, c := range t.classes {
		t.numMachine[c] = numRegisters
	}
	for _, c := range t.classes {
		r := t.reserved[c]
		r.Regs = append(r.Regs, reservedRegs...)
		t.reserved[c] = r
	}
	return t
}

// Classes returns every register class in the table.
func (t *Table) Classes() []ID { return t.classes }

// FramePointerReg returns the machine register reserved for addressing the
// stack frame. It belongs to class 0 and is never a coloring candidate.
func (t *Table) FramePointerReg() int { return t.framePtrReg }

// NumMachineReg returns the number of machine registers available to class c
// for coloring, after subtracting reserved registers and, for class 0, the
// frame pointer register.
func (t *Table) NumMachineReg(c ID) int {
	n := t.numMachine[c] - len(t.reserved[c].Regs)
	if c == 0 {
		n--
	}
	return n
}

// ReservedRegs returns the registers of class c set aside for the assigner.
func (t *Table) ReservedRegs(c ID) []int { return t.reserved[c].Regs }

// Partitioned reports whether int and float values occupy distinct classes.
func (t *Table) Partitioned() bool { return t.partitioned }

// ClassOf returns the register class def type t is allocated from under this table's
// partitioning choice.
func (t *Table) ClassOf(dt DefType) ID { return ClassOf(dt, t.partitioned) }

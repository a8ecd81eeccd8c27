// Package lr builds and manipulates live ranges, the unit of allocation, grounded
// on original_source/live_range.cc and live_unit.cc. A LiveRange is a set of
// LiveUnits, one per basic block the range occupies; union-find determines which
// original SSA names collapse into the same LiveRange.
package lr

import "chowra/src/ir"

// LiveUnit is the portion of a LiveRange occupying one basic block, grounded on
// original_source/live_unit.cc's LiveUnit struct.
type LiveUnit struct {
	Block *ir.Block

	OrigName ir.Variable // SSA name this unit was originally known by in Block.

	Uses int // Count of operand references to OrigName (or its LR) within Block.
	Defs int // Count of definitions of OrigName (or its LR) within Block.

	StartWithDef bool // True if Block's own entry is itself a def (no load needed).
	NeedLoad     bool // Set by MarkLoads: this unit is an entry point needing a load.
	NeedStore    bool // Set by MarkStores: this unit reaches a point needing a store.
	InternalStore bool // True if the only reason NeedStore is set is another unit in this LR.
}

package lr

import (
	"github.com/bits-and-blooms/bitset"

	"chowra/src/ir"
	"chowra/src/reach"
	"chowra/src/regclass"
)

// NoColor marks a LiveRange as not yet assigned a physical register.
const NoColor = -1

// ColorProvider exposes the coloring engine's per-block, per-class used-color
// bitset to package lr without creating an import cycle back to package alloc.
type ColorProvider interface {
	UsedColors(rc regclass.ID, b *ir.Block) *bitset.BitSet
}

// IncludeInSplitFunc decides whether block b, reachable from the split point,
// should join the new live range carved out by Split.
type IncludeInSplitFunc func(newlr, origlr *LiveRange, b *ir.Block) bool

// HowToSplitFunc grows newlr from startUnit according to one of the how-to-split
// strategies (successors only vs. successors and predecessors), grounded on
// Chow::Heuristics::how_to_split_strategy.
type HowToSplitFunc func(newlr, origlr *LiveRange, startUnit *LiveUnit, include IncludeInSplitFunc)

// LiveRange is the unit the allocator colors: a set of LiveUnits, one per block it
// occupies, with priority, interference and forbidden-color bookkeeping. Grounded
// on original_source/live_range.cc's LiveRange class.
type LiveRange struct {
	ID      int
	OrigID  int // ID of the original, pre-split live range this one descends from.
	RC      regclass.ID
	Type    regclass.DefType
	Color   int
	Simplified bool // Optimistic coloring: true once popped off the simplify stack.
	SimplifiedWidth int // Sum of RegWidth of neighbors already simplified away.
	NumColoredNeighbors int

	IsCandidate bool
	IsLocal     bool
	ZeroOccurs  bool

	Rematerializable bool
	RematOp          *ir.Operation // Non-nil iff Rematerializable: the expression to recompute.

	// Splits records the sibling live ranges this one was directly split
	// from or into, so a color-choice heuristic can prefer reusing a
	// sibling's color (fewer copies across the point they reunite).
	Splits []*LiveRange

	Units   []*LiveUnit
	unitMap map[*ir.Block]*LiveUnit
	bbList  *bitset.BitSet
	FearList map[*LiveRange]bool
	Forbidden *bitset.BitSet

	priority      float64
	priorityValid bool

	numBlocks int // Universe size for bbList, i.e. the owning function's block count.
}

// New returns an empty LiveRange of class rc and def type dt, sized for a function
// with numBlocks blocks and a machine register count of numMachineReg for rc.
func New(id int, rc regclass.ID, dt regclass.DefType, numBlocks, numMachineReg int) *LiveRange {
	return &LiveRange{
		ID: id, OrigID: id, RC: rc, Type: dt, Color: NoColor,
		IsCandidate: true,
		unitMap:     map[*ir.Block]*LiveUnit{},
		bbList:      bitset.New(uint(numBlocks)),
		FearList:    map[*LiveRange]bool{},
		Forbidden:   bitset.New(uint(numMachineReg)),
		numBlocks:   numBlocks,
	}
}

// ContainsBlock reports whether b is occupied by lr.
func (lr *LiveRange) ContainsBlock(b *ir.Block) bool { return lr.bbList.Test(uint(b.ID)) }

// AddLiveUnitForBlock creates and attaches a new LiveUnit for b.
func (lr *LiveRange) AddLiveUnitForBlock(b *ir.Block, origName ir.Variable, uses, defs int, startWithDef bool, cp ColorProvider) *LiveUnit {
	u := &LiveUnit{Block: b, OrigName: origName, Uses: uses, Defs: defs, StartWithDef: startWithDef}
	lr.addLiveUnit(u, cp)
	return u
}

func (lr *LiveRange) addLiveUnit(u *LiveUnit, cp ColorProvider) {
	lr.bbList.Set(uint(u.Block.ID))
	if cp != nil {
		lr.Forbidden.InPlaceUnion(cp.UsedColors(lr.RC, u.Block))
	}
	lr.Units = append(lr.Units, u)
	lr.unitMap[u.Block] = u
}

// LiveUnitForBlock returns the unit occupying b, or nil.
func (lr *LiveRange) LiveUnitForBlock(b *ir.Block) *LiveUnit { return lr.unitMap[b] }

// AddInterference records a symmetric interference edge between lr and other.
func (lr *LiveRange) AddInterference(other *LiveRange) {
	lr.FearList[other] = true
	other.FearList[lr] = true
}

// removeInterference deletes the symmetric interference edge between lr and other.
func (lr *LiveRange) removeInterference(other *LiveRange) {
	delete(lr.FearList, other)
	delete(other.FearList, lr)
}

// IsConstrained reports whether lr cannot be guaranteed a color given its current
// neighbor set, weighted by register width, against numMachineReg registers of
// lr's class. Grounded on original_source/live_range.cc's LiveRange::IsConstrained.
func (lr *LiveRange) IsConstrained(numMachineReg int) bool {
	weighted := 0
	for n := range lr.FearList {
		weighted += regclass.RegWidth(n.Type)
	}
	k := numMachineReg / regclass.RegWidth(lr.Type)
	return k <= weighted-lr.SimplifiedWidth
}

// MarkNonCandidateAndDelete removes lr from the interference graph entirely: it
// will never receive a color and never constrain anyone else.
func (lr *LiveRange) MarkNonCandidateAndDelete() {
	lr.Color = NoColor
	lr.IsCandidate = false
	for n := range lr.FearList {
		delete(n.FearList, lr)
	}
	lr.FearList = map[*LiveRange]bool{}
	lr.bbList.ClearAll()
}

// InterferesWith reports whether lr and other share a class and occupy at least one
// common block.
func (lr *LiveRange) InterferesWith(other *LiveRange) bool {
	if lr.RC != other.RC {
		return false
	}
	return lr.bbList.IntersectionCardinality(other.bbList) > 0
}

// HasColorAvailable reports whether some register of lr's class, numMachineReg wide,
// is not in lr.Forbidden.
func (lr *LiveRange) HasColorAvailable(numMachineReg int) bool {
	return lr.Forbidden.Count() < uint(numMachineReg)
}

// IsColorAvailableAt reports whether some register is free for lr specifically in
// block b, accounting for colors already taken by other ranges live in b.
func (lr *LiveRange) IsColorAvailableAt(cp ColorProvider, b *ir.Block, numMachineReg int) bool {
	combined := lr.Forbidden.Clone()
	combined.InPlaceUnion(cp.UsedColors(lr.RC, b))
	return combined.Count() < uint(numMachineReg)
}

// IsEntirelyUnColorable reports whether every live unit with a use or def has no
// color available, i.e. lr can never be colored as-is and must split or spill.
func (lr *LiveRange) IsEntirelyUnColorable(cp ColorProvider, numMachineReg int) bool {
	for _, u := range lr.Units {
		if u.Defs > 0 || u.Uses > 0 {
			if lr.IsColorAvailableAt(cp, u.Block, numMachineReg) {
				return false
			}
		}
	}
	return true
}

// ComputePriority averages pf's per-unit contribution over every live unit,
// grounded on original_source/live_range.cc's LiveRange::ComputePriority.
func (lr *LiveRange) ComputePriority(pf PriorityFunc, moveLoadsAndStores bool) float64 {
	var sum float64
	for _, u := range lr.Units {
		sum += pf(u, u.Block.Depth, lr.loadLoopDepth(u, moveLoadsAndStores))
	}
	if len(lr.Units) == 0 {
		lr.priority = 0
	} else {
		lr.priority = sum / float64(len(lr.Units))
	}
	lr.priorityValid = true
	return lr.priority
}

// Priority returns lr's priority, computing it via pf first if not yet current.
func (lr *LiveRange) Priority(pf PriorityFunc, moveLoadsAndStores bool) float64 {
	if !lr.priorityValid {
		return lr.ComputePriority(pf, moveLoadsAndStores)
	}
	return lr.priority
}

// invalidatePriority marks lr's cached priority stale; the caller must recompute
// before relying on it.
func (lr *LiveRange) invalidatePriority() { lr.priorityValid = false }

// canMoveLoad reports whether a load for u could be hoisted onto an incoming edge
// rather than inserted in u.Block itself.
func (lr *LiveRange) canMoveLoad(u *LiveUnit, moveLoadsAndStores bool) bool {
	if u.NeedLoad {
		return false
	}
	preds := 0
	for _, e := range u.Block.Preds {
		if lr.ContainsBlock(e.Pred) {
			preds++
		}
	}
	return preds > 0 && moveLoadsAndStores
}

func (lr *LiveRange) loadLoopDepth(u *LiveUnit, moveLoadsAndStores bool) int {
	depth := u.Block.Depth
	if u.Block.IsLoopHeader() && lr.canMoveLoad(u, moveLoadsAndStores) {
		depth--
	}
	return depth
}

// EntryPoint reports whether u is a block that lr enters from outside itself.
func (lr *LiveRange) EntryPoint(u *LiveUnit) bool {
	for _, e := range u.Block.Preds {
		if !lr.ContainsBlock(e.Pred) {
			return true
		}
	}
	return false
}

// MarkLoads sets NeedLoad on every entry-point unit that doesn't already start with
// a def, and records whether lr is ever actually referenced (ZeroOccurs).
func (lr *LiveRange) MarkLoads() {
	lr.ZeroOccurs = true
	for _, u := range lr.Units {
		if !u.StartWithDef && lr.EntryPoint(u) {
			u.NeedLoad = true
		}
		if u.Defs > 0 || u.Uses > 0 {
			lr.ZeroOccurs = false
		}
	}
}

// MarkStores sets NeedStore (and InternalStore) on units that reach a point
// where lr's value must survive in memory, grounded on
// original_source/live_range.cc's LiveRange_MarkStores.
func (lr *LiveRange) MarkStores(rs *reach.Sets, liveInHas func(b *ir.Block, orig ir.Variable) bool) {
	var defBlocks []*ir.Block
	for _, u := range lr.Units {
		if u.Defs > 0 {
			defBlocks = append(defBlocks, u.Block)
		}
	}
	if len(defBlocks) == 0 {
		return
	}

	reaching := bitset.New(uint(lr.numBlocks))
	for _, b := range defBlocks {
		reaching.InPlaceUnion(rs.ReachableBlocks(b))
	}
	reaching.InPlaceIntersection(lr.bbList)

	for _, u := range lr.Units {
		if !reaching.Test(uint(u.Block.ID)) {
			continue
		}
		onlyInternal := true
		u.InternalStore = false
		for _, e := range u.Block.Succs {
			succ := e.Succ
			if lr.ContainsBlock(succ) {
				if succUnit := lr.LiveUnitForBlock(succ); succUnit != nil && succUnit.NeedLoad {
					u.NeedStore = true
				}
				continue
			}
			if liveInHas(succ, u.OrigName) {
				u.NeedStore = true
				onlyInternal = false
			}
		}
		if u.NeedStore && onlyInternal {
			u.InternalStore = true
		}
	}
}

// MarkLoadsAndStores recomputes both NeedLoad and NeedStore for every unit.
func (lr *LiveRange) MarkLoadsAndStores(rs *reach.Sets, liveInHas func(b *ir.Block, orig ir.Variable) bool) {
	lr.MarkLoads()
	lr.MarkStores(rs, liveInHas)
}

// RebuildForbidden recomputes Forbidden from scratch as the union of used colors
// across every block lr occupies, needed after units are removed by a split.
func (lr *LiveRange) RebuildForbidden(cp ColorProvider) {
	lr.Forbidden.ClearAll()
	for _, u := range lr.Units {
		lr.Forbidden.InPlaceUnion(cp.UsedColors(lr.RC, u.Block))
	}
}

// chooseSplitPoint picks the live unit Split should carve the new range from:
// prefer a unit with an available color that starts with a def and is itself an
// entry point, else the first available-colored unit that starts with a def, else
// the first available unit with a use.
func (lr *LiveRange) chooseSplitPoint(cp ColorProvider, numMachineReg int) *LiveUnit {
	var first, startDef *LiveUnit
	for _, u := range lr.Units {
		if !lr.IsColorAvailableAt(cp, u.Block, numMachineReg) {
			continue
		}
		if u.Uses > 0 && first == nil {
			first = u
		}
		if u.StartWithDef {
			if startDef == nil {
				startDef = u
			}
			if lr.EntryPoint(u) {
				startDef = u
				break
			}
		}
	}
	if startDef != nil {
		return startDef
	}
	return first
}

// removeLiveUnit detaches u from lr without touching any other live range.
func (lr *LiveRange) removeLiveUnit(u *LiveUnit) {
	lr.bbList.Clear(uint(u.Block.ID))
	for i, x := range lr.Units {
		if x == u {
			lr.Units = append(lr.Units[:i], lr.Units[i+1:]...)
			break
		}
	}
	delete(lr.unitMap, u.Block)
}

// mitosis allocates the empty shell of a new live range descending from lr, sharing
// lr's class, type and OrigID, grounded on LiveRange::Mitosis.
func (lr *LiveRange) mitosis(newID int) *LiveRange {
	n := New(newID, lr.RC, lr.Type, lr.numBlocks, 0)
	n.Forbidden = bitset.New(uint(lr.Forbidden.Len()))
	n.OrigID = lr.OrigID
	n.IsLocal = lr.IsLocal
	n.Rematerializable = lr.Rematerializable
	n.RematOp = lr.RematOp
	return n
}

// transferLiveUnitTo moves u from lr to other.
func (lr *LiveRange) transferLiveUnitTo(other *LiveRange, u *LiveUnit, cp ColorProvider) {
	other.addLiveUnit(u, cp)
	lr.removeLiveUnit(u)
}

// Split carves a new live range out of lr, starting from the chosen split point and
// growing per howToSplit/includeInSplit, then updates interference and load/store
// marks for both halves. Grounded on original_source/live_range.cc's
// LiveRange::Split.
func (lr *LiveRange) Split(newID int, cp ColorProvider, numMachineReg int, howToSplit HowToSplitFunc, includeInSplit IncludeInSplitFunc, rs *reach.Sets, liveInHas func(*ir.Block, ir.Variable) bool) *LiveRange {
	newlr := lr.mitosis(newID)

	start := lr.chooseSplitPoint(cp, numMachineReg)
	if start == nil {
		return nil
	}
	lr.transferLiveUnitTo(newlr, start, cp)
	howToSplit(newlr, lr, start, includeInSplit)

	lr.Splits = append(lr.Splits, newlr)
	newlr.Splits = append(newlr.Splits, lr)

	lr.updateAfterSplit(newlr)
	lr.RebuildForbidden(cp)
	newlr.MarkLoadsAndStores(rs, liveInHas)
	lr.MarkLoadsAndStores(rs, liveInHas)
	return newlr
}

func (lr *LiveRange) updateAfterSplit(newlr *LiveRange) {
	newlr.NumColoredNeighbors = 0
	lr.NumColoredNeighbors = 0

	for fear := range cloneFearSet(lr.FearList) {
		neighborColored := fear.Color != NoColor
		if newlr.InterferesWith(fear) {
			newlr.AddInterference(fear)
			if neighborColored {
				newlr.NumColoredNeighbors++
			}
		}
		if !lr.InterferesWith(fear) {
			lr.removeInterference(fear)
		} else if neighborColored {
			lr.NumColoredNeighbors++
		}
	}

	newlr.invalidatePriority()
	lr.invalidatePriority()
}

func cloneFearSet(m map[*LiveRange]bool) map[*LiveRange]bool {
	c := make(map[*LiveRange]bool, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// TransferLiveUnitTo moves u from lr to other, for use by how-to-split strategies
// (package alloc) when growing the new live range past its seed block.
func (lr *LiveRange) TransferLiveUnitTo(other *LiveRange, u *LiveUnit, cp ColorProvider) {
	lr.transferLiveUnitTo(other, u, cp)
}

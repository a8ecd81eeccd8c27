// Package assign manages the pool of temporary machine registers that stand
// in for a spilled live range at the point of use, grounded on
// original_source/assign.cc: a small set of registers reserved per class is
// handed out round-robin and cached per original live-range id; once the
// reserved set is exhausted for a FRAME/call operation, a live, colored range
// is evicted instead, chosen by the Belady farthest-next-use heuristic.
package assign

import (
	"chowra/src/ir"
	"chowra/src/regclass"
)

// RegPurpose records why a temporary register is needed for one instruction,
// grounded on assign.cc's RegPurpose (FOR_USE/FOR_DEF).
type RegPurpose int

const (
	ForUse RegPurpose = iota
	ForDef
)

// ColorSource reports the machine register, if any, assigned to origLRID in
// block b - the assign package's view onto alloc.Coloring, kept as an
// interface so this package need not import alloc.
type ColorSource interface {
	MachineReg(rc regclass.ID, b *ir.Block, origLRID int) (reg int, ok bool)
	// OwnerLRID reports which original live-range id currently owns
	// machine register reg in block b's class rc, or ok=false if none.
	OwnerLRID(rc regclass.ID, b *ir.Block, reg int) (origLRID int, ok bool)
}

// SpillHooks abstracts package spill's load/store insertion so assign need
// not import spill; EnsureReg calls these only when a spilled value must
// round-trip through memory to occupy its temporary register.
type SpillHooks interface {
	InsertLoad(origLRID int, before *ir.Inst, tmpReg int) *ir.Inst
	InsertStoreAfter(origLRID int, after *ir.Inst, tmpReg int) *ir.Inst
	InsertStoreBefore(origLRID int, before *ir.Inst, tmpReg int) *ir.Inst
}

// AssignedReg is one machine register's current occupant bookkeeping,
// grounded on assign.cc's AssignedReg struct.
type AssignedReg struct {
	MachineReg int
	ForInst    *ir.Inst
	ForPurpose RegPurpose
	ForLRID    int // -1 when free.
	Free       bool
	Reserved   bool
}

func (a *AssignedReg) reset() {
	a.ForLRID = -1
	a.Free = true
	a.ForInst = nil
}

// evictedEntry records a register commandeered from an allocated live range,
// grounded on assign.cc's RegisterContents::evicted.
type evictedEntry struct {
	LRID int // -1 if nothing was actually evicted (register was never live here).
	Reg  *AssignedReg
}

// classRegs is one register class's temporary-register bookkeeping, grounded
// on assign.cc's RegisterContents.
type classRegs struct {
	rc         regclass.ID
	reserved   []*AssignedReg // The small temp-register pool, round-robin assigned.
	width      int
	regMap     map[int]*AssignedReg // origLRID -> the reserved reg currently holding it.
	evicted    []evictedEntry
	roundRobin int
}

// Pool is the full per-function temporary-register pool, one classRegs per
// register class, grounded on assign.cc's reg_contents vector.
type Pool struct {
	table   *regclass.Table
	classes map[regclass.ID]*classRegs
}

// NewPool allocates a Pool over table's register classes, grounded on
// assign.cc's Init.
func NewPool(table *regclass.Table) *Pool {
	p := &Pool{table: table, classes: map[regclass.ID]*classRegs{}}
	for _, rc := range table.Classes() {
		reserved := table.ReservedRegs(rc)
		regs := make([]*AssignedReg, len(reserved))
		for i, mr := range reserved {
			regs[i] = &AssignedReg{MachineReg: mr, ForLRID: -1, Free: true, Reserved: true}
		}
		p.classes[rc] = &classRegs{rc: rc, reserved: regs, regMap: map[int]*AssignedReg{}}
	}
	return p
}

func (p *Pool) classFor(rc regclass.ID) *classRegs {
	c, ok := p.classes[rc]
	if !ok {
		c = &classRegs{rc: rc, regMap: map[int]*AssignedReg{}}
		p.classes[rc] = c
	}
	return c
}

// EnsureReg returns a machine register holding origLRID's value for
// purpose at origInst in blk, allocating a live one if lr is colored, else a
// temporary register from the pool - inserting a load (ForUse) or scheduling
// a store (ForDef) through sp when the temporary did not already hold the
// value. updatedInst tracks the instruction loads/stores get inserted
// relative to, grounded on assign.cc's EnsureReg.
func (p *Pool) EnsureReg(origLRID int, rc regclass.ID, width int, blk *ir.Block, origInst *ir.Inst, updatedInst **ir.Inst, purpose RegPurpose, instUses, instDefs []int, op *ir.Operation, cs ColorSource, sp SpillHooks) int {
	if reg, ok := cs.MachineReg(rc, blk, origLRID); ok {
		return reg
	}

	c := p.classFor(rc)
	c.width = width

	if r, ok := c.regMap[origLRID]; ok {
		r.ForInst = origInst
		r.ForPurpose = purpose
		if purpose == ForUse {
			return r.MachineReg
		}
		*updatedInst = sp.InsertStoreAfter(origLRID, *updatedInst, r.MachineReg)
		return r.MachineReg
	}

	if r := p.findSuitableTmpReg(c, origLRID, instUses, instDefs); r != nil {
		return p.markRegisterUsed(c, r, origLRID, origInst, purpose, sp, *updatedInst, updatedInst)
	}

	// The reserved pool is exhausted; only a FRAME/call operation is allowed
	// to evict a live, colored range from its real register. The evicted
	// value must be saved before origInst runs, since origInst (the call or
	// FRAME marker itself) is what commandeers the register - this is
	// independent of whatever updatedInst ends up anchoring the current
	// operand's own load/store.
	r, evictedLRID := p.evictForCall(c, rc, blk, op, purpose, instUses, instDefs, cs)
	if evictedLRID >= 0 && !op.Op.IsFrame() {
		sp.InsertStoreBefore(evictedLRID, origInst, r.MachineReg)
	}
	c.evicted = append(c.evicted, evictedEntry{LRID: evictedLRID, Reg: r})
	return p.markRegisterUsed(c, r, origLRID, origInst, purpose, sp, *updatedInst, updatedInst)
}

func (p *Pool) markRegisterUsed(c *classRegs, r *AssignedReg, origLRID int, origInst *ir.Inst, purpose RegPurpose, sp SpillHooks, cur *ir.Inst, updatedInst **ir.Inst) int {
	r.Free = false
	r.ForInst = origInst
	r.ForPurpose = purpose
	r.ForLRID = origLRID
	c.regMap[origLRID] = r
	if purpose == ForUse {
		*updatedInst = sp.InsertLoad(origLRID, cur, r.MachineReg)
	} else {
		*updatedInst = sp.InsertStoreAfter(origLRID, cur, r.MachineReg)
	}
	return r.MachineReg
}

// findSuitableTmpReg returns a free reserved register, or a reserved register
// not referenced by instUses/instDefs (safe to repurpose), or nil.
func (p *Pool) findSuitableTmpReg(c *classRegs, origLRID int, instUses, instDefs []int) *AssignedReg {
	n := len(c.reserved)
	if n == 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		r := c.reserved[(c.roundRobin+i)%n]
		if r.Free {
			c.roundRobin = (c.roundRobin + i + 1) % n
			return r
		}
	}
	for i := 0; i < n; i++ {
		r := c.reserved[(c.roundRobin+i)%n]
		if !needed(r.ForLRID, instUses) && !needed(r.ForLRID, instDefs) {
			delete(c.regMap, r.ForLRID)
			r.reset()
			c.roundRobin = (c.roundRobin + i + 1) % n
			return r
		}
	}
	return nil
}

func needed(lrid int, ids []int) bool {
	for _, id := range ids {
		if id == lrid {
			return true
		}
	}
	return false
}

// evictForCall commandeers a colored live range's machine register for a
// FRAME/call operation, choosing among registers not referenced by the
// current operation's uses/defs via Belady's farthest-next-use heuristic. It
// returns the register and the original live-range id it belonged to
// (-1 if the register held nothing live), grounded on assign.cc's
// GetFreeTmpReg's eviction branch and Belady/UpdateDistances.
func (p *Pool) evictForCall(c *classRegs, rc regclass.ID, blk *ir.Block, op *ir.Operation, purpose RegPurpose, instUses, instDefs []int, cs ColorSource) (*AssignedReg, int) {
	excluded := instUses
	if purpose == ForDef {
		excluded = instDefs
	}
	nmr := p.table.NumMachineReg(rc)
	var candidates []int
	width := c.width
	if width < 1 {
		width = 1
	}
	for base := 0; base+width <= nmr; base += width {
		free := true
		for w := 0; w < width; w++ {
			if needed(base+w, excluded) {
				free = false
				break
			}
		}
		if free {
			candidates = append(candidates, base)
		}
	}
	chosen := belady(candidates, blk, rc, cs)
	if chosen < 0 && len(candidates) > 0 {
		chosen = candidates[0]
	}

	evictedLRID := -1
	if lrid, ok := cs.OwnerLRID(rc, blk, chosen); ok {
		evictedLRID = lrid
	}
	return &AssignedReg{MachineReg: chosen, ForLRID: -1, Free: true}, evictedLRID
}

// belady picks, among candidates (machine register bases), the one whose
// occupant is used farthest away (or never again) walking forward from blk
// along a chain of single-successor/single-predecessor blocks, grounded on
// assign.cc's Belady/UpdateDistances/SingleSuccessorPath.
func belady(candidates []int, blk *ir.Block, rc regclass.ID, cs ColorSource) int {
	if len(candidates) == 0 {
		return -1
	}
	distances := map[int]int{}
	for _, reg := range candidates {
		distances[reg] = -1
	}

	cur, dist := blk, 0
	for {
		cur.Each(func(i *ir.Inst) {
			for _, u := range i.Op.Uses {
				for _, reg := range candidates {
					if lrid, ok := cs.OwnerLRID(rc, blk, reg); ok && int(u) == lrid && distances[reg] == -1 {
						distances[reg] = dist
					}
				}
			}
			dist++
		})
		if !singleSuccessorPath(cur) {
			break
		}
		cur = cur.Succs[0].Succ
	}

	best, maxDist := -1, -2
	for _, reg := range candidates {
		d := distances[reg]
		if d == -1 {
			return reg
		}
		if d > maxDist {
			best, maxDist = reg, d
		}
	}
	return best
}

// singleSuccessorPath reports whether blk has exactly one successor and that
// successor has exactly one predecessor (blk itself), grounded on
// assign.cc's SingleSuccessorPath.
func singleSuccessorPath(blk *ir.Block) bool {
	if len(blk.Succs) != 1 {
		return false
	}
	return len(blk.Succs[0].Succ.Preds) == 1
}

// ResetFreeTmpRegs runs at the end of blk. When the successor path is
// ambiguous (blk does not have exactly one successor with exactly one
// predecessor) it marks every reserved register free and clears the cache;
// otherwise it frees only the registers whose occupant already has a real
// allocated register in the successor - grounded on assign.cc's
// ResetFreeTmpRegs.
func (p *Pool) ResetFreeTmpRegs(blk *ir.Block, cs ColorSource) {
	resetAll := !singleSuccessorPath(blk)
	for rc, c := range p.classes {
		if resetAll {
			for _, r := range c.reserved {
				r.reset()
			}
			c.regMap = map[int]*AssignedReg{}
			continue
		}
		succ := blk.Succs[0].Succ
		for _, r := range c.reserved {
			if r.ForLRID < 0 {
				continue
			}
			if _, ok := cs.MachineReg(rc, succ, r.ForLRID); ok {
				delete(c.regMap, r.ForLRID)
				r.reset()
			}
		}
	}
}

// UnEvict restores every register evicted in this block's run back to its
// rightful owner by recording that the owner must be reloaded, returning the
// live-range ids that need a fresh load after the evicting FRAME/call
// instruction, grounded on assign.cc's UnEvict.
func (p *Pool) UnEvict() []int {
	var toReload []int
	for _, c := range p.classes {
		for _, e := range c.evicted {
			if e.LRID >= 0 {
				toReload = append(toReload, e.LRID)
			}
		}
		c.evicted = c.evicted[:0]
	}
	return toReload
}

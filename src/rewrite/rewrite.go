// Package rewrite walks a function's instructions once allocation has
// finished and substitutes every original SSA name with the machine
// register that now represents it - a colored live range's fixed color, or
// a temporary register drawn from package assign's pool for a spilled one
// - inserting the spill loads, stores and copies package spill builds and
// scheduling loads/stores onto CFG edges through package motion when
// enabled. Grounded on original_source/chow.cc's RenameRegisters and
// assign.cc's EnsureReg/HandleCopy.
package rewrite

import (
	"sort"

	"chowra/src/alloc"
	"chowra/src/assign"
	"chowra/src/ir"
	"chowra/src/lr"
	"chowra/src/motion"
	"chowra/src/regclass"
	"chowra/src/spill"
	"chowra/src/stats"
)

// Cfg bundles the renamer's own policy switches, a subset of
// alloc.Config relevant to code placement rather than color choice.
type Cfg struct {
	MoveLoadsAndStores bool
}

// unitRef pairs a live range with the LiveUnit occupying one block.
type unitRef struct {
	lr *lr.LiveRange
	u  *lr.LiveUnit
}

// Index maps every original live-range id, in every block it reaches, to
// the live range (possibly a split descendant) and unit representing it
// there. Built from every range's Units slice rather than its bb_list,
// since LiveRange.MarkNonCandidateAndDelete clears bb_list on a spill
// decision but leaves Units (and so this index) intact - spilled ranges
// still need their Type/OrigID/Rematerializable bits to generate spill
// code. Grounded on original_source/mapping.cc's Mapping::GetLiveRange.
type Index struct {
	byBlock map[int]map[int]unitRef
}

// BuildIndex indexes every range's units, including ranges later spilled.
func BuildIndex(ranges []*lr.LiveRange) *Index {
	idx := &Index{byBlock: map[int]map[int]unitRef{}}
	for _, l := range ranges {
		for _, u := range l.Units {
			m, ok := idx.byBlock[u.Block.ID]
			if !ok {
				m = map[int]unitRef{}
				idx.byBlock[u.Block.ID] = m
			}
			m[l.OrigID] = unitRef{lr: l, u: u}
		}
	}
	return idx
}

func (idx *Index) lookup(b *ir.Block, origLRID int) (unitRef, bool) {
	m, ok := idx.byBlock[b.ID]
	if !ok {
		return unitRef{}, false
	}
	r, ok := m[origLRID]
	return r, ok
}

// spillBridge adapts package spill's *lr.LiveRange-keyed API to the
// origLRID-keyed assign.SpillHooks interface, recovering the live range
// from the instruction's own block via idx so assign need not import lr.
type spillBridge struct {
	mgr *spill.Manager
	idx *Index
}

func (s *spillBridge) rangeAt(inst *ir.Inst, origLRID int) *lr.LiveRange {
	if r, ok := s.idx.lookup(inst.Block(), origLRID); ok {
		return r.lr
	}
	return nil
}

// InsertLoad implements assign.SpillHooks.
func (s *spillBridge) InsertLoad(origLRID int, before *ir.Inst, tmpReg int) *ir.Inst {
	l := s.rangeAt(before, origLRID)
	if l == nil {
		return before
	}
	return s.mgr.InsertLoad(l, before, tmpReg, true)
}

// InsertStoreAfter implements assign.SpillHooks.
func (s *spillBridge) InsertStoreAfter(origLRID int, after *ir.Inst, tmpReg int) *ir.Inst {
	l := s.rangeAt(after, origLRID)
	if l == nil {
		return after
	}
	return s.mgr.InsertStore(l, after, tmpReg, false)
}

// InsertStoreBefore implements assign.SpillHooks.
func (s *spillBridge) InsertStoreBefore(origLRID int, before *ir.Inst, tmpReg int) *ir.Inst {
	l := s.rangeAt(before, origLRID)
	if l == nil {
		return before
	}
	return s.mgr.InsertStore(l, before, tmpReg, true)
}

// Run rewrites every block of fn in place, grounded on chow.cc's
// RenameRegisters driver loop (one pass per block, temp-register pool
// reset at block boundaries).
func Run(fn *ir.Function, table *regclass.Table, color *alloc.Coloring, idx *Index, mapping map[ir.Variable]int, mgr *spill.Manager, pool *assign.Pool, planner *motion.Planner, cfg Cfg, st *stats.Stats) {
	bridge := &spillBridge{mgr: mgr, idx: idx}
	for _, blk := range fn.Blocks {
		pool.ResetFreeTmpRegs(blk, color)
		renameBlock(blk, color, idx, mapping, mgr, pool, bridge, planner, cfg, st)
	}
}

// renameBlock handles one block's entry loads, its instructions' uses and
// defs, and its exit stores.
func renameBlock(blk *ir.Block, color *alloc.Coloring, idx *Index, mapping map[ir.Variable]int, mgr *spill.Manager, pool *assign.Pool, bridge *spillBridge, planner *motion.Planner, cfg Cfg, st *stats.Stats) {
	loadEntryPoints(blk, color, idx, mgr, planner, cfg)

	var insts []*ir.Inst
	blk.Each(func(i *ir.Inst) { insts = append(insts, i) })

	for _, inst := range insts {
		op := inst.Op
		if op.Op.IsCopy() && handleCopy(blk, inst, color, idx, mapping, mgr) {
			continue
		}

		instUses, instDefs := machineOperands(blk, op, mapping, idx, color)

		for i, v := range op.Uses {
			origLRID, ok := mapping[v]
			if !ok {
				continue
			}
			ref, ok := idx.lookup(blk, origLRID)
			if !ok {
				continue
			}
			reg := resolveReg(pool, color, bridge, ref, blk, inst, assign.ForUse, instUses, instDefs, op)
			op.Uses[i] = ir.Variable(reg)
		}
		for i, v := range op.Defs {
			origLRID, ok := mapping[v]
			if !ok {
				continue
			}
			ref, ok := idx.lookup(blk, origLRID)
			if !ok {
				continue
			}
			reg := resolveReg(pool, color, bridge, ref, blk, inst, assign.ForDef, instUses, instDefs, op)
			op.Defs[i] = ir.Variable(reg)

			if ref.u.NeedStore && !ref.u.InternalStore {
				storeExitPoint(blk, inst, ref, reg, color, mgr, planner, cfg, st)
			}
		}

		if op.Op.IsFrame() || op.Op.IsCall() {
			for _, evictedLRID := range pool.UnEvict() {
				reloadEvicted(blk, inst, evictedLRID, color, idx, mgr)
			}
		}
	}
}

// machineOperands returns the current machine-register numbers already
// resolved for every use/def of op that is colored, giving assign.Pool's
// eviction search the operands it must not commandeer. Uses/defs not yet
// resolvable (spilled, no temp assigned yet) are simply omitted.
func machineOperands(blk *ir.Block, op *ir.Operation, mapping map[ir.Variable]int, idx *Index, color *alloc.Coloring) ([]int, []int) {
	var uses, defs []int
	for _, v := range op.Uses {
		if origLRID, ok := mapping[v]; ok {
			if ref, ok := idx.lookup(blk, origLRID); ok {
				if reg, ok := color.MachineReg(ref.lr.RC, blk, origLRID); ok {
					uses = append(uses, reg)
				}
			}
		}
	}
	for _, v := range op.Defs {
		if origLRID, ok := mapping[v]; ok {
			if ref, ok := idx.lookup(blk, origLRID); ok {
				if reg, ok := color.MachineReg(ref.lr.RC, blk, origLRID); ok {
					defs = append(defs, reg)
				}
			}
		}
	}
	return uses, defs
}

// resolveReg returns the machine register standing in for ref's value at
// inst, using the colored register directly or, for a spilled range, a
// temporary register from pool.
func resolveReg(pool *assign.Pool, color *alloc.Coloring, bridge *spillBridge, ref unitRef, blk *ir.Block, inst *ir.Inst, purpose assign.RegPurpose, instUses, instDefs []int, op *ir.Operation) int {
	width := regclass.RegWidth(ref.lr.Type)
	var updated *ir.Inst = inst
	return pool.EnsureReg(ref.lr.OrigID, ref.lr.RC, width, blk, inst, &updated, purpose, instUses, instDefs, op, color, bridge)
}

// handleCopy implements assign.cc's HandleCopy: when a copy's source is a
// spilled live range, the copy becomes a direct load of the source's
// value into the copy's destination register, instead of a load into a
// temporary followed by a register move. Returns true if it consumed
// inst (i.e. the generic use/def loop must skip it).
func handleCopy(blk *ir.Block, inst *ir.Inst, color *alloc.Coloring, idx *Index, mapping map[ir.Variable]int, mgr *spill.Manager) bool {
	op := inst.Op
	if len(op.Uses) != 1 || len(op.Defs) != 1 {
		return false
	}
	srcOrig, ok := mapping[op.Uses[0]]
	if !ok {
		return false
	}
	dstOrig, ok := mapping[op.Defs[0]]
	if !ok {
		return false
	}
	srcRef, ok := idx.lookup(blk, srcOrig)
	if !ok {
		return false
	}
	if _, colored := color.MachineReg(srcRef.lr.RC, blk, srcOrig); colored {
		return false
	}
	dstRef, ok := idx.lookup(blk, dstOrig)
	if !ok {
		return false
	}
	dstReg, ok := color.MachineReg(dstRef.lr.RC, blk, dstOrig)
	if !ok {
		// Destination is itself spilled; the copy has nothing useful left
		// to do here since both halves round-trip through memory - leave
		// it for the generic path, which will load the source into a
		// temporary and store it out again under the destination's id.
		return false
	}
	mgr.ConvertToLoad(inst, srcRef.lr, dstReg)
	return true
}

// loadEntryPoints loads every colored live range whose unit enters blk
// needing a fresh value (NeedLoad), either in-block at the top of blk or,
// when motion is enabled, scheduled onto every external predecessor edge
// instead. Spilled ranges reload lazily on first use through package
// assign's pool and need no separate entry-point handling here.
func loadEntryPoints(blk *ir.Block, color *alloc.Coloring, idx *Index, mgr *spill.Manager, planner *motion.Planner, cfg Cfg) {
	m := idx.byBlock[blk.ID]
	origLRIDs := make([]int, 0, len(m))
	for origLRID := range m {
		origLRIDs = append(origLRIDs, origLRID)
	}
	sort.Ints(origLRIDs)

	for _, origLRID := range origLRIDs {
		ref := m[origLRID]
		if !ref.u.NeedLoad {
			continue
		}
		reg, colored := color.MachineReg(ref.lr.RC, blk, origLRID)
		if !colored {
			continue
		}
		if cfg.MoveLoadsAndStores {
			for _, e := range blk.Preds {
				if !ref.lr.ContainsBlock(e.Pred) {
					planner.Add(e, motion.Move{Kind: motion.Load, LR: ref.lr, MachineReg: reg, OrigBlock: blk})
				}
			}
			continue
		}
		if first := blk.First(); first != nil {
			mgr.InsertLoad(ref.lr, first, reg, true)
		} else {
			mgr.AppendLoad(ref.lr, blk, reg)
		}
	}
}

// storeExitPoint stores def's value out of reg either immediately after
// inst (no motion) or scheduled onto every external successor edge that
// still needs it (motion enabled), grounded on chow.cc's store placement
// for a unit whose NeedStore/InternalStore marks it as crossing lr's own
// block set.
func storeExitPoint(blk *ir.Block, inst *ir.Inst, ref unitRef, reg int, color *alloc.Coloring, mgr *spill.Manager, planner *motion.Planner, cfg Cfg, st *stats.Stats) {
	_, colored := color.MachineReg(ref.lr.RC, blk, ref.lr.OrigID)
	if !colored {
		// A spilled def already lands in memory the moment package assign
		// hands out its temporary register (EnsureReg's ForDef path stores
		// immediately after the defining instruction), so there is
		// nothing further to schedule here.
		return
	}
	if cfg.MoveLoadsAndStores {
		scheduled := false
		for _, e := range blk.Succs {
			if !ref.lr.ContainsBlock(e.Succ) {
				planner.Add(e, motion.Move{Kind: motion.Store, LR: ref.lr, MachineReg: reg, OrigBlock: blk})
				scheduled = true
			}
		}
		if scheduled {
			return
		}
	}
	mgr.InsertStore(ref.lr, inst, reg, false)
}

// reloadEvicted inserts a load restoring evictedLRID's colored register
// with its rightful value immediately after a FRAME/call instruction that
// commandeered it, grounded on assign.cc's UnEvict.
func reloadEvicted(blk *ir.Block, after *ir.Inst, evictedLRID int, color *alloc.Coloring, idx *Index, mgr *spill.Manager) {
	ref, ok := idx.lookup(blk, evictedLRID)
	if !ok {
		return
	}
	reg, ok := color.MachineReg(ref.lr.RC, blk, evictedLRID)
	if !ok {
		return
	}
	mgr.InsertLoad(ref.lr, after, reg, false)
}

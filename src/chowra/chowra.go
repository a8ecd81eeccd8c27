// Package chowra drives the full allocation pipeline over one function and
// fans it out, goroutine per function, over a whole module - the
// equivalent of hhramberg-go-vslc's src/main.go run(opt) function, grounded
// on original_source/chow.main.cc's per-procedure driver loop.
package chowra

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"chowra/src/alloc"
	"chowra/src/assign"
	"chowra/src/cleave"
	"chowra/src/interference"
	"chowra/src/ir"
	"chowra/src/lr"
	"chowra/src/motion"
	"chowra/src/reach"
	"chowra/src/regclass"
	"chowra/src/remat"
	"chowra/src/rewrite"
	"chowra/src/spill"
	"chowra/src/stats"
	"chowra/src/util"
)

// FatalError and its tags are package alloc's, re-exported here since
// alloc.EnsureFeasible is the one component that actually raises one and
// chowra is the natural place callers look for the pipeline's own error
// taxonomy.
type FatalError = alloc.FatalError

const (
	ErrParse      = alloc.ErrParse
	ErrInfeasible = alloc.ErrInfeasible
	ErrInvariant  = alloc.ErrInvariant
	ErrBudget     = alloc.ErrBudget
)

// Default priority-function weights; original_source/params.cc sets all
// three to 1.0 and exposes no CLI override for them (only -d, loop depth
// weight, has a flag).
const (
	loadSaveWeight  = 1.0
	storeSaveWeight = 1.0
	moveCostWeight  = 1.0
)

// RunFunction allocates registers for one function in place, returning its
// statistics. Grounded on original_source/chow.cc's Chow::Run plus the
// cleave/rewrite/motion stages that surround it.
func RunFunction(fn *ir.Function, opt util.Options, log logrus.FieldLogger) (*stats.Stats, error) {
	st := stats.New()
	now := time.Now()
	st.Program.Start(fn.Name, now)
	defer func() { st.Program.Stop(time.Now()) }()

	numRegisters, err := alloc.EnsureFeasible(fn, opt.NumRegisters, opt.ForceFeasible)
	if err != nil {
		return st, err
	}
	table := regclass.NewTable(numRegisters, opt.PartitionClasses, opt.ReservedRegs)

	if opt.BBMaxInsts > 0 {
		st.Section.Start("cleave", time.Now())
		cleave.Blocks(fn, cleave.ByInstCount(opt.BBMaxInsts))
		st.Section.Stop(time.Now())
	}

	color := alloc.NewColoring(table, len(fn.Blocks))

	st.Section.Start("interference", time.Now())
	ranges, mapping := interference.Build(fn, table, color)
	st.Section.Stop(time.Now())
	if opt.DumpGraph {
		alloc.DumpInterferenceGraph(os.Stderr, ranges)
	}
	if opt.Verify {
		if err := lr.CheckInvariants(ranges, table, color); err != nil {
			return st, &FatalError{Tag: ErrInvariant, Detail: err.Error()}
		}
	}

	if opt.Rematerialize {
		st.Section.Start("remat", time.Now())
		markRematerializable(fn, ranges, mapping)
		st.Section.Stop(time.Now())
	}

	rs := reach.Compute(fn)

	cfg := alloc.Config{
		Optimistic:               opt.Optimistic,
		AllocateLocals:           opt.AllocateLocals,
		AllocateAllUnconstrained: opt.AllocateAll,
		SpillInsteadOfSplit:      false,
		SplitLimit:               opt.SplitLimit,
		MoveLoadsAndStores:       opt.MoveLoadsAndStores,
	}
	pol := alloc.Policy{
		Priority:       alloc.ChoosePriority(opt.PriorityFunction, loadSaveWeight, storeSaveWeight, moveCostWeight, opt.LoopDepthWeight),
		ColorChoice:    alloc.ChooseColorChoice(opt.ColorChoice),
		WhenToSplit:    alloc.ChooseWhenToSplit(opt.WhenToSplit, 1.0),
		IncludeInSplit: alloc.ChooseIncludeInSplit(opt.IncludeInSplit, color, 0),
		HowToSplit:     alloc.HowToSplit(opt.HowToSplit, color),
	}

	st.Section.Start("allocate", time.Now())
	final := alloc.New(fn, ranges, table, color, rs, cfg, pol, st).Run()
	st.Section.Stop(time.Now())
	if opt.Verify {
		if err := lr.CheckInvariants(final, table, color); err != nil {
			return st, &FatalError{Tag: ErrInvariant, Detail: err.Error()}
		}
	}

	mgr := spill.New(fn.Frame, opt.Rematerialize, table.FramePointerReg())
	pool := assign.NewPool(table)
	planner := motion.NewPlanner()
	idx := rewrite.BuildIndex(final)

	st.Section.Start("rewrite", time.Now())
	rewrite.Run(fn, table, color, idx, mapping, mgr, pool, planner, rewrite.Cfg{MoveLoadsAndStores: opt.MoveLoadsAndStores}, st)
	st.Section.Stop(time.Now())

	if opt.MoveLoadsAndStores {
		st.Section.Start("motion", time.Now())
		planner.Apply(fn, mgr, opt.EnhancedCodeMotion, st)
		st.Section.Stop(time.Now())
	}

	if opt.TrimUselessBlocks {
		cleave.TrimUseless(fn)
	}

	if fn.Frame != nil {
		st.Chow.ClrColored = countColored(final)
		rewriteFrameOp(fn, table)
	}

	if log != nil {
		log.WithFields(logrus.Fields{"function": fn.Name}).Debug("allocation complete")
	}
	return st, nil
}

// rewriteFrameOp points fn's frame operand at the table's designated frame
// pointer register now that allocation is done - fn.Frame.Size itself is
// already current, since every writer reads it fresh at emit time, but
// PointerName still holds whatever virtual name the source parsed, and
// nothing upstream of here had reason to touch it. Grounded on
// original_source/spill.cc's Frame_SetRegFP/Frame_SetStackSize, called once
// at the tail of chow.cc's Chow::Run.
func rewriteFrameOp(fn *ir.Function, table *regclass.Table) {
	fn.Frame.PointerName = ir.Variable(table.FramePointerReg())
}

func countColored(ranges []*lr.LiveRange) int {
	n := 0
	for _, l := range ranges {
		if l.IsCandidate && l.Color != lr.NoColor {
			n++
		}
	}
	return n
}

// markRematerializable marks every live range whose original representative
// name (the lowest-numbered SSA name mapping maps to it) carries a CONST
// lattice tag as rematerializable, skipping any range containing a phi that
// disagreed with an operand (remat.FindPhiDisagreements) since such a range
// must be split at the phi rather than trusted as one constant expression.
// Grounded on original_source/chow.cc's call into Remat before live-range
// construction's AssignColor loop.
func markRematerializable(fn *ir.Function, ranges []*lr.LiveRange, mapping map[ir.Variable]int) {
	tags := remat.ComputeTags(fn)
	disagreeing := map[int]bool{}
	for _, d := range remat.FindPhiDisagreements(fn, tags) {
		disagreeing[mapping[d.Parent]] = true
	}
	names := map[int]ir.Variable{}
	for v, id := range mapping {
		if cur, ok := names[id]; !ok || v < cur {
			names[id] = v
		}
	}
	for _, l := range ranges {
		name, ok := names[l.OrigID]
		if !ok || disagreeing[l.OrigID] {
			continue
		}
		if elem := tags[name]; elem.Val == remat.Const {
			l.Rematerializable = true
			l.RematOp = elem.Op
		}
	}
}

// RunModule allocates every function of m, fanning out across
// opt.Threads goroutines and collecting errors via util.Perror, grounded
// on hhramberg-go-vslc's calcLiveness/AllocateRegisters parallel-fan-out
// pattern (src/ir/lir/live.go, src/backend/lir/regalloc.go).
func RunModule(m *ir.Module, opt util.Options, log logrus.FieldLogger) (*stats.Stats, error) {
	pe := util.NewPerror(len(m.Functions))
	defer pe.Stop()

	sem := make(chan struct{}, opt.Threads)
	done := make(chan *stats.Stats, len(m.Functions))

	for _, fn := range m.Functions {
		fn := fn
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			st, err := RunFunction(fn, opt, log)
			if err != nil {
				pe.Append(fmt.Errorf("function %s: %w", fn.Name, err))
				done <- nil
				return
			}
			w := util.NewWriter()
			w.WriteString(fn.WriteString())
			w.Close()
			done <- st
		}()
	}

	total := stats.New()
	for range m.Functions {
		if st := <-done; st != nil {
			mergeStats(total, st)
		}
	}

	if pe.Len() > 0 {
		var first error
		for e := range pe.Errors() {
			if first == nil {
				first = e
			}
		}
		return total, first
	}
	return total, nil
}

func mergeStats(total, st *stats.Stats) {
	total.Chow.ClrInitial += st.Chow.ClrInitial
	total.Chow.ClrRemat += st.Chow.ClrRemat
	total.Chow.ClrFinal += st.Chow.ClrFinal
	total.Chow.ClrColored += st.Chow.ClrColored
	total.Chow.CSplits += st.Chow.CSplits
	total.Chow.CSpills += st.Chow.CSpills
	total.Chow.CSpilledOptimist += st.Chow.CSpilledOptimist
	total.Chow.CZeroOccurrence += st.Chow.CZeroOccurrence
	total.Chow.CChowStores += st.Chow.CChowStores
	total.Chow.CChowLoads += st.Chow.CChowLoads
	total.Chow.CInsertedCopies += st.Chow.CInsertedCopies
	total.Chow.CThwartedCopies += st.Chow.CThwartedCopies
}

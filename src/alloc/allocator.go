package alloc

import (
	"sort"

	"chowra/src/ir"
	"chowra/src/lr"
	"chowra/src/reach"
	"chowra/src/regclass"
	"chowra/src/stats"
	"chowra/src/util"
)

// Config bundles the allocation policy switches, grounded on
// original_source/params.h's Params::Algorithm flags (the -o/-g/-a/-u/-m CLI
// options).
type Config struct {
	Optimistic               bool
	AllocateLocals           bool
	AllocateAllUnconstrained bool
	SpillInsteadOfSplit      bool
	SplitLimit               int
	MoveLoadsAndStores       bool
}

// Policy bundles the strategy functions chosen via the -c/-i/-w/-s/-x CLI
// selectors (see heuristics.go/splitter.go).
type Policy struct {
	Priority       lr.PriorityFunc
	ColorChoice    ColorChoiceFunc
	WhenToSplit    WhenToSplitFunc
	IncludeInSplit lr.IncludeInSplitFunc
	HowToSplit     lr.HowToSplitFunc
}

// Allocator drives the priority-based graph-coloring allocation over one
// function's live ranges, grounded on original_source/chow.cc's
// AllocateRegisters/SeparateConstrainedLiveRanges/ColorUnconstrained/
// SimplifyGraph/ColorFromStack.
type Allocator struct {
	fn     *ir.Function
	table  *regclass.Table
	color  *Coloring
	rs     *reach.Sets
	cfg    Config
	pol    Policy
	st     *stats.Stats
	ranges []*lr.LiveRange

	liveInHas func(*ir.Block, ir.Variable) bool
}

// New returns an Allocator ready to run over ranges, the live ranges built by
// package interference for fn.
func New(fn *ir.Function, ranges []*lr.LiveRange, table *regclass.Table, color *Coloring, rs *reach.Sets, cfg Config, pol Policy, st *stats.Stats) *Allocator {
	return &Allocator{
		fn: fn, table: table, color: color, rs: rs, cfg: cfg, pol: pol, st: st,
		ranges:     ranges,
		liveInHas: func(b *ir.Block, v ir.Variable) bool { return b.LiveIn != nil && b.LiveIn.Test(uint(v)) },
	}
}

// Run executes the full allocation over a.ranges, returning every live range,
// including those spilled and any created by splitting. Grounded on
// original_source/chow.cc's Chow::Run/AllocateRegisters.
func (a *Allocator) Run() []*lr.LiveRange {
	a.st.Chow.ClrInitial = len(a.ranges)

	constr := map[*lr.LiveRange]bool{}
	unconstr := map[*lr.LiveRange]bool{}
	simplifyStack := &util.Stack{}

	if a.cfg.Optimistic {
		a.simplifyGraph(constr, simplifyStack)
	} else {
		for _, l := range a.ranges {
			if !l.IsCandidate {
				continue
			}
			if a.cfg.AllocateLocals || !l.IsLocal {
				a.addToCorrectList(l, constr, unconstr)
			} else {
				l.MarkNonCandidateAndDelete()
			}
		}
	}

	for len(constr) > 0 {
		top := a.computePriorityAndChooseTop(constr, unconstr)
		if top == nil {
			break
		}
		a.color.AssignColor(top, a.pol.ColorChoice)
		a.splitNeighbors(top, constr, unconstr, simplifyStack)
	}

	if a.cfg.Optimistic {
		a.colorFromStack(simplifyStack)
	} else {
		a.colorUnconstrained(unconstr)
	}

	a.st.Chow.ClrFinal = len(a.ranges)
	return a.ranges
}

func (a *Allocator) numMachineReg(l *lr.LiveRange) int { return a.table.NumMachineReg(l.RC) }

// sortedLRs returns the keys of a live-range set in ascending ID order. Map
// iteration order is randomized per process, and every tie-break among
// live ranges (priority ties, forbidden-count ties) must be reproducible
// given the same input program.
func sortedLRs(s map[*lr.LiveRange]bool) []*lr.LiveRange {
	out := make([]*lr.LiveRange, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (a *Allocator) addToCorrectList(l *lr.LiveRange, constr, unconstr map[*lr.LiveRange]bool) {
	if l.IsConstrained(a.numMachineReg(l)) {
		delete(unconstr, l)
		constr[l] = true
	} else {
		delete(constr, l)
		unconstr[l] = true
	}
}

// computePriorityAndChooseTop mirrors chow.cc's ComputePriorityAndChooseTop:
// it lazily computes priority for every constrained range still pending,
// deletes any that turn out worthless or uncolorable, then removes and
// returns whichever remains has the highest priority.
func (a *Allocator) computePriorityAndChooseTop(constr, unconstr map[*lr.LiveRange]bool) *lr.LiveRange {
	var deletes []*lr.LiveRange
	for _, l := range sortedLRs(constr) {
		p := l.Priority(a.pol.Priority, a.cfg.MoveLoadsAndStores)
		if p <= 0 || l.IsEntirelyUnColorable(a.color, a.numMachineReg(l)) {
			deletes = append(deletes, l)
		}
	}
	for _, l := range deletes {
		l.MarkNonCandidateAndDelete()
		a.st.Chow.CSpills++
		delete(constr, l)
		delete(unconstr, l)
	}

	var top *lr.LiveRange
	topPrio := -3.4e38
	for _, l := range sortedLRs(constr) {
		if p := l.Priority(a.pol.Priority, a.cfg.MoveLoadsAndStores); p > topPrio {
			topPrio, top = p, l
		}
	}
	if top != nil {
		delete(constr, top)
	}
	return top
}

// splitNeighbors walks top's interference set, splitting or spilling every
// neighbor the policy's WhenToSplit flags as no-longer-colorable, grounded on
// original_source/chow.cc's SplitNeighbors.
func (a *Allocator) splitNeighbors(top *lr.LiveRange, constr, unconstr map[*lr.LiveRange]bool, simplifyStack *util.Stack) {
	worklist := sortedLRs(top.FearList)

	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if !n.IsCandidate {
			continue
		}
		if !a.pol.WhenToSplit(a.color, n) {
			continue
		}

		if (a.cfg.SplitLimit > 0 && a.st.Chow.CSplits >= a.cfg.SplitLimit) ||
			a.cfg.SpillInsteadOfSplit ||
			n.IsEntirelyUnColorable(a.color, a.numMachineReg(n)) {
			n.MarkNonCandidateAndDelete()
			a.st.Chow.CSpills++
			delete(constr, n)
			delete(unconstr, n)
			continue
		}

		newID := len(a.ranges)
		newlr := n.Split(newID, a.color, a.numMachineReg(n), a.pol.HowToSplit, a.pol.IncludeInSplit, a.rs, a.liveInHas)
		a.ranges = append(a.ranges, newlr)
		a.st.Chow.CSplits++

		if n.ZeroOccurs {
			n.MarkNonCandidateAndDelete()
			a.st.Chow.CZeroOccurrence++
			delete(constr, n)
			delete(unconstr, n)
			if a.cfg.Optimistic && !newlr.IsConstrained(a.numMachineReg(newlr)) {
				a.pullNodeFromGraph(newlr, constr, simplifyStack)
			} else {
				a.addToCorrectList(newlr, constr, unconstr)
			}
			continue
		}

		a.updateConstrainedLists(newlr, n, constr, unconstr, simplifyStack)
		if n.InterferesWith(top) {
			if !a.cfg.Optimistic || !n.Simplified {
				worklist = append(worklist, n)
			}
		}
	}
}

func (a *Allocator) updateConstrainedLists(newlr, origlr *lr.LiveRange, constr, unconstr map[*lr.LiveRange]bool, simplifyStack *util.Stack) {
	if a.cfg.Optimistic {
		if !origlr.IsConstrained(a.numMachineReg(origlr)) {
			delete(constr, origlr)
			a.pullNodeFromGraph(origlr, constr, simplifyStack)
		}
		if newlr.IsConstrained(a.numMachineReg(newlr)) {
			constr[newlr] = true
		} else {
			a.pullNodeFromGraph(newlr, constr, simplifyStack)
		}
		return
	}

	for _, n := range sortedLRs(newlr.FearList) {
		if !origlr.FearList[n] || !n.IsCandidate {
			continue
		}
		if n.IsConstrained(a.numMachineReg(n)) {
			delete(unconstr, n)
			constr[n] = true
		}
	}
	a.addToCorrectList(newlr, constr, unconstr)
	if !origlr.IsConstrained(a.numMachineReg(origlr)) {
		delete(constr, origlr)
		unconstr[origlr] = true
	}
}

func (a *Allocator) colorUnconstrained(unconstr map[*lr.LiveRange]bool) {
	for _, l := range sortedLRs(unconstr) {
		if !l.IsCandidate {
			continue
		}
		if a.cfg.AllocateAllUnconstrained || l.Priority(a.pol.Priority, a.cfg.MoveLoadsAndStores) > 0 {
			a.color.AssignColor(l, a.pol.ColorChoice)
		} else {
			l.MarkNonCandidateAndDelete()
			a.st.Chow.CSpills++
		}
	}
}

// simplifyGraph implements optimistic coloring's first pass: repeatedly pull
// every currently-unconstrained live range off the graph onto a stack, which
// may unconstrain further neighbors in turn, grounded on chow.cc's
// SimplifyGraph/PullNodesFromGraph.
func (a *Allocator) simplifyGraph(constr map[*lr.LiveRange]bool, stack *util.Stack) {
	var worklist []*lr.LiveRange
	for _, l := range a.ranges {
		if !l.IsCandidate {
			continue
		}
		if !a.cfg.AllocateLocals && l.IsLocal {
			l.MarkNonCandidateAndDelete()
			continue
		}
		if !l.IsConstrained(a.numMachineReg(l)) {
			worklist = append(worklist, l)
		}
	}
	pulled := map[*lr.LiveRange]bool{}
	for _, l := range worklist {
		pulled[l] = true
	}
	a.pullNodesFromGraph(worklist, constr, pulled, stack)

	for _, l := range a.ranges {
		if l.IsCandidate && l.IsConstrained(a.numMachineReg(l)) {
			constr[l] = true
		}
	}
}

func (a *Allocator) pullNodeFromGraph(l *lr.LiveRange, constr map[*lr.LiveRange]bool, stack *util.Stack) {
	a.pullNodesFromGraph([]*lr.LiveRange{l}, constr, map[*lr.LiveRange]bool{l: true}, stack)
}

func (a *Allocator) pullNodesFromGraph(worklist []*lr.LiveRange, constr map[*lr.LiveRange]bool, pulled map[*lr.LiveRange]bool, stack *util.Stack) {
	for len(worklist) > 0 {
		l := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		stack.Push(l)
		l.Simplified = true

		for _, n := range sortedLRs(l.FearList) {
			n.SimplifiedWidth += regclass.RegWidth(l.Type)
			if n.IsCandidate && !n.IsConstrained(a.numMachineReg(n)) && !pulled[n] {
				pulled[n] = true
				delete(constr, n)
				worklist = append(worklist, n)
			}
		}
	}
}

// colorFromStack implements optimistic coloring's second pass: pop the
// simplify stack and color each live range, spilling it when no color is
// actually free, or when its priority is <= 0 and AllocateAllUnconstrained is
// off, grounded on chow.cc's ColorFromStack.
func (a *Allocator) colorFromStack(stack *util.Stack) {
	for e := stack.Pop(); e != nil; e = stack.Pop() {
		l := e.(*lr.LiveRange)
		if !l.IsCandidate {
			continue
		}
		if l.HasColorAvailable(a.numMachineReg(l)) {
			if a.cfg.AllocateAllUnconstrained || l.Priority(a.pol.Priority, a.cfg.MoveLoadsAndStores) > 0 {
				a.color.AssignColor(l, a.pol.ColorChoice)
			} else {
				l.MarkNonCandidateAndDelete()
				a.st.Chow.CSpills++
			}
		} else {
			l.MarkNonCandidateAndDelete()
			a.st.Chow.CSpills++
			a.st.Chow.CSpilledOptimist++
		}
	}
}

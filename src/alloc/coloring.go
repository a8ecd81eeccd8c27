// Package alloc implements Chow-Hennessy priority-based graph coloring register
// allocation: classic mode (repeatedly color or split the highest-priority
// candidate) and optimistic mode (simplify the graph onto a stack, then pop and
// color, spilling a popped range when it has no color left). Grounded on original_source/chow.cc's AllocateRegisters driver and
// color.cc's per-block used-color bookkeeping.
package alloc

import (
	"github.com/bits-and-blooms/bitset"

	"chowra/src/ir"
	"chowra/src/lr"
	"chowra/src/regclass"
)

// Coloring tracks, per register class and block, which colors are already in use,
// and the reverse mapping from (block, class, color) back to the live range that
// holds it - needed by the assigner to know what to evict for a call or FRAME.
type Coloring struct {
	table *regclass.Table
	used  map[regclass.ID][]*bitset.BitSet // Indexed by Block.ID.
	owner map[regclass.ID][]map[int]*lr.LiveRange

	// byOrig indexes every colored live range by the original id it
	// descends from, letting the assigner ask "what machine register
	// holds origLRID's value in block b" without walking the whole
	// live-range set - needed because splitting produces several
	// LiveRanges per original id, each colored independently.
	byOrig map[int][]*lr.LiveRange
}

// NewColoring allocates a Coloring for a function with numBlocks blocks.
func NewColoring(table *regclass.Table, numBlocks int) *Coloring {
	c := &Coloring{table: table, used: map[regclass.ID][]*bitset.BitSet{}, owner: map[regclass.ID][]map[int]*lr.LiveRange{}, byOrig: map[int][]*lr.LiveRange{}}
	for _, rc := range table.Classes() {
		bs := make([]*bitset.BitSet, numBlocks)
		ow := make([]map[int]*lr.LiveRange, numBlocks)
		for i := range bs {
			bs[i] = bitset.New(uint(table.NumMachineReg(rc)))
			ow[i] = map[int]*lr.LiveRange{}
		}
		c.used[rc] = bs
		c.owner[rc] = ow
	}
	return c
}

// UsedColors implements lr.ColorProvider.
func (c *Coloring) UsedColors(rc regclass.ID, b *ir.Block) *bitset.BitSet {
	return c.used[rc][b.ID]
}

// SetColor records that l now holds color in every block it occupies.
func (c *Coloring) SetColor(l *lr.LiveRange, color int) {
	width := regclass.RegWidth(l.Type)
	for _, u := range l.Units {
		bs := c.used[l.RC][u.Block.ID]
		for i := 0; i < width; i++ {
			bs.Set(uint(color + i))
		}
		c.owner[l.RC][u.Block.ID][color] = l
	}
}

// OwnerAt returns the live range holding color in block b's class rc, or nil.
func (c *Coloring) OwnerAt(rc regclass.ID, b *ir.Block, color int) *lr.LiveRange {
	return c.owner[rc][b.ID][color]
}

// NumColorsAvailable returns how many registers of l's class remain unforbidden to l.
func (c *Coloring) NumColorsAvailable(l *lr.LiveRange) int {
	nmr := c.table.NumMachineReg(l.RC)
	return nmr - int(l.Forbidden.Count())
}

// Choices returns every unforbidden color for l, in ascending order.
func (c *Coloring) Choices(l *lr.LiveRange) []int {
	nmr := c.table.NumMachineReg(l.RC)
	var choices []int
	for color := 0; color < nmr; color++ {
		if !l.Forbidden.Test(uint(color)) {
			choices = append(choices, color)
		}
	}
	return choices
}

// AssignColor picks a color for l via choose and records it everywhere l interferes
// and everywhere l is live, grounded on original_source/live_range.cc's
// LiveRange::AssignColor (the load/store marking half of that function lives in
// package lr, as LiveRange.MarkLoads/MarkStores).
func (c *Coloring) AssignColor(l *lr.LiveRange, choose ColorChoiceFunc) int {
	choices := c.Choices(l)
	color := choose(l, choices)
	l.Color = color
	width := regclass.RegWidth(l.Type)
	for n := range l.FearList {
		for i := 0; i < width; i++ {
			n.Forbidden.Set(uint(color + i))
		}
		n.NumColoredNeighbors++
	}
	c.SetColor(l, color)
	c.byOrig[l.OrigID] = append(c.byOrig[l.OrigID], l)
	return color
}

// MachineReg implements assign.ColorSource: it reports the color held by
// whichever descendant of origLRID occupies block b, if any has been
// colored yet.
func (c *Coloring) MachineReg(rc regclass.ID, b *ir.Block, origLRID int) (int, bool) {
	for _, l := range c.byOrig[origLRID] {
		if l.RC == rc && l.Color != lr.NoColor && l.ContainsBlock(b) {
			return l.Color, true
		}
	}
	return 0, false
}

// OwnerLRID implements assign.ColorSource: it reports the original
// live-range id of whichever live range holds reg in block b's class rc.
func (c *Coloring) OwnerLRID(rc regclass.ID, b *ir.Block, reg int) (int, bool) {
	l := c.OwnerAt(rc, b, reg)
	if l == nil {
		return 0, false
	}
	return l.OrigID, true
}

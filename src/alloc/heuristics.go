package alloc

import (
	"math"

	"chowra/src/ir"
	"chowra/src/lr"
)

// ColorChoiceFunc picks which of choices (already-unforbidden colors for lr) to
// assign. Grounded on original_source/heuristics.cc's ColorChoiceStrategy family.
type ColorChoiceFunc func(l *lr.LiveRange, choices []int) int

// WhenToSplitFunc reports whether lr should be split rather than colored directly,
// grounded on heuristics.cc's WhenToSplitStrategy family.
type WhenToSplitFunc func(c *Coloring, l *lr.LiveRange) bool

// Strategy ids, matching the CLI's -c/-i/-w/-s/-x numeric selectors.
const (
	ColorChoiceFirst = iota
	ColorChoiceMostConstrainedNeighbor
	ColorChoiceMostForbidden
	ColorChoiceFromSplitHistory
)

const (
	IncludeWhenNotFull = iota
	IncludeWhenEnoughColors
	IncludeWhenNotTooManyNeighbors
)

const (
	WhenNoColorAvailable = iota
	WhenNumNeighborsTooGreat
)

const (
	HowToSplitChow = iota
	HowToSplitUpAndDown
)

const (
	PriorityClassic = iota
	PriorityNoNormal
	PrioritySquareNormal
	PriorityGNU
	PriorityGNUSquareNormal
)

// ChooseColorChoice resolves the -c CLI selector to a ColorChoiceFunc.
func ChooseColorChoice(id int) ColorChoiceFunc {
	switch id {
	case ColorChoiceMostConstrainedNeighbor:
		return chooseFromMostConstrained
	case ColorChoiceMostForbidden:
		return chooseMostForbidden
	case ColorChoiceFromSplitHistory:
		return chooseFromSplit
	default:
		return chooseFirst
	}
}

func chooseFirst(l *lr.LiveRange, choices []int) int {
	return choices[0]
}

// chooseFromSplit prefers a color already held by one of l's sibling splits,
// grounded on original_source/heuristics.h's ChooseColorFromSplit: reusing a
// sibling's color avoids a copy at the point their live ranges reunite.
func chooseFromSplit(l *lr.LiveRange, choices []int) int {
	for _, sib := range l.Splits {
		if sib.Color == lr.NoColor {
			continue
		}
		for _, c := range choices {
			if c == sib.Color {
				return c
			}
		}
	}
	return choices[0]
}

// chooseFromMostConstrained prefers the color already forbidden to the neighbor
// with the largest forbidden set, squeezing that neighbor no further.
func chooseFromMostConstrained(l *lr.LiveRange, choices []int) int {
	var maxLR *lr.LiveRange
	maxForbidden := -1
	for _, n := range sortedLRs(l.FearList) {
		hasChoice := false
		for _, c := range choices {
			if n.Forbidden.Test(uint(c)) {
				hasChoice = true
				break
			}
		}
		if !hasChoice {
			continue
		}
		if cnt := int(n.Forbidden.Count()); cnt > maxForbidden {
			maxForbidden = cnt
			maxLR = n
		}
	}
	if maxLR == nil {
		return choices[0]
	}
	for _, c := range choices {
		if maxLR.Forbidden.Test(uint(c)) {
			return c
		}
	}
	return choices[0]
}

// chooseMostForbidden picks whichever candidate color is forbidden to the largest
// number of neighbors.
func chooseMostForbidden(l *lr.LiveRange, choices []int) int {
	neighbors := sortedLRs(l.FearList)
	counts := map[int]int{}
	for _, c := range choices {
		for _, n := range neighbors {
			if n.Forbidden.Test(uint(c)) {
				counts[c]++
			}
		}
	}
	best, bestCount := choices[0], -1
	for _, c := range choices {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

// ChooseWhenToSplit resolves the -w CLI selector.
func ChooseWhenToSplit(id int, maxRatio float64) WhenToSplitFunc {
	switch id {
	case WhenNumNeighborsTooGreat:
		return func(c *Coloring, l *lr.LiveRange) bool {
			uncolored := float64(len(l.FearList) - l.NumColoredNeighbors)
			avail := float64(c.NumColorsAvailable(l))
			if avail == 0 {
				return true
			}
			return uncolored/avail > maxRatio
		}
	default:
		return func(c *Coloring, l *lr.LiveRange) bool {
			return !l.HasColorAvailable(c.table.NumMachineReg(l.RC))
		}
	}
}

// ChooseIncludeInSplit resolves the -i CLI selector to an lr.IncludeInSplitFunc
// bound to a live Coloring for the colors-left computation, grounded on
// heuristics.cc's IncludeInSplitStrategy family (IncludeWhenNotFull,
// IncludeWhenEnoughColors, IncludeWhenNotTooManyNeighbors).
func ChooseIncludeInSplit(id int, c *Coloring, fixedMinColors int) lr.IncludeInSplitFunc {
	colorsLeftAfterBlock := func(newlr *lr.LiveRange, b *ir.Block) int {
		combined := newlr.Forbidden.Clone()
		combined.InPlaceUnion(c.UsedColors(newlr.RC, b))
		return c.table.NumMachineReg(newlr.RC) - int(combined.Count())
	}

	switch id {
	case IncludeWhenEnoughColors:
		return func(newlr, origlr *lr.LiveRange, b *ir.Block) bool {
			minColors := fixedMinColors
			if minColors <= 0 {
				minColors = c.NumColorsAvailable(newlr) / 2
				if minColors < 1 {
					minColors = 1
				}
			}
			return colorsLeftAfterBlock(newlr, b) >= minColors
		}
	case IncludeWhenNotTooManyNeighbors:
		// Applies the same test as IncludeWhenNotFull: b is included while at
		// least one color stays free. No neighbor-to-color ratio is computed.
		return func(newlr, origlr *lr.LiveRange, b *ir.Block) bool {
			return colorsLeftAfterBlock(newlr, b) > 0
		}
	default:
		return func(newlr, origlr *lr.LiveRange, b *ir.Block) bool {
			return colorsLeftAfterBlock(newlr, b) > 0
		}
	}
}

// ChoosePriority resolves the -x CLI selector to an lr.PriorityFunc.
func ChoosePriority(id int, loadSaveWeight, storeSaveWeight, moveCostWeight, loopDepthWeight float64) lr.PriorityFunc {
	base := func(u *lr.LiveUnit, depth, loadLoopDepth int) float64 {
		needStore := 0.0
		if u.NeedStore && !u.InternalStore {
			needStore = 1.0
		}
		p := loadSaveWeight*float64(u.Uses) + storeSaveWeight*float64(u.Defs) - moveCostWeight*needStore
		p *= math.Pow(loopDepthWeight, float64(depth))
		needLoad := 0.0
		if u.NeedLoad {
			needLoad = 1.0
		}
		p -= moveCostWeight * needLoad * math.Pow(loopDepthWeight, float64(loadLoopDepth))
		return p
	}
	switch id {
	case PriorityNoNormal:
		return func(u *lr.LiveUnit, depth, loadLoopDepth int) float64 {
			return base(u, 0, 0)
		}
	case PrioritySquareNormal:
		return func(u *lr.LiveUnit, depth, loadLoopDepth int) float64 {
			v := base(u, depth, loadLoopDepth)
			return v * v * sign(v)
		}
	case PriorityGNU, PriorityGNUSquareNormal:
		return func(u *lr.LiveUnit, depth, loadLoopDepth int) float64 {
			v := float64(u.Uses+u.Defs) * math.Pow(loopDepthWeight, float64(depth))
			if id == PriorityGNUSquareNormal {
				return v * v * sign(v)
			}
			return v
		}
	default:
		return base
	}
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

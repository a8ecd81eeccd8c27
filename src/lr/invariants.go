package lr

import (
	"fmt"

	"chowra/src/regclass"
)

// CheckInvariants verifies the universal properties that must hold after
// each phase: interference symmetry, coloring legality, forbidden
// consistency, unit uniqueness, remat soundness and per-block capacity.
// It is meant to run behind a debug/verify flag, not on every
// allocation, since walking every live range's neighbor set is not free.
// Grounded on original_source/live_range.cc's assert()-laden invariant
// checks scattered through AssignColor/Split/BuildInterferences, collected
// here into one pass instead of aborting the process on the first one hit.
func CheckInvariants(ranges []*LiveRange, table *regclass.Table, cp ColorProvider) error {
	for _, l := range ranges {
		for n := range l.FearList {
			if !n.FearList[l] {
				return fmt.Errorf("lr: interference asymmetry between lr %d and lr %d", l.ID, n.ID)
			}
		}

		seen := map[int]bool{}
		for _, u := range l.Units {
			if seen[u.Block.ID] {
				return fmt.Errorf("lr: duplicate live unit for lr %d in block %d", l.ID, u.Block.ID)
			}
			seen[u.Block.ID] = true
		}

		if l.Rematerializable {
			if l.RematOp == nil {
				return fmt.Errorf("lr: lr %d marked rematerializable with no remat op", l.ID)
			}
			if len(l.RematOp.Uses) > 1 {
				return fmt.Errorf("lr: lr %d's remat op has more than one register operand", l.ID)
			}
		}

		if l.Color == NoColor {
			continue
		}
		width := regclass.RegWidth(l.Type)
		for n := range l.FearList {
			if n.Color == NoColor {
				continue
			}
			nWidth := regclass.RegWidth(n.Type)
			if rangesOverlap(l.Color, width, n.Color, nWidth) {
				return fmt.Errorf("lr: colors of lr %d and lr %d overlap (%d..%d vs %d..%d)", l.ID, n.ID, l.Color, l.Color+width, n.Color, n.Color+nWidth)
			}
			for i := 0; i < width; i++ {
				if !n.Forbidden.Test(uint(l.Color + i)) {
					return fmt.Errorf("lr: lr %d's color %d not forbidden to neighbor lr %d", l.ID, l.Color+i, n.ID)
				}
			}
		}
	}

	if cp == nil {
		return nil
	}
	for _, l := range ranges {
		if l.Color == NoColor {
			continue
		}
		nmr := table.NumMachineReg(l.RC)
		for _, u := range l.Units {
			if int(cp.UsedColors(l.RC, u.Block).Count()) > nmr {
				return fmt.Errorf("lr: block %d uses more colors than class %d has machine registers", u.Block.ID, l.RC)
			}
		}
	}
	return nil
}

func rangesOverlap(a, aw, b, bw int) bool {
	return a < b+bw && b < a+aw
}

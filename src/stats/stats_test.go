package stats

import (
	"testing"
	"time"
)

func TestRecordAndGetStatsForBlockRoundTrips(t *testing.T) {
	s := New()
	s.RecordBBStats(1, 42, BBStats{Uses: 2, Defs: 1, StartWithDef: true})

	got := s.GetStatsForBlock(1, 42)
	if got.Uses != 2 || got.Defs != 1 || !got.StartWithDef {
		t.Errorf("expected the recorded stats to round-trip, got %+v", got)
	}
}

func TestGetStatsForBlockReturnsZeroValueWhenAbsent(t *testing.T) {
	s := New()
	if got := s.GetStatsForBlock(99, 1); got != (BBStats{}) {
		t.Errorf("expected a zero-value BBStats for an unrecorded block/lrid pair, got %+v", got)
	}
}

func TestTimerAccumulatesSavedIntervals(t *testing.T) {
	var timer Timer
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	timer.Start("coloring", start)
	d := timer.Stop(start.Add(5 * time.Second))
	if d != 5*time.Second {
		t.Errorf("expected Stop to return the elapsed duration, got %v", d)
	}

	timer.Start("spilling", start.Add(5*time.Second))
	timer.Stop(start.Add(8 * time.Second))

	saved := timer.SavedTimes()
	if len(saved) != 2 {
		t.Fatalf("expected 2 saved intervals, got %d", len(saved))
	}
	if saved[0].Section != "coloring" || saved[1].Section != "spilling" {
		t.Errorf("expected sections in recording order, got %+v", saved)
	}
}

func TestChowStatsFieldsIncludesEveryCounter(t *testing.T) {
	c := &ChowStats{ClrInitial: 1, CSplits: 2, CChowLoads: 3}
	fields := c.Fields()

	if fields["clr_initial"] != 1 {
		t.Errorf("expected clr_initial field to be 1, got %v", fields["clr_initial"])
	}
	if fields["c_splits"] != 2 {
		t.Errorf("expected c_splits field to be 2, got %v", fields["c_splits"])
	}
	if fields["c_chow_loads"] != 3 {
		t.Errorf("expected c_chow_loads field to be 3, got %v", fields["c_chow_loads"])
	}
}

// Package stats collects allocation statistics and per-phase timings,
// grounded on original_source/stats.cc's ChowStats and Timer, replacing its
// bare fprintf dump with structured github.com/sirupsen/logrus fields.
package stats

import (
	"time"

	"github.com/sirupsen/logrus"
)

// BBStats is one live range's use/def footprint within a single block,
// grounded on original_source/stats.cc's BBStats (ComputeBBStats/
// GetStatsForBlock), recording how heavily a live range is referenced in a
// given block. The priority functions in package alloc do not consult it;
// they read use/def counts from lr.LiveUnit directly.
type BBStats struct {
	Uses         int
	Defs         int
	StartWithDef bool
}

// ChowStats is the running counter set for one allocation, grounded on
// original_source/stats.h's ChowStats struct. Counts here are updated
// directly by the alloc, motion and chowra packages as the allocation proceeds.
type ChowStats struct {
	ClrInitial       int
	ClrRemat         int
	ClrFinal         int
	ClrColored       int
	CSplits          int
	CSpills          int
	CSpilledOptimist int
	CZeroOccurrence  int
	CChowStores      int
	CChowLoads       int
	CInsertedCopies  int
	CThwartedCopies  int
}

// Fields renders c as logrus.Fields for a single structured log line.
func (c *ChowStats) Fields() logrus.Fields {
	return logrus.Fields{
		"clr_initial":        c.ClrInitial,
		"clr_remat":          c.ClrRemat,
		"clr_final":          c.ClrFinal,
		"clr_colored":        c.ClrColored,
		"c_splits":           c.CSplits,
		"c_spills":           c.CSpills,
		"c_spilled_optimist": c.CSpilledOptimist,
		"c_zero_occurrence":  c.CZeroOccurrence,
		"c_chow_stores":      c.CChowStores,
		"c_chow_loads":       c.CChowLoads,
		"c_inserted_copies":  c.CInsertedCopies,
		"c_thwarted_copies":  c.CThwartedCopies,
	}
}

// Timer accumulates named section durations, grounded on
// original_source/stats.cc's Timer (Start/Stop/GetSavedTimes), reported at
// logrus Debug level rather than printed to a fixed-width table.
type Timer struct {
	section string
	start   time.Time
	saved   []SavedTime
}

// SavedTime is one completed Start/Stop interval.
type SavedTime struct {
	Section  string
	Duration time.Duration
}

// Start begins timing section. A prior unstopped section is discarded: only
// one interval is ever in flight.
func (t *Timer) Start(section string, now time.Time) {
	t.section = section
	t.start = now
}

// Stop ends the current section and records it, returning its duration.
func (t *Timer) Stop(now time.Time) time.Duration {
	d := now.Sub(t.start)
	t.saved = append(t.saved, SavedTime{Section: t.section, Duration: d})
	return d
}

// SavedTimes returns every completed interval in recording order.
func (t *Timer) SavedTimes() []SavedTime {
	return t.saved
}

// Stats bundles the running ChowStats counters with the per-phase and
// whole-program timers for one allocation run, standing in for
// original_source/stats.cc's package-level chowstats/section_timer/
// program_timer globals without the global state.
type Stats struct {
	Chow    ChowStats
	Section Timer
	Program Timer

	bb map[int]map[int]BBStats // blockID -> origLRID -> stats
}

// New returns a zeroed Stats ready to accumulate one allocation run.
func New() *Stats {
	return &Stats{bb: map[int]map[int]BBStats{}}
}

// RecordBBStats stores the use/def footprint of origLRID within block
// blockID, grounded on ComputeBBStats's per-block per-variable table.
func (s *Stats) RecordBBStats(blockID, origLRID int, bs BBStats) {
	m, ok := s.bb[blockID]
	if !ok {
		m = map[int]BBStats{}
		s.bb[blockID] = m
	}
	m[origLRID] = bs
}

// GetStatsForBlock returns the recorded footprint of origLRID in blockID,
// grounded on Stats::GetStatsForBlock.
func (s *Stats) GetStatsForBlock(blockID, origLRID int) BBStats {
	return s.bb[blockID][origLRID]
}

// Dump logs the final counters at Info level and every saved section timing
// at Debug level, grounded on Stats::DumpAllocationStats.
func (s *Stats) Dump(log logrus.FieldLogger) {
	log.WithFields(s.Chow.Fields()).Info("allocation statistics")
	for _, st := range s.Section.SavedTimes() {
		log.WithFields(logrus.Fields{
			"section":  st.Section,
			"duration": st.Duration.String(),
		}).Debug("allocation phase timing")
	}
	log.WithField("whole_program", s.Program.SavedTimes()).Debug("program timing")
}

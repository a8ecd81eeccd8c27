// options.go defines the Options structure threaded explicitly through the allocator
// pipeline (never a package global) and parses it from the command line flag table
// using pflag.

package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds every knob described by the CLI surface, plus a couple of ambient
// knobs (Threads, Verbose) that are not part of the allocator's own parameter table.
type Options struct {
	Src string // Path to input iloc file. Empty means read from stdin.

	BBMaxInsts         int     // -b: basic-block max instructions (0 = no split).
	NumRegisters       int     // -r: number of machine registers.
	LoopDepthWeight    float64 // -d: loop-depth weight.
	PartitionClasses   bool    // -p: enable partitioned register classes.
	MoveLoadsAndStores bool    // -m: move loads and stores onto edges.
	EnhancedCodeMotion bool    // -e: enhanced code motion (implies -m).
	ForceFeasible      bool    // -f: force-raise register count to feasibility.
	DumpParams         bool    // -y: dump parameter table and exit.
	Rematerialize      bool    // -z: enable rematerialization.
	TrimUselessBlocks  bool    // -t: trim useless blocks after splitting.
	ColorChoice        int     // -c: color-choice strategy id.
	IncludeInSplit     int     // -i: include-in-split strategy id.
	WhenToSplit        int     // -w: when-to-split strategy id.
	HowToSplit         int     // -s: how-to-split strategy id.
	PriorityFunction   int     // -x: priority-function strategy id.
	ReservedRegs       []int   // -l: reserved registers per class.
	AllocateLocals     bool    // -g: allocate local-only names.
	Optimistic         bool    // -o: optimistic coloring.
	AllocateAll        bool    // -a: allocate all unconstrained (even priority <= 0).
	SplitLimit         int     // -u: absolute split limit.

	Threads   int  // Parallelism across procedures (ambient, not part of spec's table).
	Verbose   bool // Verbose statistics logging.
	Verify    bool // Run lr.CheckInvariants after interference building and after allocation.
	DumpGraph bool // Write alloc.DumpInterferenceGraph to stderr after interference is built.
}

// ---------------------
// ----- Constants -----
// ---------------------

const appVersion = "chowra 1.0"

// Defaults mirror original_source/params.cc/chow_params.h.
const (
	defaultLoopDepthWeight = 10.0
	defaultBBMaxInsts      = 0
	defaultSplitLimit      = 10000
	defaultMaxThreads      = 64
)

// ---------------------
// ----- functions -----
// ---------------------

// ParseArgs parses command line arguments into an Options structure.
func ParseArgs(args []string) (Options, error) {
	opt := Options{
		LoopDepthWeight: defaultLoopDepthWeight,
		BBMaxInsts:      defaultBBMaxInsts,
		SplitLimit:      defaultSplitLimit,
		Threads:         1,
	}

	fs := pflag.NewFlagSet("chowra", pflag.ContinueOnError)
	fs.Usage = func() { printHelp(fs) }

	var reservedRegsList string
	var help, version bool

	fs.IntVarP(&opt.BBMaxInsts, "bb-max-insts", "b", opt.BBMaxInsts, "basic-block max instructions (0 = no split)")
	fs.IntVarP(&opt.NumRegisters, "num-registers", "r", 0, "number of machine registers")
	fs.Float64VarP(&opt.LoopDepthWeight, "loop-depth-weight", "d", opt.LoopDepthWeight, "loop-depth weight")
	fs.BoolVarP(&opt.PartitionClasses, "partition-classes", "p", false, "enable partitioned register classes")
	fs.BoolVarP(&opt.MoveLoadsAndStores, "motion", "m", false, "move loads and stores onto edges")
	fs.BoolVarP(&opt.EnhancedCodeMotion, "enhanced-motion", "e", false, "enhanced code motion (implies -m)")
	fs.BoolVarP(&opt.ForceFeasible, "force-feasible", "f", false, "force-raise register count to feasibility")
	fs.BoolVarP(&opt.DumpParams, "dump-params", "y", false, "dump parameter table and exit")
	fs.BoolVarP(&opt.Rematerialize, "rematerialize", "z", false, "enable rematerialization")
	fs.BoolVarP(&opt.TrimUselessBlocks, "trim", "t", false, "trim useless blocks after splitting")
	fs.IntVarP(&opt.ColorChoice, "color-choice", "c", 0, "color-choice strategy id")
	fs.IntVarP(&opt.IncludeInSplit, "include-in-split", "i", 0, "include-in-split strategy id")
	fs.IntVarP(&opt.WhenToSplit, "when-to-split", "w", 0, "when-to-split strategy id")
	fs.IntVarP(&opt.HowToSplit, "how-to-split", "s", 0, "how-to-split strategy id")
	fs.IntVarP(&opt.PriorityFunction, "priority-function", "x", 0, "priority-function strategy id")
	fs.StringVarP(&reservedRegsList, "reserved-regs", "l", "", "reserved registers per class, comma separated")
	fs.BoolVarP(&opt.AllocateLocals, "allocate-locals", "g", false, "allocate local-only names")
	fs.BoolVarP(&opt.Optimistic, "optimistic", "o", false, "optimistic coloring")
	fs.BoolVarP(&opt.AllocateAll, "allocate-all", "a", false, "allocate all unconstrained live ranges")
	fs.IntVarP(&opt.SplitLimit, "split-limit", "u", opt.SplitLimit, "absolute split limit")
	fs.BoolVar(&opt.Verbose, "verbose", false, "print allocation statistics to stderr")
	fs.BoolVar(&opt.Verify, "verify", false, "run internal invariant checks after interference building and after allocation")
	fs.BoolVar(&opt.DumpGraph, "dump-graph", false, "write a textual interference-graph adjacency dump to stderr")
	fs.IntVar(&opt.Threads, "threads", 1, "number of procedures to allocate in parallel")
	fs.BoolVarP(&help, "help", "h", false, "print this help message and exit")
	fs.BoolVarP(&version, "version", "v", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return opt, err
	}

	if help {
		printHelp(fs)
		os.Exit(0)
	}
	if version {
		fmt.Println(appVersion)
		os.Exit(0)
	}

	if opt.EnhancedCodeMotion {
		opt.MoveLoadsAndStores = true
	}
	if opt.Threads < 1 {
		opt.Threads = 1
	}
	if opt.Threads > defaultMaxThreads {
		opt.Threads = defaultMaxThreads
	}

	if reservedRegsList != "" {
		for _, e1 := range strings.Split(reservedRegsList, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(e1))
			if err != nil {
				return opt, fmt.Errorf("-l: expected integer list, got %q: %w", reservedRegsList, err)
			}
			opt.ReservedRegs = append(opt.ReservedRegs, n)
		}
	}

	if rest := fs.Args(); len(rest) > 0 {
		opt.Src = rest[len(rest)-1]
	}

	return opt, nil
}

// printHelp prints a helpful usage message to stdout.
func printHelp(fs *pflag.FlagSet) {
	fmt.Println(appVersion)
	fmt.Println("usage: chowra [flags] [input.iloc]")
	fs.PrintDefaults()
}

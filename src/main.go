package main

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"chowra/src/chowra"
	"chowra/src/ir"
	"chowra/src/util"
)

// run reads IR from opt.Src (or stdin), allocates registers for every
// procedure it contains and writes the rewritten IR out, exactly
// mirroring hhramberg-go-vslc's run(opt) shape: parse, transform, emit.
func run(opt util.Options, log logrus.FieldLogger) error {
	src, err := openSource(opt.Src)
	if err != nil {
		return &chowra.FatalError{Tag: chowra.ErrParse, Detail: err.Error()}
	}
	defer src.Close()

	m, err := ir.Parse(src)
	if err != nil {
		return &chowra.FatalError{Tag: chowra.ErrParse, Detail: err.Error()}
	}

	st, err := chowra.RunModule(m, opt, log)
	if err != nil {
		return err
	}
	st.Dump(log)
	return nil
}

func openSource(path string) (*os.File, error) {
	if path == "" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

func main() {
	opt, err := util.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "chowra: %s\n", err)
		os.Exit(1)
	}

	if opt.DumpParams {
		dumpParams(opt)
		os.Exit(0)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if opt.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	wg := sync.WaitGroup{}
	util.ListenWrite(opt, nil, &wg)
	defer util.Close()

	if err := run(opt, log); err != nil {
		fmt.Fprintf(os.Stderr, "chowra: %s\n", err)
		wg.Wait()
		var fe *chowra.FatalError
		if errors.As(err, &fe) && fe.Tag == chowra.ErrInfeasible {
			os.Exit(2)
		}
		os.Exit(1)
	}

	wg.Wait()
}

// dumpParams prints the resolved parameter table and returns, grounded on
// original_source/chow.main.cc's PrintParams (-y flag).
func dumpParams(opt util.Options) {
	fmt.Printf("bb-max-insts       (-b) = %d\n", opt.BBMaxInsts)
	fmt.Printf("num-registers      (-r) = %d\n", opt.NumRegisters)
	fmt.Printf("loop-depth-weight  (-d) = %g\n", opt.LoopDepthWeight)
	fmt.Printf("partition-classes  (-p) = %t\n", opt.PartitionClasses)
	fmt.Printf("motion             (-m) = %t\n", opt.MoveLoadsAndStores)
	fmt.Printf("enhanced-motion    (-e) = %t\n", opt.EnhancedCodeMotion)
	fmt.Printf("force-feasible     (-f) = %t\n", opt.ForceFeasible)
	fmt.Printf("rematerialize      (-z) = %t\n", opt.Rematerialize)
	fmt.Printf("trim               (-t) = %t\n", opt.TrimUselessBlocks)
	fmt.Printf("color-choice       (-c) = %d\n", opt.ColorChoice)
	fmt.Printf("include-in-split   (-i) = %d\n", opt.IncludeInSplit)
	fmt.Printf("when-to-split      (-w) = %d\n", opt.WhenToSplit)
	fmt.Printf("how-to-split       (-s) = %d\n", opt.HowToSplit)
	fmt.Printf("priority-function  (-x) = %d\n", opt.PriorityFunction)
	fmt.Printf("reserved-regs      (-l) = %v\n", opt.ReservedRegs)
	fmt.Printf("allocate-locals    (-g) = %t\n", opt.AllocateLocals)
	fmt.Printf("optimistic         (-o) = %t\n", opt.Optimistic)
	fmt.Printf("allocate-all       (-a) = %t\n", opt.AllocateAll)
	fmt.Printf("split-limit        (-u) = %d\n", opt.SplitLimit)
	fmt.Printf("threads                 = %d\n", opt.Threads)
	fmt.Printf("verify                  = %t\n", opt.Verify)
	fmt.Printf("dump-graph              = %t\n", opt.DumpGraph)
}

// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import (
	"time"

	"github.com/google/uuid"
)

// CompileFunction runs every compilation phase spec.md §4 describes, in
// order: graph construction, optional structural verification, generic
// lowering, node scheduling, and block scheduling. A CompileFault raised
// anywhere in the pipeline is recovered and returned as an error, per
// spec.md §7's "aborts fatally on an invariant violation, the caller gets
// an error back" contract; any other panic propagates to the caller.
func CompileFunction(bf *BytecodeFunction, cfg *Config) (mf *MIFunction, err error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	defer recoverCompileFault(&err)

	traceID := uuid.New()
	start := time.Now()
	logTracing.Debug("compile start", "trace", traceID, "function", bf.Name, "instructions", len(bf.Code)/4)

	phase := func(name string, since time.Time) {
		logTracing.Debug("compile phase", "trace", traceID, "function", bf.Name, "phase", name, "elapsed", time.Since(since))
	}

	t0 := time.Now()
	f := BuildGraph(bf)
	phase("build", t0)

	if cfg.Verify {
		t1 := time.Now()
		VerifyOrFault(f)
		phase("verify", t1)
	}

	t2 := time.Now()
	LowerGeneric(f)
	phase("lower", t2)

	if cfg.Verify {
		t3 := time.Now()
		VerifyOrFault(f)
		phase("verify.post-lower", t3)
	}

	t4 := time.Now()
	mf = ScheduleNodes(f)
	phase("schedule.nodes", t4)

	t5 := time.Now()
	dt := BuildDominatorTree(mf)
	li := BuildLoopInfo(mf, dt)
	ScheduleBlocks(mf, dt, li)
	phase("schedule.blocks", t5)

	loops := li.Loops()
	if len(loops) > 0 {
		blockOf := blockOfNodes(mf)
		mf.LoopExitPhis = make(map[int][]*Node)
		for _, l := range loops {
			mf.LoopExitPhis[l.Header] = li.ExitPhiCandidates(l, f, blockOf)
		}
		logTracing.Debug("loop exit phis", "trace", traceID, "function", bf.Name, "loops", len(loops))
	}

	logTracing.Info("compile complete", "trace", traceID, "function", bf.Name, "blocks", len(mf.Blocks), "vregs", mf.VRegCount, "elapsed", time.Since(start))
	return mf, nil
}

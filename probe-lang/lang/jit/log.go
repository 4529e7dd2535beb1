// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "github.com/probechain/go-probe/log"

// Per-category loggers, one per spec.md §6 "Debug output" category,
// following the teacher's per-subsystem logger convention (e.g.
// consensus/pob's log.New("module", "pob")). Each is independently
// silenceable via its own log.Handler, unlike a single package-wide
// logger, so an embedder enabling "scheduling" doesn't also get
// "domfrontier" noise.
var (
	logBlockScheduler  = log.New("module", "jit/blockscheduler")
	logDomFrontier     = log.New("module", "jit/domfrontier")
	logGraphBuilder    = log.New("module", "jit/ir.graphbuilder")
	logMI              = log.New("module", "jit/mi")
	logScheduling      = log.New("module", "jit/scheduling")
	logSchedulingCFG   = log.New("module", "jit/scheduling.cfg")
	logTracing         = log.New("module", "jit/tracing")
)

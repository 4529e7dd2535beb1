// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "testing"

// TestLoopInfoSimpleLoop checks header/body/latch detection and the exit
// block for a minimal single-block-body natural loop.
func TestLoopInfoSimpleLoop(t *testing.T) {
	mf := NewMIFunction()
	entry, header, body, exit := mf.AddBlock(), mf.AddBlock(), mf.AddBlock(), mf.AddBlock()
	link(entry, header)
	link(header, body)
	link(body, header) // back edge
	link(header, exit)

	dt := BuildDominatorTree(mf)
	li := BuildLoopInfo(mf, dt)

	loop, ok := li.IsLoopHeader(header.Index)
	if !ok {
		t.Fatalf("expected header to be recognized as a loop header")
	}
	if loop.Header != header.Index {
		t.Fatalf("expected loop.Header == %d, got %d", header.Index, loop.Header)
	}
	if !loop.Contains(body.Index) {
		t.Fatalf("expected loop to contain body block")
	}
	if loop.Contains(entry.Index) || loop.Contains(exit.Index) {
		t.Fatalf("loop should not contain entry or exit")
	}
	exits := loop.LoopExits()
	if len(exits) != 1 || exits[0] != exit.Index {
		t.Fatalf("expected loop exits == [%d], got %v", exit.Index, exits)
	}
	if li.LoopHeaderFor(body.Index) != loop {
		t.Fatalf("expected body's innermost loop to be the header's loop")
	}
	if li.LoopHeaderFor(entry.Index) != nil {
		t.Fatalf("expected entry to belong to no loop")
	}
}

// TestLoopInfoNestedLoops checks that an inner loop nested inside an outer
// loop's body is recorded with the outer loop as its Parent, and that the
// outer loop's exits don't include the inner loop's own back-edge-internal
// blocks.
func TestLoopInfoNestedLoops(t *testing.T) {
	mf := NewMIFunction()
	entry := mf.AddBlock()
	outerHeader := mf.AddBlock()
	innerHeader := mf.AddBlock()
	innerBody := mf.AddBlock()
	outerExit := mf.AddBlock()

	link(entry, outerHeader)
	link(outerHeader, innerHeader)
	link(innerHeader, innerBody)
	link(innerBody, innerHeader) // inner back edge
	link(innerHeader, outerHeader)
	link(outerHeader, outerExit)

	dt := BuildDominatorTree(mf)
	li := BuildLoopInfo(mf, dt)

	outer, ok := li.IsLoopHeader(outerHeader.Index)
	if !ok {
		t.Fatalf("expected outerHeader to be a loop header")
	}
	inner, ok := li.IsLoopHeader(innerHeader.Index)
	if !ok {
		t.Fatalf("expected innerHeader to be a loop header")
	}
	if inner.Parent != outer {
		t.Fatalf("expected inner loop's Parent to be the outer loop")
	}
	if li.LoopHeaderFor(innerBody.Index) != inner {
		t.Fatalf("expected innerBody's innermost loop to be inner, not outer")
	}
	found := false
	for _, e := range outer.LoopExits() {
		if e == outerExit.Index {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected outer loop's exits to include outerExit, got %v", outer.LoopExits())
	}
}

// TestLoopInfoExitPhiCandidates checks that ExitPhiCandidates picks out a
// loop-header Phi used after the loop exits, while leaving a body-only
// value (never used outside the loop) out of the result.
func TestLoopInfoExitPhiCandidates(t *testing.T) {
	mf := NewMIFunction()
	entry, header, body, exit := mf.AddBlock(), mf.AddBlock(), mf.AddBlock(), mf.AddBlock()
	link(entry, header)
	link(header, body)
	link(body, header) // back edge
	link(header, exit)

	g := NewGraph()
	phi := g.NewNode(opPhi(2, TypeNumber), []*Node{g.ConstWord(0, TypeNumber), g.ConstWord(1, TypeNumber)}, nil, []*Node{g.Start}, nil)
	bodyOnly := g.NewNode(probeOp(OpPROBEAdd), []*Node{phi, g.ConstWord(1, TypeNumber)}, []*Node{g.Start}, []*Node{g.Start}, nil)
	liveOut := g.NewNode(opReturn(), []*Node{phi}, []*Node{g.Start}, []*Node{g.Start}, nil)

	header.Append(&MIInstr{Node: phi})
	body.Append(&MIInstr{Node: bodyOnly})
	exit.Append(&MIInstr{Node: liveOut})

	dt := BuildDominatorTree(mf)
	li := BuildLoopInfo(mf, dt)

	loop, ok := li.IsLoopHeader(header.Index)
	if !ok {
		t.Fatalf("expected header to be recognized as a loop header")
	}

	blockOf := blockOfNodes(mf)
	cands := li.ExitPhiCandidates(loop, nil, blockOf)

	foundPhi := false
	for _, n := range cands {
		if n == phi {
			foundPhi = true
		}
		if n == bodyOnly {
			t.Fatalf("bodyOnly is never used outside the loop and should not be an exit-phi candidate")
		}
	}
	if !foundPhi {
		t.Fatalf("expected the header Phi (used by the exit block's Return) to be an exit-phi candidate, got %v", cands)
	}
}

// TestLoopInfoNoLoops checks that an acyclic CFG reports no loop headers.
func TestLoopInfoNoLoops(t *testing.T) {
	mf := NewMIFunction()
	a, b, c := mf.AddBlock(), mf.AddBlock(), mf.AddBlock()
	link(a, b)
	link(b, c)

	dt := BuildDominatorTree(mf)
	li := BuildLoopInfo(mf, dt)

	for _, blk := range []*MIBlock{a, b, c} {
		if _, ok := li.IsLoopHeader(blk.Index); ok {
			t.Fatalf("block %d unexpectedly reported as a loop header", blk.Index)
		}
		if li.LoopHeaderFor(blk.Index) != nil {
			t.Fatalf("block %d unexpectedly reported inside a loop", blk.Index)
		}
	}
}

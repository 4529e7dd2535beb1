// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "testing"

func TestVerifyGraphCleanFunction(t *testing.T) {
	g := NewGraph()
	c := g.ConstWord(1, TypeNumber)
	ret := g.NewNode(opReturn(), []*Node{c}, []*Node{g.Start}, []*Node{g.Start}, nil)
	f := NewFunction(&BytecodeFunction{Name: "t"})
	f.Graph = g
	g.QueueEndInput(ret)
	g.SealEnd()

	if errs := VerifyGraph(f); len(errs) != 0 {
		t.Fatalf("expected no verification errors, got %v", errs)
	}
}

// TestVerifyGraphDetectsArityMismatch builds a Phi whose declared arity
// (via opPhi's nInputs) doesn't match its actual input count, and checks
// VerifyGraph reports it rather than panicking.
func TestVerifyGraphDetectsArityMismatch(t *testing.T) {
	g := NewGraph()
	p1 := g.NewNode(opJump(), nil, nil, []*Node{g.Start}, nil)
	p2 := g.NewNode(opJump(), nil, nil, []*Node{g.Start}, nil)
	region := g.NewNode(opRegion(2), nil, nil, []*Node{p1, p2}, nil)

	c1 := g.ConstWord(1, TypeNumber)
	// opPhi(2, ...) declares 2 value inputs + 1 control input == 3 total,
	// but only one value input is actually supplied below.
	phi := g.NewNode(opPhi(2, TypeNumber), []*Node{c1}, nil, []*Node{region}, nil)

	ret := g.NewNode(opReturn(), []*Node{c1}, []*Node{g.Start}, []*Node{region}, nil)
	f := NewFunction(&BytecodeFunction{Name: "t"})
	f.Graph = g
	g.QueueEndInput(ret)
	g.QueueEndInput(phi) // keep phi reachable from End so VerifyGraph visits it
	g.SealEnd()

	errs := VerifyGraph(f)
	if len(errs) == 0 {
		t.Fatalf("expected VerifyGraph to report the Phi/Region arity mismatch")
	}
	found := false
	for _, e := range errs {
		if e.NodeID == phi.ID() {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error attributed to the Phi node %d, got %v", phi.ID(), errs)
	}
}

// TestVerifyGraphDetectsPhiWithoutRegion checks a Phi whose control input
// is not a Region at all.
func TestVerifyGraphDetectsPhiWithoutRegion(t *testing.T) {
	g := NewGraph()
	c1 := g.ConstWord(1, TypeNumber)
	badPhi := g.NewNode(opPhi(1, TypeNumber), []*Node{c1}, nil, []*Node{g.Start}, nil)
	ret := g.NewNode(opReturn(), []*Node{badPhi}, []*Node{g.Start}, []*Node{g.Start}, nil)
	f := NewFunction(&BytecodeFunction{Name: "t"})
	f.Graph = g
	g.QueueEndInput(ret)
	g.SealEnd()

	errs := VerifyGraph(f)
	if len(errs) == 0 {
		t.Fatalf("expected VerifyGraph to flag a Phi controlled by Start instead of a Region")
	}
}

// TestVerifyOrFaultPanicsOnProblems checks that VerifyOrFault raises a
// *CompileFault (recoverable via recoverCompileFault) when problems exist.
func TestVerifyOrFaultPanicsOnProblems(t *testing.T) {
	g := NewGraph()
	c1 := g.ConstWord(1, TypeNumber)
	badPhi := g.NewNode(opPhi(1, TypeNumber), []*Node{c1}, nil, []*Node{g.Start}, nil)
	ret := g.NewNode(opReturn(), []*Node{badPhi}, []*Node{g.Start}, []*Node{g.Start}, nil)
	f := NewFunction(&BytecodeFunction{Name: "t"})
	f.Graph = g
	g.QueueEndInput(ret)
	g.SealEnd()

	var err error
	func() {
		defer recoverCompileFault(&err)
		VerifyOrFault(f)
	}()
	if err == nil {
		t.Fatalf("expected VerifyOrFault to raise a recoverable fault")
	}
}

// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "testing"

// buildSimpleFunction wires a Start->End shell with no real control flow,
// just enough scaffolding for LowerGeneric's walkAllNodes (which walks
// backward from End) to discover a single runtime-call node queued via
// QueueEndInput.
func buildSimpleFunction(t *testing.T, tail *Node) *Function {
	t.Helper()
	f := NewFunction(&BytecodeFunction{Name: "t"})
	g := f.Graph
	g.QueueEndInput(tail)
	g.SealEnd()
	return f
}

// TestLowerNonVarargMaterializesConstants checks that a constant operand to
// a non-vararg runtime call gets wrapped in an Alloca (constants always
// need PROBE-stack storage), and that the VM register is prepended per the
// runtime signature's withEngine() prefix.
func TestLowerNonVarargMaterializesConstants(t *testing.T) {
	g := NewGraph()
	c1 := g.ConstWord(1, TypeNumber)
	c2 := g.ConstWord(2, TypeNumber)
	add := g.NewNode(probeOp(OpPROBEAdd), []*Node{c1, c2}, []*Node{g.Start}, []*Node{g.Start}, nil)
	ret := g.NewNode(opReturn(), []*Node{add}, []*Node{add}, []*Node{g.Start}, nil)
	f := buildSimpleFunction(t, ret)

	LowerGeneric(f)

	call := ret.ValueInput(0)
	if call.Opcode() != OpCall {
		t.Fatalf("expected return's value input to be a Call after lowering, got %v", call.Opcode())
	}
	if call.ValueInputCount() != 3 {
		t.Fatalf("expected 3 value inputs (VM, alloca(c1), alloca(c2)), got %d", call.ValueInputCount())
	}
	if call.ValueInput(0) != g.VM {
		t.Fatalf("expected first value input to be the VM register")
	}
	a1, a2 := call.ValueInput(1), call.ValueInput(2)
	if a1.Opcode() != OpAlloca || a2.Opcode() != OpAlloca {
		t.Fatalf("expected constant operands wrapped in Alloca, got %v %v", a1.Opcode(), a2.Opcode())
	}
	if a1.ValueInput(0) != c1 || a2.ValueInput(0) != c2 {
		t.Fatalf("expected Allocas to wrap the original constants")
	}
	if !add.IsDead() {
		t.Fatalf("expected the original PROBEAdd node to be killed after lowering")
	}
}

// TestLowerNonVarargPassesRawPointerDirectly checks that an operand whose
// static type is already a raw pointer (no PROBE-stack storage needed) is
// passed straight through without an Alloca wrapper.
func TestLowerNonVarargPassesRawPointerDirectly(t *testing.T) {
	g := NewGraph()
	param := g.NewNode(opParameter(0, 0, TypeRawPointer), nil, nil, nil, nil)
	neg := g.NewNode(probeOp(OpPROBENeg), []*Node{param}, []*Node{g.Start}, []*Node{g.Start}, nil)
	ret := g.NewNode(opReturn(), []*Node{neg}, []*Node{neg}, []*Node{g.Start}, nil)
	f := buildSimpleFunction(t, ret)

	LowerGeneric(f)

	call := ret.ValueInput(0)
	if call.Opcode() != OpCall {
		t.Fatalf("expected a Call node after lowering, got %v", call.Opcode())
	}
	if call.ValueInputCount() != 2 {
		t.Fatalf("expected 2 value inputs (VM, param), got %d", call.ValueInputCount())
	}
	if call.ValueInput(1) != param {
		t.Fatalf("expected the raw-pointer param to be passed through without an Alloca")
	}
}

// TestLowerVarargBuildsStoreChainAndSeal checks OpPROBECallName's lowering:
// one VAAlloc, one VAStore per argument chained through the previous store,
// a VASeal, and a Call carrying exactly [VM, vaSeal, argc].
func TestLowerVarargBuildsStoreChainAndSeal(t *testing.T) {
	g := NewGraph()
	arg0 := g.ConstWord(10, TypeNumber)
	arg1 := g.ConstWord(20, TypeNumber)
	callName := g.NewNode(probeOpVararg(OpPROBECallName, 2), []*Node{arg0, arg1}, []*Node{g.Start}, []*Node{g.Start}, nil)
	ret := g.NewNode(opReturn(), []*Node{callName}, []*Node{callName}, []*Node{g.Start}, nil)
	f := buildSimpleFunction(t, ret)

	LowerGeneric(f)

	call := ret.ValueInput(0)
	if call.Opcode() != OpCall {
		t.Fatalf("expected a Call node after vararg lowering, got %v", call.Opcode())
	}
	if call.ValueInputCount() != 3 {
		t.Fatalf("expected 3 value inputs (VM, vaSeal, argc), got %d", call.ValueInputCount())
	}
	if call.ValueInput(0) != g.VM {
		t.Fatalf("expected first value input to be VM")
	}
	vaSeal := call.ValueInput(1)
	if vaSeal.Opcode() != OpVASeal {
		t.Fatalf("expected second value input to be a VASeal, got %v", vaSeal.Opcode())
	}

	// Walk the store chain back from vaSeal's chain input; expect exactly
	// 2 VAStore nodes before reaching the VAAlloc.
	stores := 0
	cur := vaSeal.ValueInput(0)
	for cur.Opcode() == OpVAStore {
		stores++
		cur = cur.ValueInput(0)
	}
	if cur.Opcode() != OpVAAlloc {
		t.Fatalf("expected the store chain to bottom out at a VAAlloc, got %v", cur.Opcode())
	}
	if stores != 2 {
		t.Fatalf("expected 2 chained VAStore nodes, got %d", stores)
	}
	if !callName.IsDead() {
		t.Fatalf("expected the original PROBECallName node to be killed after lowering")
	}
}

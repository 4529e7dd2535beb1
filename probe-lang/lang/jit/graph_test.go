// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "testing"

func TestNewGraphBuiltinsPresent(t *testing.T) {
	g := NewGraph()
	if g.Start == nil || g.VM == nil || g.Frame == nil || g.FuncRef == nil {
		t.Fatalf("expected Start/VM/Frame/FuncRef to be pre-built")
	}
	if g.Start.Opcode() != OpStart {
		t.Fatalf("expected Start node to carry OpStart")
	}
	if g.VM.Opcode() != OpVM || g.Frame.Opcode() != OpFrame || g.FuncRef.Opcode() != OpFuncRef {
		t.Fatalf("unexpected opcodes on builtin nodes")
	}
}

// TestConstUndefinedIsInterned checks the per-graph (not global) constant
// caching: two calls on the same Graph return the same node, but a second
// Graph gets its own.
func TestConstUndefinedIsInterned(t *testing.T) {
	g1 := NewGraph()
	a := g1.ConstUndefined()
	b := g1.ConstUndefined()
	if a != b {
		t.Fatalf("expected ConstUndefined to be interned within one graph")
	}

	g2 := NewGraph()
	c := g2.ConstUndefined()
	if c == a {
		t.Fatalf("expected distinct graphs to have distinct interned constants")
	}
}

func TestConstWordIsNotInterned(t *testing.T) {
	g := NewGraph()
	a := g.ConstWord(7, TypeNumber)
	b := g.ConstWord(7, TypeNumber)
	if a == b {
		t.Fatalf("expected ConstWord to allocate a fresh node per call site")
	}
}

func TestNodeIDsAreDenseAndMonotonic(t *testing.T) {
	g := NewGraph()
	startID := g.Start.ID()
	n1 := g.ConstWord(1, TypeNumber)
	n2 := g.ConstWord(2, TypeNumber)
	if n1.ID() <= startID {
		t.Fatalf("expected n1's id to be greater than Start's")
	}
	if n2.ID() != n1.ID()+1 {
		t.Fatalf("expected dense monotonic ids, got n1=%d n2=%d", n1.ID(), n2.ID())
	}
}

// TestSealEndCollectsQueuedExits checks that QueueEndInput/SealEnd wires
// every queued exit as a control input of End, in the order queued.
func TestSealEndCollectsQueuedExits(t *testing.T) {
	g := NewGraph()
	ret1 := g.NewNode(opReturn(), []*Node{g.ConstWord(1, TypeNumber)}, []*Node{g.Start}, []*Node{g.Start}, nil)
	ret2 := g.NewNode(opReturn(), []*Node{g.ConstWord(2, TypeNumber)}, []*Node{g.Start}, []*Node{g.Start}, nil)
	g.QueueEndInput(ret1)
	g.QueueEndInput(ret2)

	end := g.SealEnd()
	if end.ControlInputCount() != 2 {
		t.Fatalf("expected End to have 2 control inputs, got %d", end.ControlInputCount())
	}
	if end.ControlInput(0) != ret1 || end.ControlInput(1) != ret2 {
		t.Fatalf("expected End's control inputs in queued order")
	}
	if g.End != end {
		t.Fatalf("expected g.End to be set by SealEnd")
	}
}

func TestFunctionStringInterning(t *testing.T) {
	f := NewFunction(&BytecodeFunction{Name: "f"})
	idx1 := f.InternString("hello")
	idx2 := f.InternString("world")
	idx3 := f.InternString("hello")
	if idx1 != idx3 {
		t.Fatalf("expected re-interning the same string to return the same index")
	}
	if idx1 == idx2 {
		t.Fatalf("expected distinct strings to get distinct indices")
	}
	if f.String(idx1) != "hello" || f.String(idx2) != "world" {
		t.Fatalf("unexpected round-trip: %q %q", f.String(idx1), f.String(idx2))
	}
	if f.String(999) != "" {
		t.Fatalf("expected out-of-range String lookup to return empty string")
	}
}

func TestFunctionInfoCreatesOnDemand(t *testing.T) {
	f := NewFunction(&BytecodeFunction{Name: "f"})
	n := f.Graph.ConstWord(1, TypeNumber)
	info := f.Info(n)
	if info == nil {
		t.Fatalf("expected Info to create a record on first access")
	}
	if f.Info(n) != info {
		t.Fatalf("expected repeated Info calls to return the same record")
	}
}

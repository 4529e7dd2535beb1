// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "testing"

func TestNodeReplaceAllUsesWith(t *testing.T) {
	g := NewGraph()
	c1 := g.ConstWord(1, TypeNumber)
	c2 := g.ConstWord(2, TypeNumber)
	add := g.NewNode(probeOp(OpPROBEAdd), []*Node{c1, c1}, []*Node{g.Start}, []*Node{g.Start}, nil)

	if add.ValueInput(0) != c1 || add.ValueInput(1) != c1 {
		t.Fatalf("expected both value inputs to be c1 before replacement")
	}
	if c1.UseCount() != 2 {
		t.Fatalf("expected c1 to have 2 uses, got %d", c1.UseCount())
	}

	c1.ReplaceAllUsesWith(c2)

	if add.ValueInput(0) != c2 || add.ValueInput(1) != c2 {
		t.Fatalf("expected both value inputs to be c2 after replacement")
	}
	if !c1.HasNoUses() {
		t.Fatalf("expected c1 to have no uses after ReplaceAllUsesWith")
	}
	if c2.UseCount() != 2 {
		t.Fatalf("expected c2 to have 2 uses, got %d", c2.UseCount())
	}
}

func TestNodeIsDeadAfterKill(t *testing.T) {
	g := NewGraph()
	c1 := g.ConstWord(1, TypeNumber)
	add := g.NewNode(probeOp(OpPROBENeg), []*Node{c1}, []*Node{g.Start}, []*Node{g.Start}, nil)

	if add.IsDead() {
		t.Fatalf("freshly built node should not be dead")
	}
	add.Kill()
	if !add.IsDead() {
		t.Fatalf("expected node to be dead after Kill")
	}
	if c1.UseCount() != 0 {
		t.Fatalf("expected Kill to unlink uses of its inputs, got %d remaining", c1.UseCount())
	}
}

// TestNodeAppendControlInputPreservesUses checks that growing a Region's
// control-input array (which may force reallocation once capacity slack
// runs out) keeps every existing predecessor's use-list membership intact.
func TestNodeAppendControlInputPreservesUses(t *testing.T) {
	g := NewGraph()
	p1 := g.NewNode(opJump(), nil, nil, []*Node{g.Start}, nil)
	p2 := g.NewNode(opJump(), nil, nil, []*Node{g.Start}, nil)
	p3 := g.NewNode(opJump(), nil, nil, []*Node{g.Start}, nil)

	region := g.NewNode(opRegion(1), nil, nil, []*Node{p1}, nil)
	if region.ControlInputCount() != 1 || region.ControlInput(0) != p1 {
		t.Fatalf("expected region to start with one control input p1")
	}

	region.AppendControlInput(p2)
	region.AppendControlInput(p3)

	if region.ControlInputCount() != 3 {
		t.Fatalf("expected 3 control inputs after two appends, got %d", region.ControlInputCount())
	}
	if region.ControlInput(0) != p1 || region.ControlInput(1) != p2 || region.ControlInput(2) != p3 {
		t.Fatalf("control inputs out of order after append: %v %v %v",
			region.ControlInput(0), region.ControlInput(1), region.ControlInput(2))
	}
	for _, p := range []*Node{p1, p2, p3} {
		if p.UseCount() != 1 {
			t.Fatalf("expected predecessor %v to retain exactly one use after region growth, got %d", p, p.UseCount())
		}
	}
}

func TestNodeAppendValueInputShiftsEffectAndControl(t *testing.T) {
	g := NewGraph()
	c1, c2, c3 := g.ConstWord(1, TypeNumber), g.ConstWord(2, TypeNumber), g.ConstWord(3, TypeNumber)
	phi := g.NewNodeWithSlack(opPhi(1, TypeNumber), []*Node{c1}, nil, []*Node{g.Start}, nil, 2)

	phi.AppendValueInput(c2)
	phi.AppendValueInput(c3)

	if phi.ValueInputCount() != 3 {
		t.Fatalf("expected 3 value inputs, got %d", phi.ValueInputCount())
	}
	if phi.ValueInput(0) != c1 || phi.ValueInput(1) != c2 || phi.ValueInput(2) != c3 {
		t.Fatalf("value inputs out of order: %v %v %v", phi.ValueInput(0), phi.ValueInput(1), phi.ValueInput(2))
	}
	if phi.ControlInputCount() != 1 || phi.ControlInput(0) != g.Start {
		t.Fatalf("expected control input to remain Start after value-input growth")
	}
}

func TestInternedOperationsShareIdentity(t *testing.T) {
	a := opStart()
	b := opStart()
	if a != b {
		t.Fatalf("expected opStart() to return the same interned *Operation across calls")
	}
}

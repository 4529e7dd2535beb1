// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDominatorTreeDiamond checks the textbook diamond: entry dominates
// everything, neither arm dominates the other, and the merge block's
// immediate dominator is entry (not either arm), since entry is the unique
// nearest block that dominates both of merge's predecessors.
func TestDominatorTreeDiamond(t *testing.T) {
	mf := NewMIFunction()
	entry, thenB, elseB, merge := mf.AddBlock(), mf.AddBlock(), mf.AddBlock(), mf.AddBlock()
	link(entry, thenB)
	link(entry, elseB)
	link(thenB, merge)
	link(elseB, merge)

	dt := BuildDominatorTree(mf)

	if !dt.Dominates(entry.Index, merge.Index) {
		t.Fatalf("expected entry to dominate merge")
	}
	if dt.Dominates(thenB.Index, elseB.Index) || dt.Dominates(elseB.Index, thenB.Index) {
		t.Fatalf("neither arm should dominate the other")
	}
	if dt.ImmediateDominator(merge.Index) != entry.Index {
		t.Fatalf("expected merge's idom to be entry, got %d", dt.ImmediateDominator(merge.Index))
	}
	if dt.Dominates(merge.Index, merge.Index) {
		t.Fatalf("Dominates should be irreflexive")
	}
	if !dt.DominatesOrEqual(merge.Index, merge.Index) {
		t.Fatalf("DominatesOrEqual should be reflexive")
	}
}

// TestDominatorTreeLinearChain checks that in a straight-line CFG every
// block dominates everything after it, and depths increase by one per hop.
func TestDominatorTreeLinearChain(t *testing.T) {
	mf := NewMIFunction()
	a, b, c := mf.AddBlock(), mf.AddBlock(), mf.AddBlock()
	link(a, b)
	link(b, c)

	dt := BuildDominatorTree(mf)
	if !dt.Dominates(a.Index, c.Index) {
		t.Fatalf("expected a to dominate c")
	}
	if dt.ImmediateDominator(b.Index) != a.Index || dt.ImmediateDominator(c.Index) != b.Index {
		t.Fatalf("unexpected idoms: b=%d c=%d", dt.ImmediateDominator(b.Index), dt.ImmediateDominator(c.Index))
	}

	depths := dt.CalculateNodeDepths()
	if depths[a.Index] != 0 || depths[b.Index] != 1 || depths[c.Index] != 2 {
		t.Fatalf("unexpected depths: a=%d b=%d c=%d", depths[a.Index], depths[b.Index], depths[c.Index])
	}
}

// TestDominanceFrontierDiamond checks that both arms' dominance frontier is
// exactly {merge}, since neither arm strictly dominates merge (entry does).
func TestDominanceFrontierDiamond(t *testing.T) {
	mf := NewMIFunction()
	entry, thenB, elseB, merge := mf.AddBlock(), mf.AddBlock(), mf.AddBlock(), mf.AddBlock()
	link(entry, thenB)
	link(entry, elseB)
	link(thenB, merge)
	link(elseB, merge)

	dt := BuildDominatorTree(mf)
	df := dt.DominanceFrontier()

	for _, b := range []*MIBlock{thenB, elseB} {
		set := df[b.Index]
		if set == nil || !set.Contains(merge.Index) || set.Cardinality() != 1 {
			t.Fatalf("expected DF(%d) == {merge}, got %v", b.Index, set)
		}
	}
	if set := df[entry.Index]; set != nil && set.Cardinality() != 0 {
		t.Fatalf("expected DF(entry) empty, got %v", set)
	}
}

// TestDominatorTreeUnreachableDeoptBlock checks that a deopt-flagged block
// with no real predecessor edge doesn't corrupt the tree for the reachable
// blocks (its own idom simply stays InvalidIndex).
func TestDominatorTreeUnreachableDeoptBlock(t *testing.T) {
	mf := NewMIFunction()
	entry, next := mf.AddBlock(), mf.AddBlock()
	deopt := mf.AddBlock()
	deopt.IsDeoptBlock = true
	link(entry, next)

	dt := BuildDominatorTree(mf)
	if !dt.Dominates(entry.Index, next.Index) {
		t.Fatalf("expected entry to dominate next")
	}
	if dt.ImmediateDominator(deopt.Index) != InvalidIndex {
		t.Fatalf("expected unreachable deopt block to have no idom, got %d", dt.ImmediateDominator(deopt.Index))
	}
}

// TestDominatorTreeShapes is a table-driven check of ImmediateDominator
// across a handful of small CFG shapes, using testify's assert so every
// case in the table is reported even if an earlier one fails.
func TestDominatorTreeShapes(t *testing.T) {
	tests := []struct {
		name  string
		build func(mf *MIFunction) (blocks []*MIBlock, wantIdom []int)
	}{
		{
			name: "linear chain",
			build: func(mf *MIFunction) ([]*MIBlock, []int) {
				a, b, c := mf.AddBlock(), mf.AddBlock(), mf.AddBlock()
				link(a, b)
				link(b, c)
				return []*MIBlock{a, b, c}, []int{InvalidIndex, a.Index, b.Index}
			},
		},
		{
			name: "diamond",
			build: func(mf *MIFunction) ([]*MIBlock, []int) {
				entry, thenB, elseB, merge := mf.AddBlock(), mf.AddBlock(), mf.AddBlock(), mf.AddBlock()
				link(entry, thenB)
				link(entry, elseB)
				link(thenB, merge)
				link(elseB, merge)
				return []*MIBlock{entry, thenB, elseB, merge}, []int{InvalidIndex, entry.Index, entry.Index, entry.Index}
			},
		},
		{
			name: "triangle (one arm falls straight through)",
			build: func(mf *MIFunction) ([]*MIBlock, []int) {
				entry, thenB, merge := mf.AddBlock(), mf.AddBlock(), mf.AddBlock()
				link(entry, thenB)
				link(entry, merge)
				link(thenB, merge)
				return []*MIBlock{entry, thenB, merge}, []int{InvalidIndex, entry.Index, entry.Index}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			mf := NewMIFunction()
			blocks, wantIdom := tt.build(mf)

			dt := BuildDominatorTree(mf)

			for i, b := range blocks {
				assert.Equalf(t, wantIdom[i], dt.ImmediateDominator(b.Index), "block %d (%s)", b.Index, tt.name)
			}
			assert.Falsef(t, dt.Dominates(blocks[0].Index, blocks[0].Index), "%s: Dominates should be irreflexive", tt.name)
			assert.Truef(t, dt.DominatesOrEqual(blocks[0].Index, blocks[0].Index), "%s: DominatesOrEqual should be reflexive", tt.name)
		})
	}
}

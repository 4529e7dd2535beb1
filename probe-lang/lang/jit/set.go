// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import mapset "github.com/deckarep/golang-set"

// mapSetT is the integer-keyed set type used by dominance-frontier and
// loop-exit bookkeeping, backed by github.com/deckarep/golang-set the same
// way miner/worker.go uses it for ancestor/family/uncle sets. Ground:
// SPEC_FULL.md §3.
type mapSetT = mapset.Set

func newMapSet() mapSetT { return mapset.NewSet() }

func intSliceToSet(xs []int) mapSetT {
	s := newMapSet()
	for _, x := range xs {
		s.Add(x)
	}
	return s
}

func setToSortedInts(s mapSetT) []int {
	out := make([]int, 0, s.Cardinality())
	for _, v := range s.ToSlice() {
		out = append(out, v.(int))
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "github.com/probechain/go-probe/log"

// InvalidIndex marks an unreachable block or the dominator-tree root in
// DominatorTree.idom. Ground: spec.md §3 "DominatorTree data".
const InvalidIndex = -1

// blockGraph is the minimal view over MIBlock the dominator tree needs,
// kept abstract so domtree.go has no compile-time dependency on how the
// scheduler built its CFG.
type blockGraph interface {
	BlockCount() int
	Preds(i int) []int
	Succs(i int) []int
	IsDeoptPred(i int) bool // true if block i should be skipped as a predecessor during DFS
}

// miBlockGraph adapts an *MIFunction into blockGraph.
type miBlockGraph struct{ f *MIFunction }

func (g miBlockGraph) BlockCount() int { return len(g.f.Blocks) }
func (g miBlockGraph) Preds(i int) []int {
	out := make([]int, len(g.f.Blocks[i].Preds))
	for j, p := range g.f.Blocks[i].Preds {
		out[j] = p.Index
	}
	return out
}
func (g miBlockGraph) Succs(i int) []int {
	out := make([]int, len(g.f.Blocks[i].Succs))
	for j, s := range g.f.Blocks[i].Succs {
		out[j] = s.Index
	}
	return out
}
func (g miBlockGraph) IsDeoptPred(i int) bool { return g.f.Blocks[i].IsDeoptBlock }

var domtreeLog = log.New("module", "jit/domtree")

// DominatorTree holds the immediate-dominator relation for one MI CFG,
// computed by Lengauer–Tarjan. Ground: spec.md §4.3.
type DominatorTree struct {
	g    blockGraph
	idom []int
	depth []int // lazily computed, -1 until known

	// transient LT state, kept for calculateDFNodeIterOrder reuse
	dfnum  []int
	vertex []int
}

// BuildDominatorTree computes the dominator tree for f's CFG, rooted at
// block 0 (f.Start), per spec.md §4.3.
func BuildDominatorTree(f *MIFunction) *DominatorTree {
	return buildDominatorTree(miBlockGraph{f})
}

func buildDominatorTree(g blockGraph) *DominatorTree {
	n := g.BlockCount()
	dt := &DominatorTree{g: g, idom: make([]int, n), depth: make([]int, n)}
	for i := range dt.idom {
		dt.idom[i] = InvalidIndex
		dt.depth[i] = -1
	}
	if n == 0 {
		return dt
	}

	dfnum := make([]int, n)
	vertex := make([]int, 0, n)
	parent := make([]int, n)
	semi := make([]int, n)
	ancestor := make([]int, n)
	best := make([]int, n)
	samedom := make([]int, n)
	bucket := make([][]int, n)
	for i := range dfnum {
		dfnum[i] = -1
		ancestor[i] = InvalidIndex
		parent[i] = InvalidIndex
		samedom[i] = InvalidIndex
	}

	// Step 1: iterative DFS from block 0, skipping deopt-flagged
	// predecessors so unreachable handlers do not corrupt the tree.
	type frame struct {
		node int
		next int
	}
	stack := []frame{{0, 0}}
	dfnum[0] = 0
	vertex = append(vertex, 0)
	semi[0] = 0
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := g.Succs(top.node)
		advanced := false
		for top.next < len(succs) {
			s := succs[top.next]
			top.next++
			if g.IsDeoptPred(s) {
				continue
			}
			if dfnum[s] == -1 {
				dfnum[s] = len(vertex)
				vertex = append(vertex, s)
				semi[s] = dfnum[s]
				parent[s] = top.node
				stack = append(stack, frame{s, 0})
				advanced = true
				break
			}
		}
		if !advanced && top.next >= len(succs) {
			stack = stack[:len(stack)-1]
		}
	}
	dt.dfnum = dfnum
	dt.vertex = vertex

	var ancestorWithLowestSemi func(v int) int
	ancestorWithLowestSemi = func(v int) int {
		if ancestor[v] == InvalidIndex {
			return v
		}
		if ancestor[ancestor[v]] != InvalidIndex {
			u := ancestorWithLowestSemi(ancestor[v])
			if dfnum[semi[u]] < dfnum[semi[best[v]]] {
				best[v] = u
			}
			ancestor[v] = ancestor[ancestor[v]]
		}
		return best[v]
	}
	link := func(p, c int) {
		ancestor[c] = p
		best[c] = c
	}

	// Step 2: process blocks in reverse DFS order.
	for i := len(vertex) - 1; i >= 1; i-- {
		n := vertex[i]
		for _, v := range g.Preds(n) {
			if dfnum[v] == -1 {
				continue // unreachable predecessor
			}
			var u int
			if dfnum[v] <= dfnum[n] {
				u = v
			} else {
				u = ancestorWithLowestSemi(v)
			}
			if dfnum[semi[u]] < dfnum[semi[n]] {
				semi[n] = semi[u]
			}
		}
		bucket[semi[n]] = append(bucket[semi[n]], n)
		link(parent[n], n)
		for _, v := range bucket[parent[n]] {
			u := ancestorWithLowestSemi(v)
			if semi[u] == semi[v] {
				dt.idom[v] = parent[n]
			} else {
				samedom[v] = u
			}
		}
		bucket[parent[n]] = nil
	}

	// Step 3: resolve samedom chains.
	for i := 1; i < len(vertex); i++ {
		n := vertex[i]
		if samedom[n] != InvalidIndex {
			dt.idom[n] = dt.idom[samedom[n]]
		}
	}
	dt.idom[0] = InvalidIndex

	domtreeLog.Trace("built dominator tree", "blocks", n, "reachable", len(vertex))
	return dt
}

// Dominates reports whether a dominates b (reflexively false: dominates(a,a)
// is false per spec.md §8's idempotence property — use a==b callers
// explicitly if they want reflexive dominance).
func (dt *DominatorTree) Dominates(a, b int) bool {
	if a == b {
		return false
	}
	for cur := dt.idom[b]; cur != InvalidIndex; cur = dt.idom[cur] {
		if cur == a {
			return true
		}
	}
	return false
}

// DominatesOrEqual is the reflexive variant used internally by dominance-
// frontier and loop-hoisting computations.
func (dt *DominatorTree) DominatesOrEqual(a, b int) bool {
	return a == b || dt.Dominates(a, b)
}

func (dt *DominatorTree) ImmediateDominator(i int) int { return dt.idom[i] }

// CalculateNodeDepths computes, lazily and memoized, the dominator-tree
// depth of every block (depth 0 for block 0 and any unreachable block).
func (dt *DominatorTree) CalculateNodeDepths() []int {
	var depthOf func(i int) int
	depthOf = func(i int) int {
		if dt.depth[i] >= 0 {
			return dt.depth[i]
		}
		if dt.idom[i] == InvalidIndex {
			dt.depth[i] = 0
			return 0
		}
		d := depthOf(dt.idom[i]) + 1
		dt.depth[i] = d
		return d
	}
	for i := range dt.depth {
		depthOf(i)
	}
	return dt.depth
}

// CalculateDFNodeIterOrder returns block indices sorted by decreasing
// dominator-tree depth (leaves first, ties arbitrary but stable).
func (dt *DominatorTree) CalculateDFNodeIterOrder() []int {
	depths := dt.CalculateNodeDepths()
	order := make([]int, len(depths))
	for i := range order {
		order[i] = i
	}
	// Stable insertion sort: the block count is small (one per basic
	// block in a single function), and stability keeps output
	// deterministic across runs, matching spec.md §5's byte-stability
	// requirement.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && depths[order[j-1]] < depths[order[j]]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
	return order
}

// DominanceFrontier computes DF(n) for every reachable block n, via a
// post-order traversal of the dominator tree (children first): seed DF(n)
// with n's CFG successors whose idom != n, then union DF(c) for each
// dominator-child c, keeping only y such that y == n or n does not
// dominate y. Ground: spec.md §4.3, wired to github.com/deckarep/golang-set
// per SPEC_FULL.md §3.
func (dt *DominatorTree) DominanceFrontier() map[int]mapSetT {
	n := dt.g.BlockCount()
	children := make([][]int, n)
	for i := 0; i < n; i++ {
		if p := dt.idom[i]; p != InvalidIndex {
			children[p] = append(children[p], i)
		}
	}
	df := make(map[int]mapSetT, n)

	var visit func(b int)
	visit = func(b int) {
		set := newMapSet()
		for _, s := range dt.g.Succs(b) {
			if dt.idom[s] != b {
				set.Add(s)
			}
		}
		for _, c := range children[b] {
			visit(c)
			for _, y := range df[c].ToSlice() {
				yi := y.(int)
				if yi == b || !dt.Dominates(b, yi) {
					set.Add(yi)
				}
			}
		}
		df[b] = set
	}
	visit(0)
	return df
}

// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "github.com/probechain/go-probe/log"

var loopinfoLog = log.New("module", "jit/loopinfo")

// Loop is one natural loop: its header block index, its (possibly nil)
// parent loop, and the set of CFG edges leaving it. Ground: spec.md §4.4.
type Loop struct {
	Header int
	Parent *Loop
	blocks mapSetT // member block indices, including Header

	loopExits mapSetT // successor block indices outside this loop (and outside any subloop)
}

// Blocks returns the loop's member block indices (header included).
func (l *Loop) Blocks() []int { return setToSortedInts(l.blocks) }

// LoopExits returns the block indices this loop can exit to.
func (l *Loop) LoopExits() []int { return setToSortedInts(l.loopExits) }

// Contains reports whether block b is a member of l (directly, not via a
// subloop reference — callers walking containment should follow
// LoopInfo.loopHeaderFor instead).
func (l *Loop) Contains(b int) bool { return l.blocks.Contains(b) }

// LoopInfo classifies every block of an MI CFG into (isLoopHeader,
// containing loop, loop exits). Ground: spec.md §4.4.
type LoopInfo struct {
	dt *DominatorTree
	g  blockGraph

	loopHeaderFor map[int]*Loop // block index -> innermost containing loop (nil if not in any loop)
	isHeader      map[int]*Loop // block index -> the Loop it heads (nil if not a header)
}

// BuildLoopInfo runs loop detection over f's already-scheduled CFG, using
// dt (built over the same CFG by BuildDominatorTree). Ground: spec.md
// §4.4's back-edge/worklist algorithm, run in the §4.3 DFS-iteration
// order.
func BuildLoopInfo(f *MIFunction, dt *DominatorTree) *LoopInfo {
	return buildLoopInfo(miBlockGraph{f}, dt)
}

func buildLoopInfo(g blockGraph, dt *DominatorTree) *LoopInfo {
	li := &LoopInfo{
		dt:            dt,
		g:             g,
		loopHeaderFor: make(map[int]*Loop),
		isHeader:      make(map[int]*Loop),
	}

	order := dt.CalculateDFNodeIterOrder()
	// Process headers in the same DFS-iteration order the dominator tree
	// exposes; back-edges are discovered per-block regardless of order, but
	// using this order keeps nested-loop merging consistent with §4.3's
	// contract that callers drive loop discovery from it.
	for _, b := range order {
		var backEdges []int
		for _, p := range g.Preds(b) {
			if dt.Dominates(b, p) || p == b {
				backEdges = append(backEdges, p)
			}
		}
		if len(backEdges) == 0 {
			continue
		}
		header := li.isHeader[b]
		if header == nil {
			header = &Loop{Header: b, blocks: newMapSet()}
			header.blocks.Add(b)
			li.isHeader[b] = header
			li.loopHeaderFor[b] = header
		}

		worklist := append([]int(nil), backEdges...)
		for len(worklist) > 0 {
			p := worklist[0]
			worklist = worklist[1:]

			existing := li.loopHeaderFor[p]
			if existing != nil {
				// p already belongs to a subloop: walk to its outermost
				// containing loop and make that a subloop of header (unless
				// it already is header itself).
				outer := existing
				for outer.Parent != nil {
					outer = outer.Parent
				}
				if outer == header {
					continue
				}
				outer.Parent = header
				continue
			}

			li.loopHeaderFor[p] = header
			header.blocks.Add(p)
			if p == header.Header {
				continue
			}
			for _, pp := range g.Preds(p) {
				worklist = append(worklist, pp)
			}
		}
	}

	// Two back-edges into the same header must already have produced one
	// Loop (isHeader memoizes by block), never two — enforced above by
	// reusing li.isHeader[b].

	// Finally compute loop exits: for each block in a loop (or a subloop),
	// each CFG successor not in that loop nor a subloop of it is an exit.
	for _, header := range li.isHeader {
		li.computeExits(header)
	}

	loopinfoLog.Trace("built loop info", "headers", len(li.isHeader))
	return li
}

// loopContains reports whether block b is a member of l or any of l's
// transitive subloops.
func (li *LoopInfo) loopContains(l *Loop, b int) bool {
	for cur := li.loopHeaderFor[b]; cur != nil; cur = cur.Parent {
		if cur == l {
			return true
		}
	}
	return l.blocks.Contains(b)
}

func (li *LoopInfo) computeExits(l *Loop) {
	if l.loopExits != nil {
		return
	}
	l.loopExits = newMapSet()
	for _, b := range l.Blocks() {
		for _, s := range li.g.Succs(b) {
			if !li.loopContains(l, s) {
				l.loopExits.Add(s)
			}
		}
	}
	// Also fold in exits from any subloop that isn't itself contained.
	for _, sub := range li.isHeader {
		if sub.Parent == l {
			li.computeExits(sub)
			for _, e := range sub.LoopExits() {
				if !li.loopContains(l, e) {
					l.loopExits.Add(e)
				}
			}
		}
	}
}

// LoopHeaderFor returns the innermost loop containing block b, or nil.
func (li *LoopInfo) LoopHeaderFor(b int) *Loop { return li.loopHeaderFor[b] }

// IsLoopHeader reports whether b heads a loop, and returns it.
func (li *LoopInfo) IsLoopHeader(b int) (*Loop, bool) {
	l, ok := li.isHeader[b]
	return l, ok
}

// Loops returns every loop li found, one entry per distinct header.
func (li *LoopInfo) Loops() []*Loop {
	out := make([]*Loop, 0, len(li.isHeader))
	for _, l := range li.isHeader {
		out = append(out, l)
	}
	return out
}

// blockOfNodes maps every node scheduled into mf back to the index of the
// block it was placed in, the shape ExitPhiCandidates needs to tell an
// inside-loop definition from an outside-loop use.
func blockOfNodes(mf *MIFunction) map[*Node]int {
	out := make(map[*Node]int)
	for _, b := range mf.Blocks {
		for instr := b.first; instr != nil; instr = instr.next {
			out[instr.Node] = b.Index
		}
	}
	return out
}

// ExitPhiCandidates returns, for loop, the nodes placed (per blockOf) in a
// block of the loop or of one of its subloops that have at least one user
// placed in a block outside it — bookkeeping a later LICM/SSA-repair pass
// (out of scope here) would need before hoisting. Nodes of every opcode are
// reported, not only Phi/EffectPhi; f is not consulted, and the order of
// the result is not defined. Supplemental: grounded on
// original_source/src/qml/jit/qv4loopinfo.cpp's comments about dominance-
// frontier reuse for loop-carried values; see SPEC_FULL.md §5.
func (li *LoopInfo) ExitPhiCandidates(loop *Loop, f *Function, blockOf map[*Node]int) []*Node {
	var out []*Node
	seen := map[*Node]bool{}
	// Walk every node the function knows about once; for each, check that
	// it is defined in a loop block and has at least one use whose owning
	// block lies outside the loop.
	for n, bi := range blockOf {
		if !li.loopContains(loop, bi) {
			continue
		}
		outside := false
		n.Uses(func(user *Node, _ int) {
			if ub, ok := blockOf[user]; ok && !li.loopContains(loop, ub) {
				outside = true
			}
		})
		if outside && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

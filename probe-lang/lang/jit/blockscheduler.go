// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "fmt"

// schedGroup is one postponed-block stack: either the top-level group (no
// enclosing loop) or the group opened for one natural loop's body. Ground:
// spec.md §4.7 "a work-stack per loop group plus a global stack of pending
// groups".
type schedGroup struct {
	postponed []*MIBlock
}

func (g *schedGroup) push(b *MIBlock) { g.postponed = append(g.postponed, b) }

func (g *schedGroup) pop() *MIBlock {
	n := len(g.postponed)
	b := g.postponed[n-1]
	g.postponed = g.postponed[:n-1]
	return b
}

// ScheduleBlocks reorders f.Blocks per spec.md §4.7's contract: block 0
// first, loop bodies contiguous with nested loops fully nested, exception
// targets after their non-exception siblings, deopt blocks last in original
// order. dt and li must already describe f's (pre-reorder) CFG. Mutates
// f.Blocks in place and calls f.Renumber.
func ScheduleBlocks(f *MIFunction, dt *DominatorTree, li *LoopInfo) {
	n := len(f.Blocks)
	if n == 0 {
		return
	}

	emitted := make([]bool, n)
	order := make([]*MIBlock, 0, n)
	emit := func(b *MIBlock) {
		order = append(order, b)
		emitted[b.Index] = true
	}

	// emittable reports whether every predecessor of b that isn't a
	// back-edge into b and isn't deopt-flagged has already been emitted.
	emittable := func(b *MIBlock) bool {
		for _, p := range b.Preds {
			if p.IsDeoptBlock || dt.DominatesOrEqual(b.Index, p.Index) {
				continue
			}
			if !emitted[p.Index] {
				return false
			}
		}
		return true
	}

	// loopKeyFor returns the Loop whose group a block belongs in when
	// postponed: its own innermost containing loop, or — if the block is
	// itself a loop header — the loop ENCLOSING that one, since a header
	// opens its own group only once popped and emitted (step 4), never
	// before. nil means the top-level group.
	loopKeyFor := func(b *MIBlock) *Loop {
		if header, ok := li.IsLoopHeader(b.Index); ok {
			return header.Parent
		}
		return li.LoopHeaderFor(b.Index)
	}

	groups := map[*Loop]*schedGroup{nil: {}}
	current := groups[nil]
	groupOf := func(key *Loop) *schedGroup {
		g, ok := groups[key]
		if !ok {
			// A successor's enclosing loop group must already be open:
			// loop headers dominate every block in their body, so the
			// header is always popped (opening its group) before any
			// other loop member can be discovered as a successor.
			panic(&CompileFault{Reason: "jit: block scheduler: successor's loop group is not open"})
		}
		return g
	}

	// pushSuccessors postpones b's CFG successors into the right group,
	// non-exception ones on top of exception ones so pickNext (a LIFO pop)
	// tries non-exception successors first — the Contract's "exception
	// targets emitted after non-exception successors" requirement, which
	// takes precedence over the algorithm prose's push order where the two
	// read as in tension.
	pushSuccessors := func(b *MIBlock) {
		var nonExc, exc []*MIBlock
		for _, s := range b.Succs {
			if s.IsDeoptBlock {
				continue // appended separately, at the very end
			}
			if s.RegionNode != nil && s.RegionNode.Opcode() == OpOnException {
				exc = append(exc, s)
			} else {
				nonExc = append(nonExc, s)
			}
		}
		for _, s := range exc {
			groupOf(loopKeyFor(s)).push(s)
		}
		for _, s := range nonExc {
			groupOf(loopKeyFor(s)).push(s)
		}
	}

	emit(f.Start)
	pushSuccessors(f.Start)

	var loopGroupStack []*schedGroup
	var loopHeaderStack []*Loop
	var loopStartPos []int

	for {
		if len(current.postponed) == 0 {
			if len(loopGroupStack) == 0 {
				break
			}
			header := loopHeaderStack[len(loopHeaderStack)-1]
			loopHeaderStack = loopHeaderStack[:len(loopHeaderStack)-1]
			startPos := loopStartPos[len(loopStartPos)-1]
			loopStartPos = loopStartPos[:len(loopStartPos)-1]
			logBlockScheduler.Debug("loop group drained", "header", header.Header, "loopStart", startPos, "loopEnd", len(order)-1)
			current = loopGroupStack[len(loopGroupStack)-1]
			loopGroupStack = loopGroupStack[:len(loopGroupStack)-1]
			continue
		}

		cand := current.pop()
		if emitted[cand.Index] || !emittable(cand) {
			continue // already placed, or will be re-enqueued by a later predecessor
		}

		if header, ok := li.IsLoopHeader(cand.Index); ok {
			if _, open := groups[header]; !open {
				loopGroupStack = append(loopGroupStack, current)
				loopHeaderStack = append(loopHeaderStack, header)
				loopStartPos = append(loopStartPos, len(order))
				current = &schedGroup{}
				groups[header] = current
			}
		}

		emit(cand)
		pushSuccessors(cand)
	}

	for _, b := range f.Blocks {
		if b.IsDeoptBlock && !emitted[b.Index] {
			emit(b)
		}
	}

	if len(order) != n {
		panic(&CompileFault{Reason: fmt.Sprintf("jit: block scheduler emitted %d of %d blocks", len(order), n)})
	}

	f.Blocks = order
	f.Renumber()
	logBlockScheduler.Debug("blocks scheduled", "blocks", n)
}

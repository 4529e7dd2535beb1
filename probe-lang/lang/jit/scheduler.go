// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "fmt"

// isControlChainNode reports the node kinds that form the control-flow
// skeleton the CFG builder walks; Phi/EffectPhi reference a Region as their
// control input too, but are never followed as part of a block's
// control-chain — they are data, scheduled into their Region's block like
// any other fixed node.
func isControlChainNode(n *Node) bool {
	switch n.Opcode() {
	case OpStart, OpEnd, OpRegion, OpJump, OpBranch, OpIfTrue, OpIfFalse,
		OpReturn, OpThrow, OpThrowFault, OpOnException, OpUnwindDispatch,
		OpHandleUnwind, OpCall:
		return true
	}
	return false
}

// isBlockStartOpcode identifies the node kinds the CFG builder treats as
// the first (fixed, unscheduled) node of a new MIBlock. Ground: spec.md
// §4.6 Step 1.
func isBlockStartOpcode(n *Node) bool {
	switch n.Opcode() {
	case OpStart, OpRegion, OpOnException, OpIfTrue, OpIfFalse, OpHandleUnwind, OpEnd:
		return true
	}
	return false
}

// schedState is the per-node scratch record spec.md §4.6 asks for.
type schedState struct {
	minBlock    *MIBlock
	isFixed     bool
	block       *MIBlock // final assignment, set by schedule-late
	scheduled   bool
}

// scheduler holds every worklist and lookup table the node scheduler needs
// across its six steps.
type scheduler struct {
	f    *Function
	mi   *MIFunction
	dt   *DominatorTree
	li   *LoopInfo

	controlSucc map[*Node][]*Node
	blockOf     map[*Node]*MIBlock // control-chain node -> its MIBlock
	state       map[*Node]*schedState
	vreg        map[*Node]int
}

// ScheduleNodes runs spec.md §4.6's six steps over f's (already lowered)
// graph and returns the resulting MIFunction.
func ScheduleNodes(f *Function) *MIFunction {
	s := &scheduler{
		f:           f,
		mi:          NewMIFunction(),
		controlSucc: map[*Node][]*Node{},
		blockOf:     map[*Node]*MIBlock{},
		state:       map[*Node]*schedState{},
		vreg:        map[*Node]int{},
	}
	s.buildCFG()
	s.dt = BuildDominatorTree(s.mi)
	s.li = BuildLoopInfo(s.mi, s.dt)
	s.dt.CalculateNodeDepths()
	s.scheduleEarly()
	s.scheduleLate()
	s.sequenceBlocks()
	s.buildOperands()
	logScheduling.Debug("node scheduling complete", "blocks", len(s.mi.Blocks), "vregs", s.mi.VRegCount)
	return s.mi
}

// ---- Step 1: CFG build -----------------------------------------------

func (s *scheduler) buildCFG() {
	g := s.f.Graph

	// Collect every reachable node once; classify the control-chain subset
	// and build the forward control-successor map it implies.
	var chain []*Node
	walkAllNodes(g, func(n *Node) {
		s.state[n] = &schedState{}
		if isControlChainNode(n) {
			chain = append(chain, n)
		}
	})
	for _, n := range chain {
		for i := 0; i < n.ControlInputCount(); i++ {
			in := n.ControlInput(i)
			if in != nil && isControlChainNode(in) {
				s.controlSucc[in] = append(s.controlSucc[in], n)
			}
		}
	}

	isTerminator := func(n *Node) bool {
		switch n.Opcode() {
		case OpJump, OpBranch, OpReturn, OpThrow, OpThrowFault, OpUnwindDispatch, OpEnd:
			return true
		case OpCall:
			// Adapted from spec.md's ">= 3 effective control outputs":
			// this codebase forks at most one OnException edge off a
			// throwing Call, so a Call only ever has 1 (no handler) or 2
			// (handler present) live control uses.
			return len(s.controlSucc[n]) >= 2
		}
		return false
	}

	// Every edge in the control chain must land on a recognized
	// block-start node, and every recognized start must be reachable by
	// walking forward from its own predecessor without skipping over a
	// terminator. Two distinct gaps need patching, both grounded in
	// spec.md §4.6 "Jumps are forced in front of any non-terminator
	// control use" / "critical edges... split by inserting a Region-of-one
	// + Jump pair":
	//
	//   - terminator -> non-start successor (e.g. a throwing Call's
	//     "normal flow" edge landing directly on another pass-through
	//     Call): the successor has no recognized start to be discovered
	//     from, so splice in a Region-of-one the forward walk can begin
	//     at.
	//   - non-terminator start -> already-a-start successor (e.g. an
	//     IfTrue/IfFalse/HandleUnwind node merged straight into another
	//     Region with nothing between them, which the graph builder does
	//     routinely): the predecessor's own block never reaches a
	//     terminator, so splice in a bare Jump to close it.
	//
	// Processed over the original (chain, controlSucc) snapshot: each
	// edge's classification depends only on its own endpoints, which
	// splicing elsewhere never changes.
	type edge struct {
		n *Node
		i int
	}
	var toSplice []edge
	for _, n := range chain {
		nTerm := isTerminator(n)
		for i, u := range s.controlSucc[n] {
			uStart := isBlockStartOpcode(u)
			if nTerm != uStart {
				toSplice = append(toSplice, edge{n, i})
			}
		}
	}
	for _, e := range toSplice {
		n := e.n
		u := s.controlSucc[n][e.i]
		var mid *Node
		if isBlockStartOpcode(u) {
			// Trigger B: close n's own block with a Jump; u stays the
			// recognized start it already is.
			mid = g.NewNode(opJump(), nil, nil, []*Node{n}, nil)
		} else {
			// Trigger A: manufacture a recognized start for u to be
			// discovered from.
			mid = g.NewNodeWithSlack(opRegion(1), nil, nil, []*Node{n}, nil, 1)
		}
		// Only the control-input slot(s) that carried n are rerouted: a
		// Call can legitimately have n as both its effect and control
		// predecessor, and the effect edge must keep pointing at n.
		base := u.controlBase()
		for k := 0; k < u.ControlInputCount(); k++ {
			if u.ControlInput(k) == n {
				u.ReplaceInput(base+k, mid)
			}
		}
		s.state[mid] = &schedState{}
		s.controlSucc[mid] = []*Node{u}
		s.controlSucc[n][e.i] = mid
	}

	// Build one MIBlock per recognized start node, in a stable order
	// (Start first, then everything else by node id).
	var starts []*Node
	walkAllNodes(g, func(n *Node) {
		if isBlockStartOpcode(n) && s.blockOf[n] == nil {
			starts = append(starts, n)
		}
	})
	for i := 1; i < len(starts); i++ {
		for j := i; j > 0 && starts[j-1].ID() > starts[j].ID() && starts[j-1] != g.Start; j-- {
			starts[j-1], starts[j] = starts[j], starts[j-1]
		}
	}
	for i, n := range starts {
		if n == g.Start {
			starts[0], starts[i] = starts[i], starts[0]
			break
		}
	}
	for _, start := range starts {
		b := s.mi.AddBlock()
		b.RegionNode = start
		s.blockOf[start] = b
		s.state[start].isFixed = true
		s.state[start].block = b
	}

	// Walk each block's content chain from its start node to its
	// terminator, marking every intermediate node fixed-in-block.
	for _, start := range starts {
		b := s.blockOf[start]
		cur := start
		for {
			if isTerminator(cur) {
				break
			}
			next := s.controlSucc[cur]
			if len(next) != 1 {
				panic(&CompileFault{Reason: fmt.Sprintf("jit: node %d (%s) has %d control successors but is not a recognized terminator", cur.ID(), cur.Opcode(), len(next))})
			}
			cur = next[0]
			s.state[cur].isFixed = true
			s.state[cur].block = b
		}
	}

	// Wire block Preds/Succs by pulling each start's own control inputs in
	// index order, not by pushing successors in whatever order the starts
	// list happens to be visited: a Region/End's control-input index order
	// is the SSA predecessor order its Phi/EffectPhi value inputs already
	// commit to (verify.go enforces matching arity), and
	// phiOperandsForTarget resolves a Jump's contributed Phi input by
	// searching target.Preds for the Jump's own block — that search only
	// works if Preds[i] names the block that owns control input i.
	for _, start := range starts {
		b := s.blockOf[start]
		n := start.ControlInputCount()
		for i := 0; i < n; i++ {
			pred := start.ControlInput(i)
			if pred == nil {
				continue
			}
			pb := s.state[pred].block
			if pb == nil {
				panic(&CompileFault{Reason: fmt.Sprintf("jit: control predecessor %d of block start %d has no assigned block", pred.ID(), start.ID())})
			}
			b.Preds = append(b.Preds, pb)
			pb.AddSucc(b)
		}
	}

	// Block arguments: every live Phi at a Region-headed block becomes a
	// block argument, and each predecessor's terminator is (conceptually)
	// augmented with the corresponding input — recorded here as Args on
	// the successor block; MI operand creation reads them back off the
	// Phi nodes directly; no separate per-edge operand list is needed
	// since this scheduler doesn't split blocks further after this point.
	walkAllNodes(g, func(n *Node) {
		if n.Opcode() != OpPhi && n.Opcode() != OpEffectPhi {
			return
		}
		region := n.ControlInput(0)
		b, ok := s.blockOf[region]
		if !ok {
			return
		}
		s.state[n] = s.state[n]
		if s.state[n] == nil {
			s.state[n] = &schedState{}
		}
		s.state[n].isFixed = true
		s.state[n].block = b
		if n.Opcode() == OpPhi {
			b.Args = append(b.Args, n)
		}
	})

	logSchedulingCFG.Debug("CFG built", "blocks", len(s.mi.Blocks))
}

// ---- Step 3: schedule early -------------------------------------------

// scheduleEarly computes, for every non-fixed node, the deepest-dominator
// block among its value/effect input producers' minimum blocks. Fixed
// nodes are their own minimum block. Implemented as a memoized recursive
// walk rather than spec.md's explicit re-enqueue worklist: the value/effect
// subgraph feeding any non-Phi node is acyclic (Phis are always fixed, so
// recursion bottoms out there), making the two formulations equivalent.
func (s *scheduler) scheduleEarly() {
	var visit func(n *Node) *MIBlock
	visit = func(n *Node) *MIBlock {
		st := s.state[n]
		if st.minBlock != nil {
			return st.minBlock
		}
		if st.isFixed {
			st.minBlock = st.block
			return st.block
		}
		switch n.Opcode() {
		case OpConstant, OpParameter, OpVM, OpFrame, OpFuncRef:
			st.minBlock = s.mi.Start
			return st.minBlock
		}
		best := s.mi.Start
		bestDepth := -1
		consider := func(in *Node) {
			if in == nil {
				return
			}
			b := visit(in)
			d := s.dt.CalculateNodeDepths()[b.Index]
			if d > bestDepth {
				bestDepth = d
				best = b
			}
		}
		for i := 0; i < n.ValueInputCount(); i++ {
			consider(n.ValueInput(i))
		}
		for i := 0; i < n.EffectInputCount(); i++ {
			consider(n.EffectInput(i))
		}
		if n.HasFrameStateInput() {
			consider(n.FrameStateInput())
		}
		st.minBlock = best
		return best
	}
	walkAllNodes(s.f.Graph, func(n *Node) { visit(n) })
}

// ---- Step 4: schedule late ---------------------------------------------

// scheduleLate assigns every non-fixed node its final block: the common
// dominator of all its live uses (Phi uses resolve to the contributing
// predecessor block), subject to loop hoisting and never below minBlock.
func (s *scheduler) scheduleLate() {
	uses := s.collectUses()

	var visit func(n *Node) *MIBlock
	visiting := map[*Node]bool{}
	visit = func(n *Node) *MIBlock {
		st := s.state[n]
		if st.block != nil {
			return st.block
		}
		if st.isFixed {
			return st.block
		}
		if visiting[n] {
			// A value/effect cycle can only pass through a fixed node in
			// this IR (Phi/EffectPhi); reaching back here means the use
			// graph itself is malformed.
			panic(&CompileFault{Reason: fmt.Sprintf("jit: scheduling cycle at node %d", n.ID())})
		}
		visiting[n] = true
		defer delete(visiting, n)

		var lca *MIBlock
		for _, u := range uses[n] {
			ub := s.useBlock(u, n, visit)
			if ub == nil {
				continue
			}
			if lca == nil {
				lca = ub
			} else {
				lca = s.commonDominator(lca, ub)
			}
		}
		if lca == nil {
			lca = st.minBlock
		}

		candidate := lca
		for {
			header := s.li.LoopHeaderFor(candidate.Index)
			if header == nil || s.loopDepth(candidate.Index) <= s.loopDepth(st.minBlock.Index) {
				break
			}
			preheader := s.preheaderOf(header)
			if preheader == nil || !s.dominatesAllUses(preheader, uses[n], n, visit) {
				break
			}
			if !s.dt.DominatesOrEqual(preheader.Index, st.minBlock.Index) {
				break
			}
			candidate = preheader
		}

		st.block = candidate
		return candidate
	}

	walkAllNodes(s.f.Graph, func(n *Node) {
		if !s.state[n].isFixed {
			visit(n)
		}
	})
}

// useEdge is one (user, value-or-effect-input-index) pair.
type useEdge struct {
	user *Node
	idx  int // index within the user's value-input list
	kind int // 0 = value input, 1 = effect input, 2 = frame-state input
}

func (s *scheduler) collectUses() map[*Node][]useEdge {
	out := map[*Node][]useEdge{}
	walkAllNodes(s.f.Graph, func(user *Node) {
		for i := 0; i < user.ValueInputCount(); i++ {
			if in := user.ValueInput(i); in != nil {
				out[in] = append(out[in], useEdge{user, i, 0})
			}
		}
		for i := 0; i < user.EffectInputCount(); i++ {
			if in := user.EffectInput(i); in != nil {
				out[in] = append(out[in], useEdge{user, i, 1})
			}
		}
		if user.HasFrameStateInput() {
			if in := user.FrameStateInput(); in != nil {
				out[in] = append(out[in], useEdge{user, 0, 2})
			}
		}
	})
	return out
}

// useBlock resolves one use edge to the block its contribution is live in:
// for a Phi/EffectPhi user, that's the predecessor block feeding the
// matching input slot, not the Phi's own (Region-headed) block.
func (s *scheduler) useBlock(e useEdge, of *Node, visit func(*Node) *MIBlock) *MIBlock {
	user := e.user
	if user.Opcode() == OpPhi || user.Opcode() == OpEffectPhi {
		region := user.ControlInput(0)
		b := s.blockOf[region]
		if b == nil || e.idx >= len(b.Preds) {
			return s.state[user].block
		}
		return b.Preds[e.idx]
	}
	ub := s.state[user].block
	if ub == nil {
		ub = visit(user)
	}
	return ub
}

func (s *scheduler) commonDominator(a, b *MIBlock) *MIBlock {
	depths := s.dt.CalculateNodeDepths()
	for depths[a.Index] > depths[b.Index] {
		a = s.mi.Blocks[s.dt.ImmediateDominator(a.Index)]
	}
	for depths[b.Index] > depths[a.Index] {
		b = s.mi.Blocks[s.dt.ImmediateDominator(b.Index)]
	}
	for a.Index != b.Index {
		a = s.mi.Blocks[s.dt.ImmediateDominator(a.Index)]
		b = s.mi.Blocks[s.dt.ImmediateDominator(b.Index)]
	}
	return a
}

func (s *scheduler) dominatesAllUses(b *MIBlock, edges []useEdge, of *Node, visit func(*Node) *MIBlock) bool {
	for _, e := range edges {
		ub := s.useBlock(e, of, visit)
		if ub == nil || !s.dt.DominatesOrEqual(b.Index, ub.Index) {
			return false
		}
	}
	return true
}

// loopDepth returns the loop-nesting depth of block b (0 outside any loop).
func (s *scheduler) loopDepth(b int) int {
	d := 0
	for l := s.li.LoopHeaderFor(b); l != nil; l = l.Parent {
		d++
	}
	return d
}

// preheaderOf returns header's unique non-back-edge predecessor block, or
// nil if the loop has more than one (irreducible — no hoisting).
func (s *scheduler) preheaderOf(header *Loop) *MIBlock {
	hb := s.mi.Blocks[header.Header]
	var pre *MIBlock
	for _, p := range hb.Preds {
		if s.dt.Dominates(hb.Index, p.Index) || p.Index == hb.Index {
			continue // back edge
		}
		if pre != nil {
			return nil
		}
		pre = p
	}
	return pre
}

// ---- Step 5: in-block sequencing --------------------------------------

// sequenceBlocks places every scheduled node into its assigned block,
// walking backwards from the terminator and inserting each node once all
// of its in-block consumers have already been placed (mirroring spec.md's
// "walk backwards... decrement unscheduledUses" description with an
// equivalent reverse-postorder-of-uses formulation).
func (s *scheduler) sequenceBlocks() {
	byBlock := map[*MIBlock][]*Node{}
	walkAllNodes(s.f.Graph, func(n *Node) {
		st := s.state[n]
		if st.block == nil || st.scheduled {
			return
		}
		switch n.Opcode() {
		case OpConstant, OpParameter, OpVM, OpFrame, OpFuncRef:
			return // operands, not instructions
		}
		// Block-start nodes are metadata (MIBlock.RegionNode), not
		// instructions — except End, which is simultaneously its
		// singleton block's start and its only (terminator) instruction.
		if isBlockStartOpcode(n) && n.Opcode() != OpEnd {
			return
		}
		// Phi/EffectPhi values are carried as block arguments (MIBlock.Args)
		// and supplied per-edge by the predecessor's Jump/UnwindDispatch
		// operand list; they are never their own instruction.
		if n.Opcode() == OpPhi || n.Opcode() == OpEffectPhi {
			return
		}
		byBlock[st.block] = append(byBlock[st.block], n)
	})

	for _, b := range s.mi.Blocks {
		nodes := byBlock[b]
		placed := map[*Node]bool{}
		order := s.topoSortBlock(nodes, placed)
		for _, n := range order {
			instr := &MIInstr{Node: n}
			b.Append(instr)
			s.state[n].scheduled = true
		}
	}
}

// topoSortBlock orders nodes (all pre-assigned to one block) so every
// value/effect/frame-state input that is itself in this block precedes its
// consumer.
func (s *scheduler) topoSortBlock(nodes []*Node, _ map[*Node]bool) []*Node {
	inBlock := map[*Node]bool{}
	for _, n := range nodes {
		inBlock[n] = true
	}
	var order []*Node
	visited := map[*Node]bool{}
	var visit func(n *Node)
	visit = func(n *Node) {
		if visited[n] {
			return
		}
		visited[n] = true
		for i := 0; i < n.ValueInputCount(); i++ {
			if in := n.ValueInput(i); in != nil && inBlock[in] {
				visit(in)
			}
		}
		for i := 0; i < n.EffectInputCount(); i++ {
			if in := n.EffectInput(i); in != nil && inBlock[in] {
				visit(in)
			}
		}
		if n.HasFrameStateInput() {
			if in := n.FrameStateInput(); in != nil && inBlock[in] {
				visit(in)
			}
		}
		order = append(order, n)
	}
	for _, n := range nodes {
		visit(n)
	}
	return order
}

// ---- Step 6: MI operand creation ---------------------------------------

func (s *scheduler) operandFor(n *Node) MIOperand {
	switch n.Opcode() {
	case OpConstant:
		return ConstOperand(n)
	case OpParameter:
		idx := n.Op().Payload().(ParameterPayload).Index
		return MIOperand{Kind: MIProbeStackSlot, Node: n, Slot: idx}
	case OpVM:
		return EngineOperand(n)
	case OpFrame:
		return CppFrameOperand(n)
	case OpFuncRef:
		return FunctionOperand(n)
	}
	if v, ok := s.vreg[n]; ok {
		return VRegOperand(n, v)
	}
	v := s.mi.NextVReg()
	s.vreg[n] = v
	return VRegOperand(n, v)
}

// buildOperands fills in Dest/Operands for every instruction, per spec.md
// §4.6 Step 6's per-opcode operand-count rules.
func (s *scheduler) buildOperands() {
	for _, b := range s.mi.Blocks {
		for instr := b.first; instr != nil; instr = instr.next {
			n := instr.Node
			if n.Op().ResultType() != TypeNone {
				dest := s.operandFor(n)
				instr.Dest = &dest
			}
			instr.Operands = s.operandsFor(n)
		}
	}
	logMI.Debug("MI operands built", "vregs", s.mi.VRegCount)
}

func (s *scheduler) operandsFor(n *Node) []MIOperand {
	switch n.Opcode() {
	case OpJump:
		return s.phiOperandsForTarget(n)
	case OpUnwindDispatch:
		return s.phiOperandsForTarget(n)
	case OpBranch:
		return []MIOperand{s.operandFor(n.ValueInput(0))}
	case OpReturn:
		return []MIOperand{s.operandFor(n.ValueInput(0))}
	}
	out := make([]MIOperand, 0, n.ValueInputCount())
	for i := 0; i < n.ValueInputCount(); i++ {
		out = append(out, s.operandFor(n.ValueInput(i)))
	}
	return out
}

// phiOperandsForTarget returns one operand per live Phi at the block this
// Jump/UnwindDispatch targets, in the order the target's predecessor list
// places this block's successor edge.
func (s *scheduler) phiOperandsForTarget(n *Node) []MIOperand {
	succs := s.controlSucc[n]
	if len(succs) == 0 {
		return nil
	}
	target, ok := s.blockOf[succs[0]]
	if !ok {
		return nil
	}
	predIdx := -1
	from := s.state[n].block
	for i, p := range target.Preds {
		if p == from {
			predIdx = i
			break
		}
	}
	if predIdx < 0 {
		return nil
	}
	out := make([]MIOperand, 0, len(target.Args))
	for _, phi := range target.Args {
		out = append(out, s.operandFor(phi.ValueInput(predIdx)))
	}
	return out
}

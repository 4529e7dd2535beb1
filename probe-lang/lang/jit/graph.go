// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "github.com/holiman/uint256"

// Graph is the sea-of-nodes IR for one Function: it owns the Pool, the
// monotonic node-id counter, a handful of interned constants, and the
// designated Start/VM/Frame/FuncRef/End/InitialFrameState nodes. Ground:
// spec.md §3 "Graph".
type Graph struct {
	pool   *Pool
	nextID int

	Start             *Node
	VM                *Node
	Frame             *Node
	FuncRef           *Node
	End               *Node
	InitialFrameState *Node

	constUndefined *Node
	constEmpty     *Node
	constNull      *Node
	constTrue      *Node
	constFalse     *Node

	endInputs []*Node // control edges queued for End, finalized by SealEnd
}

// NewGraph creates an empty Graph with its Start/VM/Frame/FuncRef trio
// already built (they have no inputs and are referenced throughout
// compilation).
func NewGraph() *Graph {
	g := &Graph{pool: NewPool()}
	g.Start = g.newNode(opStart(), nil, 0)
	g.VM = g.newNode(opVM(), nil, 0)
	g.Frame = g.newNode(opFrame(), nil, 0)
	g.FuncRef = g.newNode(opFuncRef(), nil, 0)
	return g
}

// newNode allocates a Node for op with the given explicit inputs (in
// [value|effect|control|framestate] order) and capHint extra input slack
// reserved up front — ground: spec.md §4.1 "capacity hint flag at
// construction to allocate slack up front".
func (g *Graph) newNode(op *Operation, inputs []*Node, capHint int) *Node {
	n := g.pool.alloc()
	n.id = g.nextID
	g.nextID++
	n.op = op
	n.graph = g
	n.inputs = make([]Use, len(inputs), len(inputs)+capHint)
	n.inputs = n.inputs[:len(inputs)]
	for i, in := range inputs {
		n.inputs[i].user = n
		n.inputs[i].index = i
		if in != nil {
			n.inputs[i].link(in)
		}
	}
	return n
}

// NewNode is the builder-facing entry point: it composes value/effect/
// control/frameState inputs into the single flat slice the Operation's
// layout expects.
func (g *Graph) NewNode(op *Operation, values, effects, controls []*Node, frameState *Node) *Node {
	total := len(values) + len(effects) + len(controls)
	if op.flags.HasFrameStateInput() {
		total++
	}
	inputs := make([]*Node, 0, total)
	inputs = append(inputs, values...)
	inputs = append(inputs, effects...)
	inputs = append(inputs, controls...)
	if op.flags.HasFrameStateInput() {
		inputs = append(inputs, frameState)
	}
	return g.newNode(op, inputs, 0)
}

// NewNodeWithSlack is NewNode plus extra pre-reserved control-input slack,
// for Region/Phi/EffectPhi nodes the builder expects to grow as more
// predecessors are discovered.
func (g *Graph) NewNodeWithSlack(op *Operation, values, effects, controls []*Node, frameState *Node, slack int) *Node {
	n := g.NewNode(op, values, effects, controls, frameState)
	if slack > 0 {
		// NewNode already linked each slot into its input's use list, so
		// every slot is unlinked and re-linked at its new address, the same
		// way appendInput moves slots when it reallocates.
		grown := make([]Use, len(n.inputs), len(n.inputs)+slack)
		for i := range n.inputs {
			inp := n.inputs[i].input
			n.inputs[i].unlink()
			grown[i].user = n
			grown[i].index = i
			if inp != nil {
				grown[i].link(inp)
			}
		}
		n.inputs = grown
	}
	return n
}

// AppendControlInput appends one more control-edge input to n (used when a
// Region/Phi/EffectPhi gains another predecessor).
func (n *Node) AppendControlInput(v *Node) {
	n.appendInput(v)
	n.op = variadicControlOp(n.op.opcode, n.op.valueIn, n.op.effectIn, n.op.controlIn+1, n.op.resultType, n.op.flags)
}

// AppendValueInput appends one more value-edge input (used when a Phi
// gains another predecessor's value, or an UnwindDispatch/Jump gains a
// phi-carrying operand).
func (n *Node) AppendValueInput(v *Node) {
	// Value inputs must stay contiguous at the front of inputs; since a
	// Phi/EffectPhi/Region-adjacent node's effect/control inputs follow
	// immediately after, inserting a value input means shifting those over.
	n.insertInput(n.valueBase()+n.op.valueIn, v)
	n.op = variadicControlOp(n.op.opcode, n.op.valueIn+1, n.op.effectIn, n.op.controlIn, n.op.resultType, n.op.flags)
}

// AppendEffectInput appends one more effect-edge input (used when an
// EffectPhi gains another predecessor's incoming effect chain).
func (n *Node) AppendEffectInput(v *Node) {
	n.insertInput(n.effectBase()+n.op.effectIn, v)
	n.op = variadicControlOp(n.op.opcode, n.op.valueIn, n.op.effectIn+1, n.op.controlIn, n.op.resultType, n.op.flags)
}

// insertInput inserts v at position i, shifting subsequent slots right by
// one and fixing up their use-list membership (the slot addresses of every
// element at or after i change).
func (n *Node) insertInput(i int, v *Node) {
	n.appendInput(nil) // grow by one, handling reallocation/relinking
	for j := len(n.inputs) - 1; j > i; j-- {
		inp := n.inputs[j-1].input
		n.inputs[j-1].unlink()
		n.inputs[j].index = j
		if inp != nil {
			n.inputs[j].link(inp)
		}
	}
	n.inputs[i].index = i
	if v != nil {
		n.inputs[i].link(v)
	}
}

// ---- Interned constants -------------------------------------------------

func (g *Graph) ConstUndefined() *Node {
	if g.constUndefined == nil {
		g.constUndefined = g.NewNode(opConstant(nil, TypeUndefined), nil, nil, nil, nil)
	}
	return g.constUndefined
}

func (g *Graph) ConstEmpty() *Node {
	if g.constEmpty == nil {
		g.constEmpty = g.NewNode(opConstant(nil, TypeEmpty), nil, nil, nil, nil)
	}
	return g.constEmpty
}

func (g *Graph) ConstNull() *Node {
	if g.constNull == nil {
		g.constNull = g.NewNode(opConstant(nil, TypeNull), nil, nil, nil, nil)
	}
	return g.constNull
}

func (g *Graph) ConstBool(v bool) *Node {
	if v {
		if g.constTrue == nil {
			g.constTrue = g.NewNode(opConstant(true, TypeBool), nil, nil, nil, nil)
		}
		return g.constTrue
	}
	if g.constFalse == nil {
		g.constFalse = g.NewNode(opConstant(false, TypeBool), nil, nil, nil, nil)
	}
	return g.constFalse
}

// ConstWord creates a fresh (non-interned — each use site gets its own
// node, per spec.md §3) Constant node for a 64-bit register value. A
// Number-typed constant is PROBE's u256 word, not a bare register
// bookkeeping value, so its payload is promoted to a *uint256.Int (the
// same representation core/vm/core/types use for EVM words) rather than
// carried as a raw uint64.
func (g *Graph) ConstWord(v uint64, t Type) *Node {
	if t == TypeNumber {
		return g.NewNode(opConstant(new(uint256.Int).SetUint64(v), t), nil, nil, nil, nil)
	}
	return g.NewNode(opConstant(v, t), nil, nil, nil, nil)
}

// QueueEndInput records a control exit (Return/Throw/unhandled-Throw/
// TailCall) to be wired into End once the whole function has been built.
func (g *Graph) QueueEndInput(exit *Node) {
	g.endInputs = append(g.endInputs, exit)
}

// SealEnd builds the End node from every queued exit. Ground: spec.md
// §4.2 "Termination... After decoding, End is built with all queued exits
// as inputs."
func (g *Graph) SealEnd() *Node {
	g.End = g.NewNode(opEnd(len(g.endInputs)), nil, nil, g.endInputs, nil)
	return g.End
}

// Function is the per-function compilation root: the source function
// reference, the Pool (owned transitively via Graph), the Graph itself,
// per-node auxiliary info, a string pool, and the list of unwind-label
// bytecode offsets. Ground: spec.md §3 "Function".
type Function struct {
	Source *BytecodeFunction
	Graph  *Graph

	nodeInfo map[int]*NodeInfo
	strings  []string
	stringOf map[string]int

	UnwindLabels []uint32 // bytecode offsets reachable only via unwind
}

// NodeInfo is the per-node auxiliary record (spec.md §3: "NodeInfo table
// mapping node id → {Type, current/next bytecode offsets}").
type NodeInfo struct {
	Type                Type
	CurrentByteOffset   uint32
	NextByteOffset      uint32
}

// NewFunction creates a Function with a fresh Graph.
func NewFunction(src *BytecodeFunction) *Function {
	return &Function{
		Source:   src,
		Graph:    NewGraph(),
		nodeInfo: make(map[int]*NodeInfo),
		stringOf: make(map[string]int),
	}
}

// Info returns (creating if necessary) the NodeInfo record for n.
func (f *Function) Info(n *Node) *NodeInfo {
	info, ok := f.nodeInfo[n.id]
	if !ok {
		info = &NodeInfo{Type: n.op.resultType}
		f.nodeInfo[n.id] = info
	}
	return info
}

// InternString adds a string to the function's string pool (if not
// already present) and returns its index.
func (f *Function) InternString(s string) int {
	if idx, ok := f.stringOf[s]; ok {
		return idx
	}
	idx := len(f.strings)
	f.strings = append(f.strings, s)
	f.stringOf[s] = idx
	return idx
}

func (f *Function) String(id int) string {
	if id < 0 || id >= len(f.strings) {
		return ""
	}
	return f.strings[id]
}

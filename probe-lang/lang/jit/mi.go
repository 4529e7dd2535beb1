// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

// MIOperandKind tags an MIOperand's shape. Ground: spec.md §3 "MIOperand".
type MIOperandKind int

const (
	MIConstant MIOperandKind = iota
	MIVirtualRegister
	MIEngineRegister
	MICppFrameRegister
	MIFunctionRegister
	MIProbeStackSlot
	MIBoolStackSlot
	MIJumpTarget
)

// MIOperand is a tagged union over the operand shapes an MIInstr can carry.
type MIOperand struct {
	Kind MIOperandKind
	Node *Node // the IR node this operand represents, for type queries

	VReg  int     // MIVirtualRegister
	Slot  int     // MIProbeStackSlot / MIBoolStackSlot
	Block *MIBlock // MIJumpTarget
}

func ConstOperand(n *Node) MIOperand            { return MIOperand{Kind: MIConstant, Node: n} }
func VRegOperand(n *Node, vreg int) MIOperand    { return MIOperand{Kind: MIVirtualRegister, Node: n, VReg: vreg} }
func EngineOperand(n *Node) MIOperand            { return MIOperand{Kind: MIEngineRegister, Node: n} }
func CppFrameOperand(n *Node) MIOperand          { return MIOperand{Kind: MICppFrameRegister, Node: n} }
func FunctionOperand(n *Node) MIOperand          { return MIOperand{Kind: MIFunctionRegister, Node: n} }
func ProbeStackSlotOperand(n *Node, s int) MIOperand { return MIOperand{Kind: MIProbeStackSlot, Node: n, Slot: s} }
func BoolStackSlotOperand(n *Node, s int) MIOperand  { return MIOperand{Kind: MIBoolStackSlot, Node: n, Slot: s} }
func JumpTargetOperand(b *MIBlock) MIOperand     { return MIOperand{Kind: MIJumpTarget, Block: b} }

// MIInstr is one scheduled instruction: the IR node it was built from, an
// optional destination operand, and its operand list. Ground: spec.md §3
// "MIInstr".
type MIInstr struct {
	Node     *Node
	Dest     *MIOperand
	Operands []MIOperand
	Position int // assigned at renumbering time

	block *MIBlock
	next  *MIInstr
	prev  *MIInstr
}

// MIBlock is a linearized basic block: an intrusive instruction list, block
// arguments (for Phi-headed blocks), and edge bookkeeping. Ground: spec.md
// §3 "MIBlock".
type MIBlock struct {
	Index   int
	Preds   []*MIBlock
	Succs   []*MIBlock
	Args    []*Node // live Phis this block is headed by

	IsDeoptBlock bool

	first *MIInstr
	last  *MIInstr
	count int

	// RegionNode, when set, is the sea-of-nodes control node this block was
	// built from (Region/Start/OnException/IfTrue/IfFalse/HandleUnwind) —
	// used by the scheduler's dominator-tree construction and by loop info.
	RegionNode *Node
}

// Append adds instr to the end of b's instruction list.
func (b *MIBlock) Append(instr *MIInstr) {
	instr.block = b
	instr.prev = b.last
	instr.next = nil
	if b.last != nil {
		b.last.next = instr
	} else {
		b.first = instr
	}
	b.last = instr
	b.count++
}

// Prepend adds instr to the front of b's instruction list (used when a
// synthetic Jump/Region-of-one must precede everything already placed).
func (b *MIBlock) Prepend(instr *MIInstr) {
	instr.block = b
	instr.next = b.first
	instr.prev = nil
	if b.first != nil {
		b.first.prev = instr
	} else {
		b.last = instr
	}
	b.first = instr
	b.count++
}

// InsertBefore inserts instr immediately before at, which must belong to b.
func (b *MIBlock) InsertBefore(at, instr *MIInstr) {
	if at == nil {
		b.Append(instr)
		return
	}
	instr.block = b
	instr.prev = at.prev
	instr.next = at
	if at.prev != nil {
		at.prev.next = instr
	} else {
		b.first = instr
	}
	at.prev = instr
	b.count++
}

// Instrs returns the block's instructions in order.
func (b *MIBlock) Instrs() []*MIInstr {
	out := make([]*MIInstr, 0, b.count)
	for i := b.first; i != nil; i = i.next {
		out = append(out, i)
	}
	return out
}

// Terminator returns the block's last instruction (its terminator once
// scheduling completes), or nil for an empty block.
func (b *MIBlock) Terminator() *MIInstr { return b.last }

func (b *MIBlock) AddSucc(s *MIBlock) { b.Succs = append(b.Succs, s) }
func (b *MIBlock) AddPred(p *MIBlock) { b.Preds = append(b.Preds, p) }

// MIFunction is the node scheduler's output: an ordered vector of blocks
// plus slot/vreg accounting. Ground: spec.md §3 "MIFunction".
type MIFunction struct {
	Blocks []*MIBlock

	VRegCount        int
	ProbeStackSlots  int
	BoolStackSlots   int

	Start *MIBlock // contract: Blocks[0] == Start

	// LoopExitPhis, keyed by loop header block index, holds the nodes
	// BuildLoopInfo's ExitPhiCandidates found live out of that loop —
	// bookkeeping a later LICM/SSA-repair pass would consult before
	// hoisting anything defined inside the loop.
	LoopExitPhis map[int][]*Node
}

func NewMIFunction() *MIFunction { return &MIFunction{} }

// AddBlock appends a freshly-created block with the next dense index.
func (f *MIFunction) AddBlock() *MIBlock {
	b := &MIBlock{Index: len(f.Blocks)}
	f.Blocks = append(f.Blocks, b)
	if len(f.Blocks) == 1 {
		f.Start = b
	}
	return b
}

// NextVReg allocates and returns a fresh dense virtual-register id.
func (f *MIFunction) NextVReg() int {
	v := f.VRegCount
	f.VRegCount++
	return v
}

func (f *MIFunction) BlockCount() int { return len(f.Blocks) }

// Renumber reassigns Blocks[i].Index = i (after the block scheduler
// reorders Blocks) and renumbers every instruction's Position densely
// within each block.
func (f *MIFunction) Renumber() {
	pos := 0
	for i, b := range f.Blocks {
		b.Index = i
		for instr := b.first; instr != nil; instr = instr.next {
			instr.Position = pos
			pos++
		}
	}
}

// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

// Use is one input slot of a Node: it names the consuming Node and the
// input index within that Node's operand array, and is threaded into the
// doubly-linked (via prev-pointer-to-slot) use list rooted at the Node it
// points to. Ground: spec.md §4.1 "Use list: singly-linked with
// pointer-to-previous-slot".
type Use struct {
	input *Node // the Node being used (nil if this slot is empty/dead)
	user  *Node // the Node that owns this slot
	index int   // index of this slot within user.inputs

	next *Use  // next use of `input`, or nil
	prev *Use  // previous use of `input`, or nil (head sentinel-free)
}

func (u *Use) Input() *Node { return u.input }
func (u *Use) User() *Node  { return u.user }
func (u *Use) Index() int   { return u.index }

// unlink removes u from its input's use list in O(1).
func (u *Use) unlink() {
	if u.input == nil {
		return
	}
	if u.prev != nil {
		u.prev.next = u.next
	} else {
		u.input.firstUse = u.next
	}
	if u.next != nil {
		u.next.prev = u.prev
	}
	u.next, u.prev = nil, nil
}

// link inserts u at the head of input's use list.
func (u *Use) link(input *Node) {
	u.input = input
	u.next = input.firstUse
	u.prev = nil
	if input.firstUse != nil {
		input.firstUse.prev = u
	}
	input.firstUse = u
}

// Node is a single sea-of-nodes graph node: an id, its current Operation,
// and a flat array of input Use slots laid out [value | effect | control |
// frame-state?], per spec.md §3.
type Node struct {
	id        int
	op        *Operation
	inputs    []Use
	firstUse  *Use // head of this node's use list (who uses ME)
	graph     *Graph
}

// ID returns the node's dense, monotonically-assigned id.
func (n *Node) ID() int { return n.id }

// Op returns the node's current operation.
func (n *Node) Op() *Operation { return n.op }

func (n *Node) Opcode() Opcode { return n.op.opcode }

// IsDead reports whether the node has been killed: spec.md §4.1 defines
// dead as "a node with at least one input slot whose first slot is null"
// (an empty operand array, post-kill, also counts as dead).
func (n *Node) IsDead() bool {
	return len(n.inputs) == 0 || n.inputs[0].input == nil
}

// InputCount returns the number of input slots currently allocated.
func (n *Node) InputCount() int { return len(n.inputs) }

// InputAt returns the Node at input slot i, or nil if empty.
func (n *Node) InputAt(i int) *Node { return n.inputs[i].input }

func (n *Node) valueBase() int   { return 0 }
func (n *Node) effectBase() int  { return n.op.valueIn }
func (n *Node) controlBase() int { return n.op.valueIn + n.op.effectIn }
func (n *Node) frameStateIdx() int {
	return n.op.valueIn + n.op.effectIn + n.op.controlIn
}

// ValueInputCount, EffectInputCount, ControlInputCount report the live
// arity of each edge kind (mirrors the owning Operation).
func (n *Node) ValueInputCount() int   { return n.op.valueIn }
func (n *Node) EffectInputCount() int  { return n.op.effectIn }
func (n *Node) ControlInputCount() int { return n.op.controlIn }

func (n *Node) ValueInput(i int) *Node   { return n.inputs[n.valueBase()+i].input }
func (n *Node) EffectInput(i int) *Node  { return n.inputs[n.effectBase()+i].input }
func (n *Node) ControlInput(i int) *Node { return n.inputs[n.controlBase()+i].input }

func (n *Node) HasFrameStateInput() bool { return n.op.flags.HasFrameStateInput() }

func (n *Node) FrameStateInput() *Node {
	if !n.HasFrameStateInput() {
		return nil
	}
	return n.inputs[n.frameStateIdx()].input
}

// ValueInputs returns a freshly-allocated slice of the node's value inputs,
// for callers (lowering, scheduling) that need to iterate without caring
// about the underlying Use-slot layout.
func (n *Node) ValueInputs() []*Node {
	out := make([]*Node, n.op.valueIn)
	for i := range out {
		out[i] = n.inputs[n.valueBase()+i].input
	}
	return out
}

func (n *Node) ControlInputs() []*Node {
	out := make([]*Node, n.op.controlIn)
	for i := range out {
		out[i] = n.inputs[n.controlBase()+i].input
	}
	return out
}

// Uses iterates live uses of n, calling fn(user, inputIndex) for each.
func (n *Node) Uses(fn func(user *Node, index int)) {
	for u := n.firstUse; u != nil; {
		next := u.next // fn may mutate the list via ReplaceInput
		fn(u.user, u.index)
		u = next
	}
}

// UseCount returns the number of live uses of n (O(uses)).
func (n *Node) UseCount() int {
	c := 0
	for u := n.firstUse; u != nil; u = u.next {
		c++
	}
	return c
}

// HasNoUses reports whether n is unused.
func (n *Node) HasNoUses() bool { return n.firstUse == nil }

// ReplaceInput rewires input slot i of n to point at newInput (possibly
// nil to kill the slot), updating both old and new use lists in O(1).
func (n *Node) ReplaceInput(i int, newInput *Node) {
	slot := &n.inputs[i]
	slot.unlink()
	if newInput != nil {
		slot.link(newInput)
	} else {
		slot.input = nil
	}
}

// ReplaceAllUsesWith rewires every use of n to point at r instead, per
// spec.md §4.1's replaceAllUsesWith algorithm: walk the use list, and for
// each use call the owning node's ReplaceInput.
func (n *Node) ReplaceAllUsesWith(r *Node) {
	for u := n.firstUse; u != nil; {
		next := u.next
		u.user.ReplaceInput(u.index, r)
		u = next
	}
}

// ReplaceUsesByEdgeKind rewires every use of n, choosing the replacement
// Node based on which edge kind (value/effect/control) the *using* node's
// Operation says that slot is, per spec.md §4.1.
func (n *Node) ReplaceUsesByEdgeKind(newValue, newEffect, newControl *Node) {
	for u := n.firstUse; u != nil; {
		next := u.next
		user, idx := u.user, u.index
		switch {
		case idx < user.effectBase():
			if newValue != nil {
				user.ReplaceInput(idx, newValue)
			}
		case idx < user.controlBase():
			if newEffect != nil {
				user.ReplaceInput(idx, newEffect)
			}
		default:
			if newControl != nil {
				user.ReplaceInput(idx, newControl)
			}
		}
		u = next
	}
}

// Kill marks n dead by nulling every input slot (but keeping the array, so
// IsDead's "first slot is null" check is valid and the node keeps its id).
func (n *Node) Kill() {
	for i := range n.inputs {
		n.ReplaceInput(i, nil)
	}
	if len(n.inputs) == 0 {
		n.inputs = []Use{{}}
	}
}

// TrimInputCount shrinks the input array to newCount, unlinking any
// discarded slots from their use lists first. newCount must not exceed the
// current length.
func (n *Node) TrimInputCount(newCount int) {
	for i := newCount; i < len(n.inputs); i++ {
		n.inputs[i].unlink()
	}
	n.inputs = n.inputs[:newCount]
}

// appendInput grows the input array by one slot bound to v. When spare
// capacity exists the backing array does not move, so existing Use slots
// (and the use-list pointers other nodes hold into them) stay valid as-is.
// When it must reallocate, every existing slot is unlinked from its
// input's use list and re-linked at its new address — ground: spec.md
// §4.1 "move existing Uses while preserving their list membership
// (re-insert into the same head-of-use list under the new address)".
func (n *Node) appendInput(v *Node) {
	oldLen := len(n.inputs)
	newLen := oldLen + 1
	if cap(n.inputs) >= newLen {
		n.inputs = n.inputs[:newLen]
	} else {
		old := n.inputs
		grown := make([]Use, newLen, newLen+3) // +3 slack hint, per spec.md §4.1
		for i := range old {
			inp := old[i].input
			old[i].unlink()
			grown[i].user = n
			grown[i].index = i
			if inp != nil {
				grown[i].link(inp)
			}
		}
		n.inputs = grown
	}
	slot := &n.inputs[newLen-1]
	slot.user = n
	slot.index = newLen - 1
	if v != nil {
		slot.link(v)
	}
}

func (n *Node) String() string {
	return n.op.String()
}

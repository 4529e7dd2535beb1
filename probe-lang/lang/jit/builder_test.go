// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

// TestBuildGraphStraightLineArithmetic builds a no-control-flow function
// (two constants, an add, a return) and checks the resulting graph shape
// matches the bytecode directly.
func TestBuildGraphStraightLineArithmetic(t *testing.T) {
	var code []byte
	code = append(code, encodeJump(vm.OpLoadConst, 0, 0)...) // r0 = const[0]
	code = append(code, encodeJump(vm.OpLoadConst, 1, 1)...) // r1 = const[1]
	code = append(code, encodeInstr(vm.OpAdd, 2, 0, 1)...)   // r2 = r0 + r1
	code = append(code, encodeInstr(vm.OpReturn, 2, 0, 0)...)

	bf := &BytecodeFunction{
		Name:          "straight",
		Code:          code,
		Constants:     []uint64{5, 7},
		RegisterCount: 3,
	}

	fn := BuildGraph(bf)

	end := fn.Graph.End
	if end == nil || end.ControlInputCount() != 1 {
		t.Fatalf("expected End to have exactly one queued exit")
	}
	ret := end.ControlInput(0)
	if ret.Opcode() != OpReturn {
		t.Fatalf("expected the queued exit to be a Return, got %v", ret.Opcode())
	}
	add := ret.ValueInput(0)
	if add.Opcode() != OpPROBEAdd {
		t.Fatalf("expected Return's value input to be a PROBEAdd, got %v", add.Opcode())
	}
	c1, c2 := add.ValueInput(0), add.ValueInput(1)
	if c1.Opcode() != OpConstant || c2.Opcode() != OpConstant {
		t.Fatalf("expected Add's operands to be constants, got %v %v", c1.Opcode(), c2.Opcode())
	}
	v1, _ := c1.Op().Payload().(ConstantPayload).Value.(*uint256.Int)
	v2, _ := c2.Op().Payload().(ConstantPayload).Value.(*uint256.Int)
	if v1 == nil || v2 == nil || v1.Uint64() != 5 || v2.Uint64() != 7 {
		t.Fatalf("expected Number constants 5 and 7, got %v %v", v1, v2)
	}
}

// TestBuildGraphConditionalMergesElseArm is a regression test for the
// builder's OpJump handling: the "then" arm's trailing unconditional jump
// to the join point must NOT redirect the scan cursor past the "else" arm,
// or the else arm's bytes are never translated and the join point never
// becomes a real Phi. Bytecode shape mirrors what the front end emits for
// an if/else:
//
//	0: LoadTrue   r0
//	1: JumpIfNot  r0 -> 4      (else label)
//	2: LoadConst  r1 = const[0] (then arm, value 100)
//	3: Jump       -> 5          (join point, skipping the else arm)
//	4: LoadConst  r1 = const[1] (else arm, value 200)
//	5: Return     r1
func TestBuildGraphConditionalMergesElseArm(t *testing.T) {
	var code []byte
	code = append(code, encodeInstr(vm.OpLoadTrue, 0, 0, 0)...)
	code = append(code, encodeJump(vm.OpJumpIfNot, 0, 4)...)
	code = append(code, encodeJump(vm.OpLoadConst, 1, 0)...)
	code = append(code, encodeJump(vm.OpJump, 0, 5)...)
	code = append(code, encodeJump(vm.OpLoadConst, 1, 1)...)
	code = append(code, encodeInstr(vm.OpReturn, 1, 0, 0)...)

	bf := &BytecodeFunction{
		Name:          "ifelse",
		Code:          code,
		Constants:     []uint64{100, 200},
		RegisterCount: 2,
	}

	fn := BuildGraph(bf)

	end := fn.Graph.End
	if end == nil || end.ControlInputCount() != 1 {
		t.Fatalf("expected End to have exactly one queued exit")
	}
	ret := end.ControlInput(0)
	if ret.Opcode() != OpReturn {
		t.Fatalf("expected a Return, got %v", ret.Opcode())
	}
	phi := ret.ValueInput(0)
	if phi.Opcode() != OpPhi {
		t.Fatalf("expected Return's value input to be a Phi merging both arms, got %v (else arm dropped?)", phi.Opcode())
	}
	if phi.ValueInputCount() != 2 {
		t.Fatalf("expected the join Phi to carry exactly 2 values, got %d", phi.ValueInputCount())
	}
	thenVal, _ := phi.ValueInput(0).Op().Payload().(ConstantPayload).Value.(*uint256.Int)
	elseVal, _ := phi.ValueInput(1).Op().Payload().(ConstantPayload).Value.(*uint256.Int)
	if thenVal == nil || elseVal == nil || thenVal.Uint64() != 100 || elseVal.Uint64() != 200 {
		t.Fatalf("expected phi inputs [100, 200], got [%v, %v]", thenVal, elseVal)
	}
	region := phi.ControlInput(0)
	if region.Opcode() != OpRegion || region.ControlInputCount() != 2 {
		t.Fatalf("expected a 2-input Region at the join point, got %v with %d inputs", region.Opcode(), region.ControlInputCount())
	}
}

// TestBuildGraphThrowingCallForksToHandler drives an actual throwing
// opcode (OpDiv, which lowers to the canThrow OpPROBEDiv) through a
// bytecode-level unwind handler and checks that the builder itself —
// not a hand-built graph — produces the OnException/UnwindDispatch/
// HandleUnwind chain, and that End collects both the normal Return and
// the handler block's Return.
func TestBuildGraphThrowingCallForksToHandler(t *testing.T) {
	var code []byte
	code = append(code, encodeJump(vm.OpLoadConst, 0, 0)...) // r0 = const[0] (10)
	code = append(code, encodeJump(vm.OpLoadConst, 1, 1)...) // r1 = const[1] (0)
	code = append(code, encodeInstr(vm.OpDiv, 2, 0, 1)...)   // r2 = r0 / r1 (can throw)
	code = append(code, encodeInstr(vm.OpReturn, 2, 0, 0)...)
	code = append(code, encodeInstr(vm.OpReturn, 0, 0, 0)...) // handler: return r0

	bf := &BytecodeFunction{
		Name:           "throwing",
		Code:           code,
		Constants:      []uint64{10, 0},
		RegisterCount:  3,
		UnwindHandlers: map[uint32]uint32{0: 16}, // handler active from entry, resumes at offset 16
	}

	fn := BuildGraph(bf)

	end := fn.Graph.End
	if end == nil || end.ControlInputCount() != 2 {
		t.Fatalf("expected 2 queued exits (normal return + handler return), got %v", end)
	}

	var sawOnException, sawUnwindDispatch, sawHandleUnwind bool
	walkAllNodes(fn.Graph, func(n *Node) {
		switch n.Opcode() {
		case OpOnException:
			sawOnException = true
		case OpUnwindDispatch:
			sawUnwindDispatch = true
		case OpHandleUnwind:
			sawHandleUnwind = true
		}
	})
	if !sawOnException {
		t.Fatalf("expected the builder to emit an OnException node for the throwing Div")
	}
	if !sawUnwindDispatch {
		t.Fatalf("expected the builder to emit an UnwindDispatch node between OnException and HandleUnwind")
	}
	if !sawHandleUnwind {
		t.Fatalf("expected the builder to emit a HandleUnwind node at the handler offset")
	}
}

// TestBuildGraphLoopBackEdgeTerminates is a regression test for the same
// OpJump fix from the scan-cursor side: a loop whose body ends in a
// backward Jump must not re-walk the header a second time. Before the fix,
// BuildGraph never returned for bytecode shaped like this (the scan cursor
// kept jumping back to the header forever). Shape:
//
//	0: LoadConst r1 = const[0] (value 1)
//	1: Add       r0 = r0 + r1   (loop header)
//	2: JumpIfNot r0 -> 4        (exit once r0 == 0)
//	3: Jump      -> 1           (back edge)
//	4: Return    r0
func TestBuildGraphLoopBackEdgeTerminates(t *testing.T) {
	var code []byte
	code = append(code, encodeJump(vm.OpLoadConst, 1, 0)...)
	code = append(code, encodeInstr(vm.OpAdd, 0, 0, 1)...)
	code = append(code, encodeJump(vm.OpJumpIfNot, 0, 4)...)
	code = append(code, encodeJump(vm.OpJump, 0, 1)...)
	code = append(code, encodeInstr(vm.OpReturn, 0, 0, 0)...)

	bf := &BytecodeFunction{
		Name:          "loop",
		Code:          code,
		Constants:     []uint64{1},
		RegisterCount: 2,
		ParamCount:    1, // r0 is the sole parameter
		LoopStarts:    []uint32{4},
	}

	fn := BuildGraph(bf)

	end := fn.Graph.End
	if end == nil || end.ControlInputCount() != 1 {
		t.Fatalf("expected exactly one queued exit, got %v", end)
	}
	ret := end.ControlInput(0)
	if ret.Opcode() != OpReturn {
		t.Fatalf("expected a Return, got %v", ret.Opcode())
	}
	add := ret.ValueInput(0)
	if add.Opcode() != OpPROBEAdd {
		t.Fatalf("expected the returned value to be the loop body's Add, got %v", add.Opcode())
	}
	phi := add.ValueInput(0)
	if phi.Opcode() != OpPhi {
		t.Fatalf("expected the Add's first operand to be the loop-carried Phi for r0, got %v", phi.Opcode())
	}
	if phi.ValueInputCount() != 2 {
		t.Fatalf("expected the loop Phi to have been appended to exactly once by the back edge (2 total inputs), got %d", phi.ValueInputCount())
	}
	region := phi.ControlInput(0)
	if region.Opcode() != OpRegion || region.ControlInputCount() != 2 {
		t.Fatalf("expected the loop header Region to have exactly 2 control inputs, got %v with %d", region.Opcode(), region.ControlInputCount())
	}
}

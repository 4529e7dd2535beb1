// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import (
	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

// Environment captures, for one bytecode position, the current control and
// effect nodes plus the SSA value currently bound to each interpreter
// register. frame[nRegisters] holds the active unwind-handler offset as a
// Constant node (0 == no handler). Ground: spec.md §4.2.
type Environment struct {
	control *Node
	effect  *Node
	frame   []*Node
}

func (e *Environment) clone() *Environment {
	f := make([]*Node, len(e.frame))
	copy(f, e.frame)
	return &Environment{control: e.control, effect: e.effect, frame: f}
}

func (e *Environment) unwindHandler() uint32 {
	c := e.frame[len(e.frame)-1]
	if c == nil || c.Opcode() != OpConstant {
		return 0
	}
	v, _ := c.Op().Payload().(ConstantPayload).Value.(uint64)
	return uint32(v)
}

func (e *Environment) setUnwindHandler(g *Graph, h uint32) {
	e.frame[len(e.frame)-1] = g.ConstWord(uint64(h), TypeUInt32)
}

// builder is the Graph Builder's mutable state for one Function. Ground:
// spec.md §4.2.
type builder struct {
	fn *Function
	g  *Graph
	bf *BytecodeFunction

	env   *Environment // nil when the current control-flow position is dead
	merge map[uint32]*Environment
	loopHeader map[uint32]bool
}

// BuildGraph walks bf's bytecode and returns a Function whose Graph's End
// node collects every control-flow exit. Ground: spec.md §4.2's full
// contract.
func BuildGraph(bf *BytecodeFunction) *Function {
	fn := NewFunction(bf)
	b := &builder{
		fn:         fn,
		g:          fn.Graph,
		bf:         bf,
		merge:      make(map[uint32]*Environment),
		loopHeader: make(map[uint32]bool),
	}
	for _, off := range bf.LoopStarts {
		b.loopHeader[off] = true
	}
	b.run()
	fn.Graph.SealEnd()
	return fn
}

func (b *builder) run() {
	b.env = b.entryEnvironment()

	off := uint32(0)
	for int(off)+4 <= len(b.bf.Code) {
		b.arriveAt(off)
		if b.env == nil {
			// Dead code: no live predecessor reaches this offset and no
			// merge entry was ever recorded for it either. Skip the
			// instruction silently, per spec.md §4.2 "Function exits".
			off += 4
			continue
		}
		d, ok := decodeAt(b.bf.Code, off)
		if !ok {
			break
		}
		next := b.step(d)
		off = next
	}
}

// entryEnvironment builds the initial Environment: Parameter nodes for the
// formal arguments, Undefined for the rest, handler slot at 0.
func (b *builder) entryEnvironment() *Environment {
	n := b.bf.RegisterCount
	frame := make([]*Node, n+1)
	for i := 0; i < n; i++ {
		if i < b.bf.ParamCount {
			frame[i] = b.g.NewNode(opParameter(i, 0, TypeAny), nil, nil, nil, nil)
		} else {
			frame[i] = b.g.ConstUndefined()
		}
	}
	frame[n] = b.g.ConstWord(0, TypeUInt32)
	return &Environment{control: b.g.Start, effect: b.g.Start, frame: frame}
}

// arriveAt applies any merge recorded for off to the builder's current
// environment, per spec.md §4.2 "Merging at join points" and "Loop
// headers", then applies any handler-offset change bf.UnwindHandlers
// records for off (the SetUnwindHandler-equivalent the front end emits at
// try-region boundaries: entering a protected region activates a nonzero
// handler, leaving one deactivates it with an entry mapping back to 0).
func (b *builder) arriveAt(off uint32) {
	if b.loopHeader[off] && b.merge[off] == nil {
		// First arrival at a declared loop start: unconditionally wrap as
		// a growable 1-input Region/EffectPhi/Phi set, even though only
		// one predecessor (the fallthrough) is known so far.
		if b.env != nil {
			wrapped := b.wrapAsRegion(b.env)
			b.merge[off] = wrapped
			b.env = wrapped.clone()
		}
		b.applyUnwindHandler(off)
		return
	}
	existing, ok := b.merge[off]
	if !ok {
		b.applyUnwindHandler(off)
		return
	}
	if b.env != nil {
		b.mergeInto(off, b.env)
	}
	b.env = existing.clone()
	b.applyUnwindHandler(off)
}

// applyUnwindHandler activates the handler offset bf.UnwindHandlers records
// for off, if any, on the builder's current (possibly just-merged)
// environment.
func (b *builder) applyUnwindHandler(off uint32) {
	if b.env == nil {
		return
	}
	if h, ok := b.bf.UnwindHandlers[off]; ok {
		b.env.setUnwindHandler(b.g, h)
	}
}

// wrapAsRegion promotes env into a fresh 1-input Region/EffectPhi/Phi set
// seeded with env's current control/effect/frame.
func (b *builder) wrapAsRegion(env *Environment) *Environment {
	region := b.g.NewNodeWithSlack(opRegion(1), nil, nil, []*Node{env.control}, nil, 3)
	effectPhi := b.g.NewNodeWithSlack(opEffectPhi(1), nil, []*Node{env.effect}, []*Node{region}, nil, 3)
	frame := make([]*Node, len(env.frame))
	for i, v := range env.frame {
		frame[i] = b.g.NewNodeWithSlack(opPhi(1, b.fn.Info(v).Type), []*Node{v}, nil, []*Node{region}, nil, 3)
	}
	return &Environment{control: region, effect: effectPhi, frame: frame}
}

// mergeInto folds incoming into the stored merge entry for off, per
// spec.md §4.2: "If no Environment exists, store a copy. Else merge."
func (b *builder) mergeInto(off uint32, incoming *Environment) {
	existing, ok := b.merge[off]
	if !ok {
		b.merge[off] = incoming.clone()
		return
	}
	if existing.control.Opcode() != OpRegion {
		*existing = *b.wrapAsRegion(existing)
	}
	existing.control.AppendControlInput(incoming.control)
	existing.effect.AppendEffectInput(incoming.effect)
	for i, phi := range existing.frame {
		phi.AppendValueInput(incoming.frame[i])
	}
}

// step decodes and emits the instruction at d.offset, returning the next
// bytecode offset to process.
func (b *builder) step(d decodedInstr) uint32 {
	next := d.offset + 4
	env := b.env

	binOp := func(op Opcode) {
		res := b.emitPure(probeOp(op), env.frame[d.b], env.frame[d.c])
		env.frame[d.a] = res
	}
	unOp := func(op Opcode) {
		res := b.emitPure(probeOp(op), env.frame[d.b])
		env.frame[d.a] = res
	}
	call := func(op Opcode, args ...*Node) *Node {
		return b.emitRuntimeCall(op, args...)
	}

	switch d.op {
	case vm.OpAdd:
		binOp(OpPROBEAdd)
	case vm.OpSub:
		binOp(OpPROBESub)
	case vm.OpMul:
		binOp(OpPROBEMul)
	case vm.OpDiv:
		env.frame[d.a] = call(OpPROBEDiv, env.frame[d.b], env.frame[d.c])
	case vm.OpMod:
		env.frame[d.a] = call(OpPROBEMod, env.frame[d.b], env.frame[d.c])
	case vm.OpNeg:
		unOp(OpPROBENeg)
	case vm.OpAnd:
		binOp(OpPROBEAnd)
	case vm.OpOr:
		binOp(OpPROBEOr)
	case vm.OpXor:
		binOp(OpPROBEXor)
	case vm.OpNot:
		unOp(OpPROBENot)
	case vm.OpShl:
		binOp(OpPROBEShl)
	case vm.OpShr:
		binOp(OpPROBEShr)
	case vm.OpEq:
		binOp(OpPROBEEq)
	case vm.OpNeq:
		binOp(OpPROBENeq)
	case vm.OpLt:
		binOp(OpPROBELt)
	case vm.OpLte:
		binOp(OpPROBELte)
	case vm.OpGt:
		binOp(OpPROBEGt)
	case vm.OpGte:
		binOp(OpPROBEGte)

	case vm.OpLoadConst:
		idx := int(d.imm16)
		var v uint64
		if idx >= 0 && idx < len(b.bf.Constants) {
			v = b.bf.Constants[idx]
		}
		env.frame[d.a] = b.g.ConstWord(v, TypeNumber)
	case vm.OpLoadTrue:
		env.frame[d.a] = b.g.ConstBool(true)
	case vm.OpLoadFalse:
		env.frame[d.a] = b.g.ConstBool(false)
	case vm.OpLoadNil:
		env.frame[d.a] = b.g.ConstNull()
	case vm.OpMove:
		env.frame[d.a] = env.frame[d.b]
		env.frame[d.b] = b.g.ConstUndefined()
	case vm.OpCopy:
		env.frame[d.a] = env.frame[d.b]

	case vm.OpLoadMem:
		env.frame[d.a] = call(OpPROBELoadMem, env.frame[d.b], b.g.ConstWord(uint64(d.c), TypeInt32))
	case vm.OpStoreMem:
		call(OpPROBEStoreMem, env.frame[d.a], b.g.ConstWord(uint64(d.c), TypeInt32), env.frame[d.b])
	case vm.OpAlloc:
		env.frame[d.a] = call(OpPROBEAllocMem, env.frame[d.b])
	case vm.OpFree:
		call(OpPROBEFreeMem, env.frame[d.a])

	case vm.OpJump:
		target := d.jumpTargetOffset()
		jump := b.g.NewNode(opJump(), nil, nil, []*Node{env.control}, nil)
		b.mergeInto(target, &Environment{control: jump, effect: env.effect, frame: env.frame})
		b.env = nil
		// Do not redirect the scan to target: the linear walk always
		// advances by instruction, relying on b.env == nil to glide over
		// the dead bytes between here and target and arriveAt to pick the
		// merge back up once the scan reaches it on its own. Jumping the
		// cursor directly would skip any code laid out in between (an
		// else-arm reached only via a stored merge) and, for a backward
		// jump, would re-walk the loop body forever.
		return next

	case vm.OpJumpIf, vm.OpJumpIfNot:
		target := d.jumpTargetOffset()
		cond := env.frame[d.a]
		if d.op == vm.OpJumpIfNot {
			cond = b.emitPure(opBooleanNot(), b.emitPure(opToBoolean(), cond))
		} else {
			cond = b.emitPure(opToBoolean(), cond)
		}
		branch := b.g.NewNode(opBranch(), []*Node{cond}, nil, []*Node{env.control}, nil)
		ifTrue := b.g.NewNode(opIfTrue(), nil, nil, []*Node{branch}, nil)
		ifFalse := b.g.NewNode(opIfFalse(), nil, nil, []*Node{branch}, nil)
		b.mergeInto(target, &Environment{control: ifTrue, effect: env.effect, frame: env.frame})
		b.env = &Environment{control: ifFalse, effect: env.effect, frame: append([]*Node(nil), env.frame...)}
		return next

	case vm.OpCall:
		funcIdx := b.g.ConstWord(uint64(d.imm16), TypeInt32)
		result := b.emitVarargRuntimeCall(OpPROBECallName, funcIdx)
		env.frame[d.a] = result

	case vm.OpReturn, vm.OpHalt:
		ret := b.g.NewNode(opReturn(), []*Node{env.frame[d.a]}, []*Node{env.effect}, []*Node{env.control}, nil)
		b.g.QueueEndInput(ret)
		b.env = nil
		return next

	case vm.OpPush, vm.OpPop:
		panic(&CompileFault{Reason: "value-stack argument marshalling (" + d.op.String() + ") is not modeled by this graph builder"})

	case vm.OpSpawn:
		env.frame[d.a] = call(OpPROBESpawn, env.frame[d.b])
	case vm.OpSend:
		call(OpPROBESend, env.frame[d.a], env.frame[d.b])
	case vm.OpRecv:
		env.frame[d.a] = call(OpPROBERecv)
	case vm.OpSelf:
		env.frame[d.a] = call(OpPROBESelf)

	case vm.OpBalance:
		env.frame[d.a] = call(OpPROBEBalance, env.frame[d.b])
	case vm.OpTransfer:
		call(OpPROBETransfer, env.frame[d.a], env.frame[d.b], env.frame[d.c])
	case vm.OpEmit:
		call(OpPROBEEmit, env.frame[d.a])
	case vm.OpCaller:
		env.frame[d.a] = call(OpPROBECaller)
	case vm.OpBlockNum:
		env.frame[d.a] = call(OpPROBEBlockNum)
	case vm.OpBlockTime:
		env.frame[d.a] = call(OpPROBEBlockTime)

	case vm.OpSHA3:
		// Unlike OpLoadMem/OpStoreMem's c-as-immediate-offset, OpSHA3's c is
		// R[c] (a register holding the length), per vm/opcodes.go.
		call(OpPROBESHA3, env.frame[d.a], env.frame[d.b], env.frame[d.c])
	case vm.OpSHAKE256:
		call(OpPROBESHAKE256, env.frame[d.a], env.frame[d.b], env.frame[d.c])
	case vm.OpFalcon512Verify:
		env.frame[d.a] = call(OpPROBEFalcon512Verify, env.frame[d.b], env.frame[d.c])
	case vm.OpMLDSAVerify:
		env.frame[d.a] = call(OpPROBEMLDSAVerify, env.frame[d.b], env.frame[d.c])
	case vm.OpSLHDSAVerify:
		env.frame[d.a] = call(OpPROBESLHDSAVerify, env.frame[d.b], env.frame[d.c])
	case vm.OpSecp256k1Recover:
		env.frame[d.a] = call(OpPROBESecp256k1Recover, env.frame[d.b], env.frame[d.c])

	case vm.OpResourceNew:
		env.frame[d.a] = call(OpPROBEResourceNew, env.frame[d.b])
	case vm.OpResourceDrop:
		call(OpPROBEResourceDrop, env.frame[d.a])
	case vm.OpResourceCheck:
		env.frame[d.a] = call(OpPROBEResourceCheck, env.frame[d.a])

	case vm.OpArrayNew:
		env.frame[d.a] = call(OpPROBEArrayNew, env.frame[d.b])
	case vm.OpArrayGet:
		env.frame[d.a] = call(OpPROBEArrayGet, env.frame[d.b], env.frame[d.c])
	case vm.OpArraySet:
		call(OpPROBEArraySet, env.frame[d.a], env.frame[d.b], env.frame[d.c])
	case vm.OpArrayLen:
		env.frame[d.a] = call(OpPROBEArrayLen, env.frame[d.b])

	default:
		panic(&CompileFault{Reason: "unreachable opcode " + d.op.String()})
	}
	return next
}

// emitPure builds a no-effect, no-control value node.
func (b *builder) emitPure(op *Operation, inputs ...*Node) *Node {
	return b.g.NewNode(op, inputs, nil, nil, nil)
}

// emitRuntimeCall builds a pre-lowering PROBE runtime-call node, threading
// the current effect/control and forking an OnException successor when the
// environment has an active unwind handler. Ground: spec.md §4.2
// "operation can throw and the environment has a non-zero unwind handler".
func (b *builder) emitRuntimeCall(op Opcode, args ...*Node) *Node {
	env := b.env
	n := b.g.NewNode(probeOp(op), args, []*Node{env.effect}, []*Node{env.control}, nil)
	env.effect = n
	env.control = n
	b.forkExceptionEdge(n, op)
	return n
}

func (b *builder) emitVarargRuntimeCall(op Opcode, args ...*Node) *Node {
	env := b.env
	n := b.g.NewNode(probeOpVararg(op, len(args)), args, []*Node{env.effect}, []*Node{env.control}, nil)
	env.effect = n
	env.control = n
	b.forkExceptionEdge(n, op)
	return n
}

// forkExceptionEdge implements spec.md §4.2's fork: if n's operation can
// throw and the environment has a registered unwind handler, create an
// OnException control successor, dispatch it through an UnwindDispatch
// node (§4.2 "UnwindDispatch emits a multi-successor node... each handler
// successor is reached via a HandleUnwind(offset) node"), and merge the
// handler's destination into the handler's environment; the non-exception
// path continues in a sub-environment.
func (b *builder) forkExceptionEdge(n *Node, op Opcode) {
	info, ok := probeOpTable[op]
	if !ok || !info.canThrow {
		return
	}
	handler := b.env.unwindHandler()
	if handler == 0 {
		return
	}
	onExc := b.g.NewNode(opOnException(), nil, nil, []*Node{n}, nil)
	dispatch := b.g.NewNode(opUnwindDispatch(handler, 0, 1), nil, []*Node{n}, []*Node{onExc}, nil)
	handleUnwind := b.g.NewNode(opHandleUnwind(handler), nil, nil, []*Node{dispatch}, nil)
	b.mergeInto(handler, &Environment{control: handleUnwind, effect: n, frame: append([]*Node(nil), b.env.frame...)})
}

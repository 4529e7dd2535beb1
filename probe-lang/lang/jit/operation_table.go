// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "fmt"

// This file is the "compile-time generated table" spec.md §9 asks for in
// place of the original's template-metaprogramming dispatch: one function
// per opcode family returning an interned or freshly-built *Operation.
// Everything the graph builder and lowering pass need — arities, flags,
// payload shape — is a constant expression evaluated once per opcode.

func noPayloadOp(op Opcode, valueIn, effectIn, controlIn int, result Type, flags Flags) *Operation {
	return internOperation(op, func() *Operation {
		return &Operation{
			opcode: op, valueIn: valueIn, effectIn: effectIn, controlIn: controlIn,
			resultType: result, flags: flags,
		}
	})
}

// opEnd / opRegion / opPhi / opEffectPhi / opFrameState take a variable input arity
// (number of predecessors), so they are built fresh per use; they still
// carry no other payload.
func variadicControlOp(op Opcode, valueIn, effectIn, controlIn int, result Type, flags Flags) *Operation {
	return &Operation{opcode: op, valueIn: valueIn, effectIn: effectIn, controlIn: controlIn, resultType: result, flags: flags}
}

func opStart() *Operation {
	return noPayloadOp(OpStart, 0, 0, 0, TypeNone, 0)
}

func opEnd(nControlIn int) *Operation {
	return variadicControlOp(OpEnd, 0, 0, nControlIn, TypeNone, 0)
}

func opConstant(value interface{}, t Type) *Operation {
	return &Operation{opcode: OpConstant, resultType: t, flags: FlagPure, payload: ConstantPayload{Value: value}}
}

func opParameter(index, nameID int, t Type) *Operation {
	return &Operation{opcode: OpParameter, resultType: t, flags: FlagPure, payload: ParameterPayload{Index: index, NameID: nameID}}
}

func opPhi(nInputs int, t Type) *Operation {
	return variadicControlOp(OpPhi, nInputs, 0, 1, t, 0)
}

func opEffectPhi(nInputs int) *Operation {
	return variadicControlOp(OpEffectPhi, 0, nInputs, 1, TypeNone, 0)
}

func opRegion(nPreds int) *Operation {
	return variadicControlOp(OpRegion, 0, 0, nPreds, TypeNone, 0)
}

func opJump() *Operation { return noPayloadOp(OpJump, 0, 0, 1, TypeNone, 0) }

func opBranch() *Operation { return noPayloadOp(OpBranch, 1, 0, 1, TypeNone, 0) }

func opIfTrue() *Operation  { return noPayloadOp(OpIfTrue, 0, 0, 1, TypeNone, 0) }
func opIfFalse() *Operation { return noPayloadOp(OpIfFalse, 0, 0, 1, TypeNone, 0) }

func opReturn() *Operation {
	return noPayloadOp(OpReturn, 1, 1, 1, TypeNone, 0)
}

func opThrow() *Operation {
	return noPayloadOp(OpThrow, 1, 1, 1, TypeNone, 0)
}

func opThrowFault() *Operation {
	return noPayloadOp(OpThrowFault, 0, 1, 1, TypeNone, 0)
}

func opOnException() *Operation {
	return noPayloadOp(OpOnException, 0, 0, 1, TypeNone, 0)
}

func opUnwindDispatch(handler, fallthroughOff uint32, nControlOut int) *Operation {
	return &Operation{
		opcode: OpUnwindDispatch, effectIn: 1, controlIn: 1, flags: 0,
		payload: UnwindDispatchPayload{HandlerOffset: handler, FallthroughOffset: fallthroughOff},
	}
}

func opHandleUnwind(handlerOffset uint32) *Operation {
	return &Operation{opcode: OpHandleUnwind, controlIn: 1, payload: HandleUnwindPayload{HandlerOffset: handlerOffset}}
}

func opUnwindToLabel() *Operation {
	return noPayloadOp(OpUnwindToLabel, 0, 0, 1, TypeNone, 0)
}

func opFrameState(nValueIn int) *Operation {
	return variadicControlOp(OpFrameState, nValueIn, 0, 0, TypeNone, 0)
}

// opCall builds the Operation for a lowered Call node; valueIn is the total
// value-input count after the engine/frame/function prefix and any
// substituted Alloca nodes have been added (see lowering.go).
func opCall(callee Opcode, valueIn int, canThrow bool) *Operation {
	flags := Flags(0)
	if canThrow {
		flags |= FlagCanThrow
	}
	effectIn, controlIn := 1, 1
	return &Operation{
		opcode: OpCall, valueIn: valueIn, effectIn: effectIn, controlIn: controlIn,
		resultType: callReturnType(callee), flags: flags, payload: CallPayload{Callee: callee},
	}
}

func opVM() *Operation      { return noPayloadOp(OpVM, 0, 0, 0, TypeRawPointer, FlagPure) }
func opFrame() *Operation   { return noPayloadOp(OpFrame, 0, 0, 0, TypeRawPointer, FlagPure) }
func opFuncRef() *Operation { return noPayloadOp(OpFuncRef, 0, 0, 0, TypeObject, FlagPure) }

func opAlloca() *Operation {
	return noPayloadOp(OpAlloca, 1, 0, 0, TypeRawPointer, FlagPure)
}

func opVAAlloc() *Operation {
	return noPayloadOp(OpVAAlloc, 1, 1, 0, TypeRawPointer, 0)
}

func opVAStore() *Operation {
	// operands: [chain, vaAlloc, index-as-const, value]; modeled as 3 value
	// inputs (vaAlloc, index, value) chained through a 4th "previous store"
	// value input that threads ordering, per spec.md §4.5.
	return noPayloadOp(OpVAStore, 4, 0, 0, TypeNone, 0)
}

func opVASeal() *Operation {
	return noPayloadOp(OpVASeal, 2, 1, 0, TypeRawPointer, 0)
}

func opToBoolean() *Operation  { return noPayloadOp(OpToBoolean, 1, 0, 0, TypeBool, FlagPure) }
func opBooleanNot() *Operation { return noPayloadOp(OpBooleanNot, 1, 0, 0, TypeBool, FlagPure) }
func opIsEmpty() *Operation    { return noPayloadOp(OpIsEmpty, 1, 0, 0, TypeBool, FlagPure) }
func opHasException() *Operation {
	return noPayloadOp(OpHasException, 0, 1, 0, TypeBool, 0)
}
func opSwap() *Operation { return noPayloadOp(OpSwap, 2, 0, 0, TypeAny, FlagPure) }
func opMove() *Operation { return noPayloadOp(OpMove, 1, 0, 0, TypeAny, FlagPure) }

// probeOpInfo is the per-opcode metadata for runtime-callable PROBE
// operations, consulted both by the graph builder (to size the node) and by
// generic lowering (to decide vararg vs non-vararg shape).
type probeOpInfo struct {
	valueIn  int
	result   Type
	canThrow bool
	pure     bool
	vararg   bool
}

var probeOpTable = map[Opcode]probeOpInfo{
	OpPROBEAdd: {2, TypeNumber, false, true, false},
	OpPROBESub: {2, TypeNumber, false, true, false},
	OpPROBEMul: {2, TypeNumber, false, true, false},
	OpPROBEDiv: {2, TypeNumber, true, false, false},
	OpPROBEMod: {2, TypeNumber, true, false, false},
	OpPROBENeg: {1, TypeNumber, false, true, false},
	OpPROBEAnd: {2, TypeIntegral, false, true, false},
	OpPROBEOr:  {2, TypeIntegral, false, true, false},
	OpPROBEXor: {2, TypeIntegral, false, true, false},
	OpPROBENot: {1, TypeIntegral, false, true, false},
	OpPROBEShl: {2, TypeIntegral, false, true, false},
	OpPROBEShr: {2, TypeIntegral, false, true, false},
	OpPROBEEq:  {2, TypeBool, false, true, false},
	OpPROBENeq: {2, TypeBool, false, true, false},
	OpPROBELt:  {2, TypeBool, false, true, false},
	OpPROBELte: {2, TypeBool, false, true, false},
	OpPROBEGt:  {2, TypeBool, false, true, false},
	OpPROBEGte: {2, TypeBool, false, true, false},

	OpPROBELoadMem:  {2, TypeAny, true, false, false},
	OpPROBEStoreMem: {3, TypeNone, true, false, false},
	OpPROBEAllocMem: {1, TypeRawPointer, true, false, false},
	OpPROBEFreeMem:  {1, TypeNone, false, false, false},

	OpPROBECallName: {0, TypeAny, true, false, true},

	OpPROBESpawn: {1, TypeObject, true, false, false},
	OpPROBESend:  {2, TypeNone, true, false, false},
	OpPROBERecv:  {0, TypeAny, true, false, false},
	OpPROBESelf:  {0, TypeObject, false, true, false},

	OpPROBEBalance:   {1, TypeNumber, false, false, false},
	OpPROBETransfer:  {3, TypeNone, true, false, false},
	OpPROBEEmit:      {1, TypeNone, false, false, false},
	OpPROBECaller:    {0, TypeObject, false, true, false},
	OpPROBEBlockNum:  {0, TypeNumber, false, true, false},
	OpPROBEBlockTime: {0, TypeNumber, false, true, false},

	OpPROBESHA3:               {3, TypeRawPointer, false, false, false},
	OpPROBESHAKE256:           {3, TypeRawPointer, false, false, false},
	OpPROBEFalcon512Verify:    {2, TypeBool, false, false, false},
	OpPROBEMLDSAVerify:        {2, TypeBool, false, false, false},
	OpPROBESLHDSAVerify:       {2, TypeBool, false, false, false},
	OpPROBESecp256k1Recover:   {2, TypeRawPointer, false, false, false},

	OpPROBEResourceNew:   {1, TypeObject, false, false, false},
	OpPROBEResourceDrop:  {1, TypeNone, true, false, false},
	OpPROBEResourceCheck: {1, TypeBool, false, false, false},

	OpPROBEArrayNew: {1, TypeObject, true, false, false},
	OpPROBEArrayGet: {2, TypeAny, true, false, false},
	OpPROBEArraySet: {3, TypeNone, true, false, false},
	OpPROBEArrayLen: {1, TypeNumber, false, true, false},
}

// probeOpVararg builds the pre-lowering Operation for OpPROBECallName: its
// value arity is the caller-supplied argument count, not a table constant,
// since every call site pushes a different number of arguments.
func probeOpVararg(op Opcode, nargs int) *Operation {
	info, ok := probeOpTable[op]
	if !ok || !info.vararg {
		panic(fmt.Sprintf("jit: %s is not a vararg runtime-callable PROBE opcode", op))
	}
	flags := Flags(0)
	if info.canThrow {
		flags |= FlagCanThrow
	}
	return &Operation{
		opcode: op, valueIn: nargs, effectIn: 1, controlIn: 1,
		resultType: info.result, flags: flags,
	}
}

// probeOp builds the pre-lowering Operation for a runtime-callable PROBE
// opcode. Its arity/flags come straight from probeOpTable; it always
// carries effect+control inputs since even "pure" PROBE-level operations
// are sequenced relative to the bytecode they were traced from (purity in
// the table instead marks operations generic lowering's CSE-friendly copy
// propagation, out of scope here, is allowed to reorder after lowering).
func probeOp(op Opcode) *Operation {
	info, ok := probeOpTable[op]
	if !ok {
		panic(fmt.Sprintf("jit: %s is not a runtime-callable PROBE opcode", op))
	}
	flags := Flags(0)
	if info.canThrow {
		flags |= FlagCanThrow
	}
	return &Operation{
		opcode: op, valueIn: info.valueIn, effectIn: 1, controlIn: 1,
		resultType: info.result, flags: flags,
	}
}

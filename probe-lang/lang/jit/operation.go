// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// Opcode identifies the operation a Node performs. The enumeration is
// closed: every case the graph builder, lowering pass, and scheduler handle
// is listed here, grounding spec.md §3 "Operation".
type Opcode int

const (
	OpInvalid Opcode = iota

	// ---- Graph structure -----------------------------------------------
	OpStart
	OpEnd
	OpConstant
	OpParameter
	OpPhi
	OpEffectPhi
	OpRegion
	OpJump
	OpBranch
	OpIfTrue
	OpIfFalse
	OpReturn
	OpThrow
	OpThrowFault // ground: spec's ThrowReferenceError, re-targeted at a VM resource/bounds fault
	OpOnException
	OpUnwindDispatch
	OpHandleUnwind
	OpUnwindToLabel
	OpFrameState
	OpCall

	// ---- Dedicated single-purpose registers -----------------------------
	OpVM      // ground: spec's "Engine" node — the running VM/engine pointer
	OpFrame   // ground: spec's "CppFrame" node — the native call frame pointer
	OpFuncRef // ground: spec's "Function" node — the currently compiled function reference

	// ---- Value-array plumbing for vararg calls --------------------------
	OpAlloca
	OpVAAlloc
	OpVAStore
	OpVASeal

	// ---- Misc value ops --------------------------------------------------
	OpToBoolean
	OpBooleanNot
	OpIsEmpty
	OpHasException
	OpSwap
	OpMove

	// ---- Runtime-callable PROBE operations (pre-lowering) --------------
	// These mirror PROBE VM opcodes one-for-one; generic lowering (§4.5)
	// rewrites every one of them into a uniform Call node.
	OpPROBEAdd
	OpPROBESub
	OpPROBEMul
	OpPROBEDiv
	OpPROBEMod
	OpPROBENeg
	OpPROBEAnd
	OpPROBEOr
	OpPROBEXor
	OpPROBENot
	OpPROBEShl
	OpPROBEShr
	OpPROBEEq
	OpPROBENeq
	OpPROBELt
	OpPROBELte
	OpPROBEGt
	OpPROBEGte
	OpPROBELoadMem
	OpPROBEStoreMem
	OpPROBEAllocMem
	OpPROBEFreeMem
	OpPROBECallName // vararg: callee resolved by name/index, args pushed on the value stack
	OpPROBESpawn
	OpPROBESend
	OpPROBERecv
	OpPROBESelf
	OpPROBEBalance
	OpPROBETransfer
	OpPROBEEmit
	OpPROBECaller
	OpPROBEBlockNum
	OpPROBEBlockTime
	OpPROBESHA3
	OpPROBESHAKE256
	OpPROBEFalcon512Verify
	OpPROBEMLDSAVerify
	OpPROBESLHDSAVerify
	OpPROBESecp256k1Recover
	OpPROBEResourceNew
	OpPROBEResourceDrop
	OpPROBEResourceCheck
	OpPROBEArrayNew
	OpPROBEArrayGet
	OpPROBEArraySet
	OpPROBEArrayLen

	opcodeCount
)

var opcodeNames = map[Opcode]string{
	OpStart: "Start", OpEnd: "End", OpConstant: "Constant", OpParameter: "Parameter",
	OpPhi: "Phi", OpEffectPhi: "EffectPhi", OpRegion: "Region", OpJump: "Jump",
	OpBranch: "Branch", OpIfTrue: "IfTrue", OpIfFalse: "IfFalse", OpReturn: "Return",
	OpThrow: "Throw", OpThrowFault: "ThrowFault", OpOnException: "OnException",
	OpUnwindDispatch: "UnwindDispatch", OpHandleUnwind: "HandleUnwind",
	OpUnwindToLabel: "UnwindToLabel", OpFrameState: "FrameState", OpCall: "Call",
	OpVM: "VM", OpFrame: "Frame", OpFuncRef: "FuncRef",
	OpAlloca: "Alloca", OpVAAlloc: "VAAlloc", OpVAStore: "VAStore", OpVASeal: "VASeal",
	OpToBoolean: "ToBoolean", OpBooleanNot: "BooleanNot", OpIsEmpty: "IsEmpty",
	OpHasException: "HasException", OpSwap: "Swap", OpMove: "Move",
	OpPROBEAdd: "PROBEAdd", OpPROBESub: "PROBESub", OpPROBEMul: "PROBEMul",
	OpPROBEDiv: "PROBEDiv", OpPROBEMod: "PROBEMod", OpPROBENeg: "PROBENeg",
	OpPROBEAnd: "PROBEAnd", OpPROBEOr: "PROBEOr", OpPROBEXor: "PROBEXor",
	OpPROBENot: "PROBENot", OpPROBEShl: "PROBEShl", OpPROBEShr: "PROBEShr",
	OpPROBEEq: "PROBEEq", OpPROBENeq: "PROBENeq", OpPROBELt: "PROBELt",
	OpPROBELte: "PROBELte", OpPROBEGt: "PROBEGt", OpPROBEGte: "PROBEGte",
	OpPROBELoadMem: "PROBELoadMem", OpPROBEStoreMem: "PROBEStoreMem",
	OpPROBEAllocMem: "PROBEAllocMem", OpPROBEFreeMem: "PROBEFreeMem",
	OpPROBECallName: "PROBECallName", OpPROBESpawn: "PROBESpawn", OpPROBESend: "PROBESend",
	OpPROBERecv: "PROBERecv", OpPROBESelf: "PROBESelf", OpPROBEBalance: "PROBEBalance",
	OpPROBETransfer: "PROBETransfer", OpPROBEEmit: "PROBEEmit", OpPROBECaller: "PROBECaller",
	OpPROBEBlockNum: "PROBEBlockNum", OpPROBEBlockTime: "PROBEBlockTime",
	OpPROBESHA3: "PROBESHA3", OpPROBESHAKE256: "PROBESHAKE256",
	OpPROBEFalcon512Verify: "PROBEFalcon512Verify", OpPROBEMLDSAVerify: "PROBEMLDSAVerify",
	OpPROBESLHDSAVerify: "PROBESLHDSAVerify", OpPROBESecp256k1Recover: "PROBESecp256k1Recover",
	OpPROBEResourceNew: "PROBEResourceNew", OpPROBEResourceDrop: "PROBEResourceDrop",
	OpPROBEResourceCheck: "PROBEResourceCheck", OpPROBEArrayNew: "PROBEArrayNew",
	OpPROBEArrayGet: "PROBEArrayGet", OpPROBEArraySet: "PROBEArraySet",
	OpPROBEArrayLen: "PROBEArrayLen",
}

func (op Opcode) String() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return fmt.Sprintf("opcode(%d)", int(op))
}

// IsRuntimeCall reports whether op identifies a runtime-callable PROBE
// operation that generic lowering must rewrite into a Call node. Ground:
// spec.md §4.5 "isRuntimeCall(op) is decided by a compile-time dispatch".
func (op Opcode) IsRuntimeCall() bool {
	return op >= OpPROBEAdd && op < opcodeCount
}

// Flags are the per-operation boolean attributes from spec.md §3.
type Flags uint8

const (
	FlagCanThrow Flags = 1 << iota
	FlagPure
	FlagNeedsBytecodeOffsets
	FlagHasFrameStateInput
)

func (f Flags) CanThrow() bool              { return f&FlagCanThrow != 0 }
func (f Flags) Pure() bool                  { return f&FlagPure != 0 }
func (f Flags) NeedsBytecodeOffsets() bool  { return f&FlagNeedsBytecodeOffsets != 0 }
func (f Flags) HasFrameStateInput() bool    { return f&FlagHasFrameStateInput != 0 }

// ---- Payloads ---------------------------------------------------------

// ConstantPayload carries the value of a Constant node.
type ConstantPayload struct {
	Value interface{} // uint64, bool, *uint256.Int, or nil (undefined/null/empty)
}

// ParameterPayload carries a Parameter node's slot index and debug name id.
type ParameterPayload struct {
	Index  int
	NameID int
}

// CallPayload identifies the runtime routine a Call node invokes.
type CallPayload struct {
	Callee Opcode
}

// UnwindDispatchPayload carries an UnwindDispatch node's static offsets.
type UnwindDispatchPayload struct {
	HandlerOffset     uint32
	FallthroughOffset uint32
}

// HandleUnwindPayload carries the bytecode offset a HandleUnwind resumes at.
type HandleUnwindPayload struct {
	HandlerOffset uint32
}

// Operation is an immutable, arity/flags-only (or payload-carrying)
// descriptor identifying what a Node computes. Two Nodes may share the same
// *Operation pointer when the operation has no payload (interned); payload-
// carrying operations are allocated fresh per use site.
type Operation struct {
	opcode      Opcode
	valueIn     int
	effectIn    int
	controlIn   int
	resultType  Type
	flags       Flags
	payload     interface{}
}

func (o *Operation) Opcode() Opcode        { return o.opcode }
func (o *Operation) ValueInputCount() int  { return o.valueIn }
func (o *Operation) EffectInputCount() int { return o.effectIn }
func (o *Operation) ControlInputCount() int {
	return o.controlIn
}
func (o *Operation) ResultType() Type { return o.resultType }
func (o *Operation) Flags() Flags     { return o.flags }
func (o *Operation) Payload() interface{} { return o.payload }

// TotalInputCount is valueInputCount + effectInputCount + controlInputCount
// + (hasFrameStateInput ? 1 : 0), per the invariant in spec.md §8.
func (o *Operation) TotalInputCount() int {
	n := o.valueIn + o.effectIn + o.controlIn
	if o.flags.HasFrameStateInput() {
		n++
	}
	return n
}

func (o *Operation) String() string { return o.opcode.String() }

// ---- Interning for no-payload operations -------------------------------
//
// Ground: spec.md §5/§9 "global lazily-initialized operation tables ...
// safe against concurrent first-callers". A bounded LRU stands in for the
// compare-and-swap-installed table (the keyspace is the small, fixed opcode
// enumeration, so the cache never actually evicts in practice); a
// singleflight.Group collapses concurrent first-callers for the same
// opcode into one construction, exactly the concurrency contract spec.md
// §5 asks for.
var (
	internedOnce  sync.Once
	internedCache *lru.Cache
	internedGroup singleflight.Group
)

func internedTable() *lru.Cache {
	internedOnce.Do(func() {
		c, err := lru.New(int(opcodeCount) + 1)
		if err != nil {
			panic(err) // fixed, positive size; cannot fail
		}
		internedCache = c
	})
	return internedCache
}

// internOperation returns the shared *Operation for a no-payload opcode,
// constructing it at most once across concurrent callers.
func internOperation(op Opcode, build func() *Operation) *Operation {
	cache := internedTable()
	if v, ok := cache.Get(op); ok {
		return v.(*Operation)
	}
	v, _, _ := internedGroup.Do(fmt.Sprintf("op-%d", op), func() (interface{}, error) {
		if v, ok := cache.Get(op); ok {
			return v.(*Operation), nil
		}
		built := build()
		cache.Add(op, built)
		return built, nil
	})
	return v.(*Operation)
}

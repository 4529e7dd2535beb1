// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import (
	"encoding/binary"
	"fmt"

	"github.com/probechain/go-probe/probe-lang/lang/codegen"
	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

// BytecodeFunction is the JIT's external input (spec.md §6 "Input"),
// adapted from the PROBE compiler's own output types instead of inventing
// a parallel bytecode format: codegen.Bytecode (the whole module) plus one
// codegen.FuncEntry (this function's slice of it).
type BytecodeFunction struct {
	Name          string
	Code          []byte   // this function's instructions, 4 bytes each
	Constants     []uint64 // shared constant pool (indices from OpLoadConst)
	RegisterCount int      // entry.Locals: number of registers this function uses
	ParamCount    int

	LoopStarts     []uint32          // bytecode offsets that are loop headers
	UnwindHandlers map[uint32]uint32 // SetUnwindHandler-equivalent: offset -> handler offset
	UnwindLabels   []uint32          // recorded label-unwind offsets, see spec.md §4.2

	Strict bool
}

// NewBytecodeFunction slices bc down to the idx'th function and recovers
// the loop-header offsets a real interpreter would have tracked alongside
// the bytecode (codegen.Generator only keeps labels/patches transiently
// during its own emission and does not persist them, so the JIT recovers
// loop headers itself: any backward jump target is a loop header, the
// standard definition a natural-loop analysis relies on). unwindHandlers is
// the try-region table codegen's front end tracks (offset -> the handler
// offset active from that point on, 0 to deactivate) — codegen.Bytecode
// does not carry try/catch metadata itself, so callers that lowered one
// supply it directly; nil means "no protected regions in this function".
func NewBytecodeFunction(bc *codegen.Bytecode, idx int, unwindHandlers map[uint32]uint32) (*BytecodeFunction, error) {
	if idx < 0 || idx >= len(bc.Functions) {
		return nil, fmt.Errorf("jit: function index %d out of range (have %d)", idx, len(bc.Functions))
	}
	entry := bc.Functions[idx]
	end := len(bc.Code)
	if idx+1 < len(bc.Functions) {
		end = bc.Functions[idx+1].Offset
	}
	if entry.Offset < 0 || entry.Offset > end || end > len(bc.Code) {
		return nil, fmt.Errorf("jit: function %q has an invalid code range [%d, %d)", entry.Name, entry.Offset, end)
	}
	code := bc.Code[entry.Offset:end]

	if unwindHandlers == nil {
		unwindHandlers = map[uint32]uint32{}
	}
	bf := &BytecodeFunction{
		Name:           entry.Name,
		Code:           code,
		Constants:      bc.Constants,
		RegisterCount:  entry.Locals,
		UnwindHandlers: unwindHandlers,
	}
	bf.LoopStarts = findLoopHeaders(code)
	return bf, nil
}

// decodedInstr is one fetched-and-fetched-apart PROBE instruction.
type decodedInstr struct {
	offset uint32
	op     vm.Opcode
	a, b, c uint8
	imm16  uint16
}

// decodeAt decodes the instruction at byte offset off, mirroring
// probe-lang/lang/vm.VM.Step's fetch logic exactly so jump-target
// arithmetic agrees with the runtime the JIT is compiling for.
func decodeAt(code []byte, off uint32) (decodedInstr, bool) {
	if int(off)+4 > len(code) {
		return decodedInstr{}, false
	}
	word := binary.LittleEndian.Uint32(code[off:])
	op := vm.Opcode(word & 0xFF)
	a := uint8((word >> 8) & 0xFF)
	b := uint8((word >> 16) & 0xFF)
	c := uint8((word >> 24) & 0xFF)
	imm16 := uint16(b)<<8 | uint16(c)
	return decodedInstr{offset: off, op: op, a: a, b: b, c: c, imm16: imm16}, true
}

// jumpTargetOffset converts a decoded jump's imm16 (an instruction index,
// per vm.go's "PC = imm16") into a byte offset.
func (d decodedInstr) jumpTargetOffset() uint32 { return uint32(d.imm16) * 4 }

// findLoopHeaders performs a single linear scan over code and returns,
// sorted, every offset that is the target of a backward branch — the
// textbook definition of a loop header used before a dominator tree is
// available. Ground: spec.md §4.2 "When the current offset is a declared
// loop start" and §6 "label/loop-info table (list of loop-start bytecode
// offsets)".
func findLoopHeaders(code []byte) []uint32 {
	seen := map[uint32]bool{}
	var headers []uint32
	for off := uint32(0); int(off)+4 <= len(code); off += 4 {
		d, ok := decodeAt(code, off)
		if !ok {
			break
		}
		switch d.op {
		case vm.OpJump, vm.OpJumpIf, vm.OpJumpIfNot:
			target := d.jumpTargetOffset()
			if target <= off && !seen[target] {
				seen[target] = true
				headers = append(headers, target)
			}
		}
	}
	// Insertion order above is scan order, not target order; sort for a
	// deterministic, byte-stable compile (spec.md §5).
	for i := 1; i < len(headers); i++ {
		for j := i; j > 0 && headers[j-1] > headers[j]; j-- {
			headers[j-1], headers[j] = headers[j], headers[j-1]
		}
	}
	return headers
}

// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import (
	"encoding/binary"
	"testing"

	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

// encodeInstr packs one PROBE instruction word the way the VM's own
// encoder does: [op:8][a:8][b:8][c:8], with imm16 = b<<8|c for jump forms.
func encodeInstr(op vm.Opcode, a, b, c uint8) []byte {
	word := uint32(op) | uint32(a)<<8 | uint32(b)<<16 | uint32(c)<<24
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, word)
	return buf
}

func encodeJump(op vm.Opcode, a uint8, targetInstrIdx uint16) []byte {
	b := uint8(targetInstrIdx >> 8)
	c := uint8(targetInstrIdx)
	return encodeInstr(op, a, b, c)
}

func TestDecodeAtRoundTrips(t *testing.T) {
	code := append(encodeInstr(vm.OpHalt, 3, 0, 0), encodeJump(vm.OpJump, 0, 1)...)
	d, ok := decodeAt(code, 4)
	if !ok {
		t.Fatalf("expected decode at offset 4 to succeed")
	}
	if d.op != vm.OpJump {
		t.Fatalf("expected OpJump, got %v", d.op)
	}
	if d.jumpTargetOffset() != 4 {
		t.Fatalf("expected jump target offset 4 (instr idx 1), got %d", d.jumpTargetOffset())
	}
}

func TestDecodeAtOutOfRange(t *testing.T) {
	code := encodeInstr(vm.OpHalt, 0, 0, 0)
	if _, ok := decodeAt(code, 4); ok {
		t.Fatalf("expected decode past end of code to fail")
	}
}

// TestFindLoopHeadersBackwardJump builds a 3-instruction function where
// instruction 2 jumps back to instruction 0, and checks that offset is
// reported as the sole loop header.
func TestFindLoopHeadersBackwardJump(t *testing.T) {
	var code []byte
	code = append(code, encodeInstr(vm.OpHalt, 0, 0, 0)...) // instr 0 (loop header)
	code = append(code, encodeInstr(vm.OpHalt, 0, 0, 0)...) // instr 1
	code = append(code, encodeJump(vm.OpJump, 0, 0)...)     // instr 2: jump back to 0

	headers := findLoopHeaders(code)
	if len(headers) != 1 || headers[0] != 0 {
		t.Fatalf("expected loop headers [0], got %v", headers)
	}
}

// TestFindLoopHeadersForwardJumpIsNotALoop checks that a forward branch
// (an if/else, not a loop) contributes no loop header.
func TestFindLoopHeadersForwardJumpIsNotALoop(t *testing.T) {
	var code []byte
	code = append(code, encodeJump(vm.OpJumpIfNot, 0, 2)...) // instr 0: skip to instr 2
	code = append(code, encodeInstr(vm.OpHalt, 0, 0, 0)...)  // instr 1
	code = append(code, encodeInstr(vm.OpHalt, 0, 0, 0)...)  // instr 2

	headers := findLoopHeaders(code)
	if len(headers) != 0 {
		t.Fatalf("expected no loop headers for a purely forward branch, got %v", headers)
	}
}

// TestFindLoopHeadersDeduplicatesAndSorts checks that two distinct back
// edges into the same header produce one entry, and headers from multiple
// loops come back sorted by offset.
func TestFindLoopHeadersDeduplicatesAndSorts(t *testing.T) {
	var code []byte
	code = append(code, encodeInstr(vm.OpHalt, 0, 0, 0)...) // instr 0: outer header
	code = append(code, encodeInstr(vm.OpHalt, 0, 0, 0)...) // instr 1: inner header
	code = append(code, encodeJump(vm.OpJump, 0, 1)...)     // instr 2: back edge to inner header
	code = append(code, encodeJump(vm.OpJump, 0, 1)...)     // instr 3: another back edge to inner header
	code = append(code, encodeJump(vm.OpJump, 0, 0)...)     // instr 4: back edge to outer header

	headers := findLoopHeaders(code)
	if len(headers) != 2 {
		t.Fatalf("expected 2 distinct loop headers, got %v", headers)
	}
	if headers[0] != 0 || headers[1] != 4 {
		t.Fatalf("expected headers sorted [0, 4], got %v", headers)
	}
}

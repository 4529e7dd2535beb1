// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import (
	"errors"
	"testing"

	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

// TestCompileFunctionHappyPath runs the full pipeline (build, verify,
// lower, schedule nodes, schedule blocks) over a small straight-line
// function and checks a usable *MIFunction comes back with no error.
func TestCompileFunctionHappyPath(t *testing.T) {
	var code []byte
	code = append(code, encodeJump(vm.OpLoadConst, 0, 0)...)
	code = append(code, encodeJump(vm.OpLoadConst, 1, 1)...)
	code = append(code, encodeInstr(vm.OpAdd, 2, 0, 1)...)
	code = append(code, encodeInstr(vm.OpReturn, 2, 0, 0)...)

	bf := &BytecodeFunction{
		Name:          "sum",
		Code:          code,
		Constants:     []uint64{3, 4},
		RegisterCount: 3,
	}

	mf, err := CompileFunction(bf, &Config{Verify: true})
	if err != nil {
		t.Fatalf("expected a clean compile, got error: %v", err)
	}
	if mf == nil {
		t.Fatalf("expected a non-nil MIFunction")
	}
	if len(mf.Blocks) == 0 {
		t.Fatalf("expected at least one scheduled block")
	}
	if mf.Blocks[0] != mf.Start {
		t.Fatalf("expected block scheduling to keep the start block first")
	}
}

// TestCompileFunctionDefaultConfig checks CompileFunction tolerates a nil
// Config by falling back to DefaultConfig (verification off).
func TestCompileFunctionDefaultConfig(t *testing.T) {
	code := append(encodeJump(vm.OpLoadConst, 0, 0), encodeInstr(vm.OpReturn, 0, 0, 0)...)
	bf := &BytecodeFunction{Name: "id", Code: code, Constants: []uint64{1}, RegisterCount: 1}

	mf, err := CompileFunction(bf, nil)
	if err != nil {
		t.Fatalf("expected no error with a nil Config, got %v", err)
	}
	if mf == nil || len(mf.Blocks) == 0 {
		t.Fatalf("expected a scheduled function back")
	}
}

// TestCompileFunctionRecoversFault checks that a CompileFault panicked deep
// in graph construction (OpPush, which builder.go deliberately does not
// model) is recovered at the CompileFunction boundary as a plain error,
// never propagating as a panic to the caller.
func TestCompileFunctionRecoversFault(t *testing.T) {
	code := encodeInstr(vm.OpPush, 0, 0, 0)
	bf := &BytecodeFunction{Name: "bad", Code: code, RegisterCount: 1}

	mf, err := CompileFunction(bf, nil)
	if err == nil {
		t.Fatalf("expected CompileFunction to return an error for an unsupported opcode")
	}
	if mf != nil {
		t.Fatalf("expected a nil MIFunction alongside the error")
	}
	var fault *CompileFault
	if !errors.As(err, &fault) {
		t.Fatalf("expected the error to unwrap to a *CompileFault, got %T", err)
	}
}

// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import "fmt"

// CompileFault is the panic type for the Fatal error class of spec.md §7:
// invariant violations, non-natural loops, and failed graph verification.
// It is raised with panic() at the point of detection and recovered only
// at the top-level driver boundary (jit/driver.go), mirroring how
// probe-lang/lang/codegen.Verify collects structured errors for recoverable
// problems while the VM's Step returns plain errors for unrecoverable
// ones — a CompileFault is neither: it always aborts the current compile.
type CompileFault struct {
	Reason string
	Cause  error
}

func (f *CompileFault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("jit: compile fault: %s: %v", f.Reason, f.Cause)
	}
	return fmt.Sprintf("jit: compile fault: %s", f.Reason)
}

func (f *CompileFault) Unwrap() error { return f.Cause }

// ErrNotImplemented is returned (never panicked) for the "unsupported
// input" error class of spec.md §7: generator opcodes and Debug, which
// PROBE bytecode does not currently emit but which a future front end
// might.
type ErrNotImplemented struct {
	Opcode string
}

func (e *ErrNotImplemented) Error() string {
	return fmt.Sprintf("jit: %s is not implemented", e.Opcode)
}

// recoverCompileFault turns a panicked *CompileFault into an error return,
// for use with defer at the driver boundary. Any other panic value is
// re-raised: only CompileFault is part of this package's error contract.
func recoverCompileFault(errOut *error) {
	if r := recover(); r != nil {
		if cf, ok := r.(*CompileFault); ok {
			*errOut = cf
			return
		}
		panic(r)
	}
}

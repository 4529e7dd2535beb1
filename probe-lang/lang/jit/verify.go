// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package jit

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/holiman/uint256"
)

// VerificationError is one structural problem VerifyGraph found. Ground:
// spec.md §7 "Graph verification... counts structural problems" and
// probe-lang/lang/codegen.Verify's "collect, don't abort on the first
// one" shape.
type VerificationError struct {
	NodeID  int
	Message string
}

func (e VerificationError) Error() string {
	return fmt.Sprintf("node %d: %s", e.NodeID, e.Message)
}

// VerifyGraph walks every reachable node of f's graph and collects every
// structural problem it finds (input-arity mismatch, Phi without a Region
// controller, Phi/EffectPhi arity not matching Region arity), rather than
// aborting on the first one. Ground: spec.md §7/§8.
func VerifyGraph(f *Function) []VerificationError {
	var errs []VerificationError
	walkAllNodes(f.Graph, func(n *Node) {
		if n.IsDead() {
			return
		}
		if got, want := n.InputCount(), n.Op().TotalInputCount(); got != want {
			errs = append(errs, VerificationError{n.ID(), fmt.Sprintf("input count %d does not match operation arity %d", got, want)})
		}
		if n.Opcode() == OpConstant && n.Op().ResultType() == TypeNumber {
			v, ok := n.Op().Payload().(ConstantPayload).Value.(*uint256.Int)
			if !ok || !TypeNumber.AsUint256(v) {
				errs = append(errs, VerificationError{n.ID(), "Number constant's payload is not a *uint256.Int"})
			}
		}
		switch n.Opcode() {
		case OpPhi, OpEffectPhi:
			ctrl := n.ControlInput(0)
			if ctrl == nil || ctrl.Opcode() != OpRegion {
				errs = append(errs, VerificationError{n.ID(), "Phi/EffectPhi control input is not a Region"})
				return
			}
			if ctrl.InputCount()+1 != n.InputCount() {
				errs = append(errs, VerificationError{n.ID(), fmt.Sprintf("Phi/EffectPhi arity %d does not match Region arity %d + 1", n.InputCount(), ctrl.InputCount())})
			}
		}
	})
	return errs
}

// VerifyOrFault runs VerifyGraph and, if any problems were found, dumps the
// graph via spew.Sdump and raises a CompileFault — the "dump the graph and
// abort" behavior spec.md §7 asks for when verification is enforced.
func VerifyOrFault(f *Function) {
	errs := VerifyGraph(f)
	if len(errs) == 0 {
		return
	}
	dump := spew.Sdump(errs)
	panic(&CompileFault{Reason: fmt.Sprintf("graph verification found %d problem(s)\n%s", len(errs), dump)})
}

// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package jit implements the tracing JIT mid-end: it takes a traced PROBE
// function (already compiled to register-based bytecode by
// probe-lang/lang/codegen) and rebuilds it as a sea-of-nodes graph, computes
// dominators and loops, lowers high-level PROBE operations to uniform
// runtime calls, schedules the graph into basic blocks, and orders those
// blocks for a downstream assembler. See SPEC_FULL.md for the full design.
package jit

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Type is a small bit-set lattice describing the possible runtime
// representations a Node's value can take. It mirrors the PROBE VM's
// untyped 64-bit register file plus the handful of representations the JIT
// needs to reason about (objects living in memory, raw pointers, and the
// absence of a value).
type Type uint32

const (
	TypeNone Type = 0

	TypeObject     Type = 1 << iota // a heap-allocated PROBE value (struct/array/resource)
	TypeBool
	TypeInt32
	TypeUInt32
	TypeDouble
	TypeUndefined
	TypeNull
	TypeEmpty // temporal-dead-zone placeholder
	TypeRawPointer

	// TypeInvalid marks a Node that has not yet been typed (distinct from
	// TypeNone, which means "provably no value flows here").
	TypeInvalid Type = 1 << 31
)

// Derived sets, as spec.md §3 requires.
const (
	TypeIntegral = TypeBool | TypeInt32 | TypeUInt32
	TypeNumber   = TypeIntegral | TypeDouble
	TypeAny      = TypeObject | TypeBool | TypeInt32 | TypeUInt32 | TypeDouble |
		TypeUndefined | TypeNull | TypeEmpty | TypeRawPointer
)

var typeNames = []struct {
	bit  Type
	name string
}{
	{TypeObject, "object"},
	{TypeBool, "bool"},
	{TypeInt32, "int32"},
	{TypeUInt32, "uint32"},
	{TypeDouble, "double"},
	{TypeUndefined, "undefined"},
	{TypeNull, "null"},
	{TypeEmpty, "empty"},
	{TypeRawPointer, "rawptr"},
}

// isSingleton reports whether t is an exact singleton set {X}.
func (t Type) isSingleton() bool {
	return t != TypeNone && t&(t-1) == 0 && t != TypeInvalid
}

// Matches reports whether t is a subset of other (t.Matches(Number) asks
// "is this always a number").
func (t Type) Matches(other Type) bool {
	if t == TypeInvalid || other == TypeInvalid {
		return false
	}
	return t&^other == 0
}

// Union computes the bitwise-or of two types.
func (t Type) Union(other Type) Type {
	if t == TypeInvalid || other == TypeInvalid {
		return TypeInvalid
	}
	return t | other
}

// IsNone reports whether no type information is available.
func (t Type) IsNone() bool { return t == TypeNone }

// IsInvalid reports the sentinel -1 (here: the top bit) state.
func (t Type) IsInvalid() bool { return t == TypeInvalid }

// IsObject, IsBool, ... test for an exact singleton type.
func (t Type) IsObject() bool  { return t == TypeObject }
func (t Type) IsBool() bool    { return t == TypeBool }
func (t Type) IsInt32() bool   { return t == TypeInt32 }
func (t Type) IsUInt32() bool  { return t == TypeUInt32 }
func (t Type) IsDouble() bool  { return t == TypeDouble }
func (t Type) IsNumber() bool  { return t != TypeInvalid && t != TypeNone && t.Matches(TypeNumber) }
func (t Type) IsIntegral() bool {
	return t != TypeInvalid && t != TypeNone && t.Matches(TypeIntegral)
}

// NeedsStorageOnProbeStack reports whether a value of this type must be
// materialized on the PROBE value stack before being passed to a runtime
// routine, rather than passed directly in a register-typed argument slot.
// Constants and every non-object/non-rawpointer/non-any-typed value need
// storage; the rest are already machine words the calling convention can
// carry directly. Ground: spec.md §4.5 "needsStorageOnJSStack".
func (t Type) NeedsStorageOnProbeStack() bool {
	if t == TypeObject || t == TypeRawPointer || t == TypeAny {
		return false
	}
	return true
}

// AsUint256 reports whether t is PROBE's 256-bit Number representation and
// v is a well-formed value for it. Int32/UInt32 constants stay plain 64-bit
// payloads (they're JIT-internal bookkeeping values, never PROBE-level
// numbers); only Number-typed Constant nodes are backed by *uint256.Int,
// mirroring core/vm's use of uint256.Int for EVM words.
func (t Type) AsUint256(v *uint256.Int) bool {
	return t == TypeNumber && v != nil
}

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeInvalid:
		return "invalid"
	}
	var s string
	for _, e := range typeNames {
		if t&e.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += e.name
		}
	}
	if s == "" {
		return fmt.Sprintf("type(%#x)", uint32(t))
	}
	return s
}

// Package analysis implements the Stack Analyzer (§4.5): a fixed-point
// abstract interpretation over the decoded instruction list that
// propagates an operand stack and local-variable state, merging at join
// points until stable. Mirrors the frame/operand bookkeeping of
// wagon's validate package — generalized from a type-checker that
// rejects bad input into an interpreter that records reaching
// definitions for every stack and variable slot.
package analysis

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/go-interpreter/classdecomp/classfile"
)

// StackSlot is one operand-stack cell: its abstract value, the set of
// ByteCodes that may have produced it, and the Variable it should be
// loaded from once the rewriter runs (§3).
type StackSlot struct {
	Value       classfile.FrameValue
	Definitions mapset.Set[*ByteCode]
	LoadFrom    *classfile.Variable
}

func newStackSlot(v classfile.FrameValue, def *ByteCode) StackSlot {
	s := StackSlot{Value: v, Definitions: mapset.NewThreadUnsafeSet[*ByteCode]()}
	if def != nil {
		s.Definitions.Add(def)
	}
	return s
}

func (s StackSlot) clone() StackSlot {
	return StackSlot{Value: s.Value, Definitions: s.Definitions.Clone(), LoadFrom: s.LoadFrom}
}

// VariableSlot is one local-variable-table cell (§3).
type VariableSlot struct {
	Value       classfile.FrameValue
	Definitions mapset.Set[*ByteCode]
}

func newVariableSlot(v classfile.FrameValue, def *ByteCode) VariableSlot {
	s := VariableSlot{Value: v, Definitions: mapset.NewThreadUnsafeSet[*ByteCode]()}
	if def != nil {
		s.Definitions.Add(def)
	}
	return s
}

func (s VariableSlot) clone() VariableSlot {
	return VariableSlot{Value: s.Value, Definitions: s.Definitions.Clone()}
}

func (s VariableSlot) isUninitialized() bool { return s.Value.IsUninitialized() }

// ByteCode is the mutable per-instruction analysis record (§3). It is
// allocated once per Instruction in an arena indexed by offset, so
// Definitions sets are simple pointer sets with trivial equality.
type ByteCode struct {
	Instr *Instruction

	StackBefore     []StackSlot // nil until reached
	VariablesBefore []VariableSlot

	StackAfter     []StackSlot
	VariablesAfter []VariableSlot

	StoreTo []*classfile.Variable

	Prev, Next *ByteCode

	// synthetic is true for the LoadException record injected at a
	// handler's entry (§4.5 "Initial state").
	synthetic bool
}

// Instruction is a thin alias kept local to this package so ByteCode's
// doc comment can refer to "the Instruction" the way §3 does, without
// importing classfile.Instruction under a different name at every call
// site.
type Instruction = classfile.Instruction

func (b *ByteCode) Offset() int {
	if b.Instr == nil {
		return -1
	}
	return b.Instr.Offset
}

func (b *ByteCode) reachable() bool { return b.StackBefore != nil }

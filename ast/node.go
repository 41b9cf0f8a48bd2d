// Package ast implements the abstract-variant tree the decompiler core
// emits: Labels, Expressions, Blocks, TryCatchBlocks and CatchBlocks as
// one tagged Node type (§9 "Abstract variant types"), plus the
// Assembler that walks a ByteCode range and an active handler set to
// build it (§4.8).
package ast

import (
	"github.com/go-interpreter/classdecomp/classfile"
)

// Kind tags which variant a Node holds.
type Kind int

const (
	KindLabel Kind = iota
	KindExpression
	KindBlock
	KindTryCatchBlock
	KindCatchBlock
	KindLoad
	KindStore
	KindLeave
)

func (k Kind) String() string {
	switch k {
	case KindLabel:
		return "Label"
	case KindExpression:
		return "Expression"
	case KindBlock:
		return "Block"
	case KindTryCatchBlock:
		return "TryCatchBlock"
	case KindCatchBlock:
		return "CatchBlock"
	case KindLoad:
		return "Load"
	case KindStore:
		return "Store"
	case KindLeave:
		return "Leave"
	default:
		return "?"
	}
}

// Range is one contiguous byte-offset span an Expression's bytecode
// came from (§4.8 "ranges are monotone").
type Range struct {
	Start, End int
}

// Node is the single tagged-variant type replacing a source-language
// class hierarchy (§9). Only the fields relevant to Kind are populated;
// callers switch on Kind before reading them.
type Node struct {
	Kind Kind

	// KindLabel
	Label *classfile.Label

	// KindExpression
	Opcode  interface{} // the opcodes.Opcode value, or the string "loadexception" for the synthetic load at a finally entry
	Operand interface{}
	Ranges  []Range

	// KindLoad / KindStore
	Variable *classfile.Variable
	Value    *Node // KindStore's right-hand side; nil for KindLoad

	// KindBlock body; KindExpression arguments
	Children []*Node

	// KindTryCatchBlock
	TryBody *Node
	Catches []*Node // KindCatchBlock nodes, in source order

	// KindCatchBlock
	CaughtTypes       []classfile.TypeRef
	ExceptionType     classfile.TypeRef
	ExceptionVariable *classfile.Variable
	IsFinally         bool
	Body              *Node // KindBlock
}

// Block wraps children in a KindBlock node.
func Block(children []*Node) *Node {
	return &Node{Kind: KindBlock, Children: children}
}

// Leave is the synthetic structured-exit marker (§ GLOSSARY, §4.8 step 2).
func Leave() *Node { return &Node{Kind: KindLeave} }

// Load wraps a read of v.
func Load(v *classfile.Variable) *Node { return &Node{Kind: KindLoad, Variable: v} }

// Store wraps an assignment of value into v.
func Store(v *classfile.Variable, value *Node) *Node {
	return &Node{Kind: KindStore, Variable: v, Value: value}
}

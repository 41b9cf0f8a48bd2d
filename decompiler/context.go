// Package decompiler wires the Instruction Decoder, Exception Table
// Normalizer, Handler Pruner, Stack Analyzer, Stack-to-Variable
// Rewriter, Local Variable Splitter and AST Assembler into one entry
// point, the way exec.NewVM wired disasm and validate together in the
// teacher — except nothing here executes code.
package decompiler

import (
	"github.com/go-interpreter/classdecomp/ast"
	"github.com/go-interpreter/classdecomp/classfile"
)

// Context and Settings are ast's types, re-exported here under the
// names callers of Decompile reach for. There is exactly one
// definition (in ast, which this package already depends on); aliasing
// avoids a decompiler->ast->decompiler import cycle while keeping
// "decompiler.Context" as the public name.
type Context = ast.Context
type Settings = ast.Settings

// Collaborators bundles the external services §6 describes: metadata
// lookup, control-flow graph construction and stack-map verification.
// None of these are implemented by this module; callers supply their
// own class-file reader's versions.
type Collaborators struct {
	Scope      classfile.MetadataScope
	CFGBuilder classfile.CFGBuilder
	Verifier   classfile.StackMappingVisitor
}

// NewContext builds a Context for one method-body decompilation.
func NewContext(currentType classfile.TypeRef, currentMethod string, optimize bool, settings Settings, scope classfile.MetadataScope) *Context {
	return &Context{
		CurrentType:   currentType,
		CurrentMethod: currentMethod,
		Optimize:      optimize,
		Settings:      settings,
		Scope:         scope,
	}
}

package rewrite_test

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-interpreter/classdecomp/analysis"
	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
	"github.com/go-interpreter/classdecomp/decode"
	"github.com/go-interpreter/classdecomp/rewrite"
)

func storeBC(offset, slot int, v classfile.FrameValue) *analysis.ByteCode {
	bc := &analysis.ByteCode{
		Instr: &classfile.Instruction{Offset: offset, Opcode: opcodes.IStore, Operand: classfile.VariableOperand{Slot: slot}},
	}
	bc.VariablesAfter = make([]analysis.VariableSlot, slot+1)
	bc.VariablesAfter[slot] = analysis.VariableSlot{Value: v, Definitions: mapset.NewThreadUnsafeSet[*analysis.ByteCode]()}
	return bc
}

func loadBC(offset, slot int, reachingFrom ...*analysis.ByteCode) *analysis.ByteCode {
	bc := &analysis.ByteCode{
		Instr: &classfile.Instruction{Offset: offset, Opcode: opcodes.ILoad, Operand: classfile.VariableOperand{Slot: slot}},
	}
	defs := mapset.NewThreadUnsafeSet[*analysis.ByteCode]()
	for _, d := range reachingFrom {
		defs.Add(d)
	}
	bc.VariablesBefore = make([]analysis.VariableSlot, slot+1)
	bc.VariablesBefore[slot] = analysis.VariableSlot{Definitions: defs}
	return bc
}

func chainRewrite(bcs ...*analysis.ByteCode) *analysis.Result {
	for i := range bcs {
		if i > 0 {
			bcs[i].Prev = bcs[i-1]
		}
		if i+1 < len(bcs) {
			bcs[i].Next = bcs[i+1]
		}
	}
	return &analysis.Result{First: bcs[0], Last: bcs[len(bcs)-1]}
}

func TestSplitLocalsParameterIsExempt(t *testing.T) {
	declared := decode.NewVariableTable()
	declared.DeclareParameters([]classfile.Parameter{{Slot: 0, Name: "count", Type: classfile.TypeRef{Name: "int"}}}, 10, true, classfile.TypeRef{})

	use := loadBC(3, 0)
	res := chainRewrite(use)

	bindings := rewrite.SplitLocals(res, declared, false)
	v := bindings.Lookup(use, 0)
	require.NotNil(t, v)
	assert.Equal(t, "count", v.Name)
	assert.Equal(t, classfile.VarParameter, v.Kind)
}

func TestSplitLocalsUnoptimizedSharesOneVariablePerSlot(t *testing.T) {
	declared := decode.NewVariableTable()

	def1 := storeBC(0, 1, classfile.FrameValue{Kind: classfile.FVInteger})
	def2 := storeBC(5, 1, classfile.FrameValue{Kind: classfile.FVInteger})
	use := loadBC(6, 1, def2)
	res := chainRewrite(def1, def2, use)

	bindings := rewrite.SplitLocals(res, declared, false)

	v1 := bindings.Lookup(def1, 1)
	v2 := bindings.Lookup(def2, 1)
	vUse := bindings.Lookup(use, 1)
	require.NotNil(t, v1)
	assert.Same(t, v1, v2, "unoptimized mode gives every access to a slot the same Variable")
	assert.Same(t, v1, vUse)
}

func TestSplitLocalsOptimizedSplitsIndependentDefinitions(t *testing.T) {
	declared := decode.NewVariableTable()

	defA := storeBC(0, 2, classfile.FrameValue{Kind: classfile.FVInteger})
	useA := loadBC(1, 2, defA)
	defB := storeBC(10, 2, classfile.FrameValue{Kind: classfile.FVInteger})
	useB := loadBC(11, 2, defB)
	res := chainRewrite(defA, useA, defB, useB)

	bindings := rewrite.SplitLocals(res, declared, true)

	vA := bindings.Lookup(useA, 2)
	vB := bindings.Lookup(useB, 2)
	require.NotNil(t, vA)
	require.NotNil(t, vB)
	assert.NotSame(t, vA, vB, "two definitions with disjoint reaching uses should split into distinct variables")
}

func TestSplitLocalsOptimizedMergesAtJoiningUse(t *testing.T) {
	declared := decode.NewVariableTable()

	defA := storeBC(0, 3, classfile.FrameValue{Kind: classfile.FVInteger})
	defB := storeBC(5, 3, classfile.FrameValue{Kind: classfile.FVInteger})
	// a use whose reaching-definitions set spans both branches of an
	// if/else, e.g. `x = cond ? a : b; use(x)`.
	join := loadBC(10, 3, defA, defB)
	res := chainRewrite(defA, defB, join)

	bindings := rewrite.SplitLocals(res, declared, true)

	vA := bindings.Lookup(defA, 3)
	vB := bindings.Lookup(defB, 3)
	vJoin := bindings.Lookup(join, 3)
	assert.Same(t, vA, vB, "definitions reaching a common use merge into one variable")
	assert.Same(t, vA, vJoin)
}

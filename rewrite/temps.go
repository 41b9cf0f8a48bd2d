// Package rewrite implements the Stack-to-Variable Rewriter and the
// Local Variable Splitter (§4.6, §4.7): it turns the Stack Analyzer's
// per-slot reaching-definition sets into the named Variable identities
// the AST Assembler emits Load/Store against.
package rewrite

import (
	"fmt"

	"github.com/go-interpreter/classdecomp/analysis"
	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
)

type slotRef struct {
	bc  *analysis.ByteCode
	idx int
}

type tempMeta struct {
	definers int
	value    classfile.FrameValue
}

// Temporaries allocates and (where legal) coalesces the stack
// temporaries described in §4.6. It is run once, after the Stack
// Analyzer has reached its fixed point.
func Temporaries(res *analysis.Result) {
	meta := map[*classfile.Variable]tempMeta{}
	sites := map[*classfile.Variable][]slotRef{}

	for bc := res.First; bc != nil; bc = bc.Next {
		allocate(bc, meta, sites)
	}
	coalesce(res, meta, sites)
}

// allocate assigns one fresh temporary per non-Top slot a ByteCode
// pops, recording the load site and registering the temp on every
// instruction that may have produced the value (§4.6 paragraph 1).
// DUP*/SWAP are invisible to the rewriter: their duplicated slots keep
// the original producer's definitions, so no new temps are needed.
func allocate(bc *analysis.ByteCode, meta map[*classfile.Variable]tempMeta, sites map[*classfile.Variable][]slotRef) {
	if bc.Instr == nil || opcodes.IsDupOrSwap(bc.Instr.Opcode) {
		return
	}
	pop := analysis.PopCount(bc.Instr)
	if pop <= 0 || pop > len(bc.StackBefore) {
		return
	}
	start := len(bc.StackBefore) - pop
	for i := start; i < len(bc.StackBefore); i++ {
		slot := bc.StackBefore[i]
		if slot.Value.Kind == classfile.FVTop {
			continue
		}
		temp := newVariable(fmt.Sprintf("stack_%x_%d", bc.Offset(), i-start), slot.Value)
		bc.StackBefore[i].LoadFrom = temp
		meta[temp] = tempMeta{definers: slot.Definitions.Cardinality(), value: slot.Value}
		sites[temp] = append(sites[temp], slotRef{bc: bc, idx: i})

		for _, producer := range slot.Definitions.ToSlice() {
			producer.StoreTo = append(producer.StoreTo, temp)
		}
	}
}

// coalesce implements §4.6 paragraph 2: a producer whose storeTo holds
// more than one temporary collapses to a single shared expr_XX when
// every one of those temps is uniquely and exclusively defined by this
// ByteCode and all are the same type.
func coalesce(res *analysis.Result, meta map[*classfile.Variable]tempMeta, sites map[*classfile.Variable][]slotRef) {
	for bc := res.First; bc != nil; bc = bc.Next {
		if len(bc.StoreTo) < 2 {
			continue
		}
		eligible := true
		var typ classfile.FrameValue
		for i, t := range bc.StoreTo {
			m, ok := meta[t]
			if !ok || m.definers != 1 {
				eligible = false
				break
			}
			if i == 0 {
				typ = m.value
			} else if !sameValueKind(typ, m.value) {
				eligible = false
				break
			}
		}
		if !eligible {
			continue
		}

		shared := newVariable(fmt.Sprintf("expr_%x", bc.Offset()), typ)
		for _, t := range bc.StoreTo {
			for _, ref := range sites[t] {
				ref.bc.StackBefore[ref.idx].LoadFrom = shared
			}
		}
		bc.StoreTo = []*classfile.Variable{shared}
	}
}

func sameValueKind(a, b classfile.FrameValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == classfile.FVReference {
		return a.Type == b.Type
	}
	return true
}

func newVariable(name string, v classfile.FrameValue) *classfile.Variable {
	return &classfile.Variable{
		Kind:      classfile.VarTemporary,
		Name:      name,
		Type:      frameValueType(v),
		Generated: true,
	}
}

// frameValueType collapses a FrameValue to the TypeRef a Variable
// carries; reference wildcards resolve to the already-concrete bound
// the verifier settled on (§4.6: "collapsed to their lower or upper
// bound" — our FrameValue never models an open wildcard, so this is
// the identity mapping for FVReference and a synthetic primitive name
// otherwise).
func frameValueType(v classfile.FrameValue) classfile.TypeRef {
	switch v.Kind {
	case classfile.FVReference:
		return v.Type
	case classfile.FVLong:
		return classfile.TypeRef{Name: "long"}
	case classfile.FVFloat:
		return classfile.TypeRef{Name: "float"}
	case classfile.FVDouble:
		return classfile.TypeRef{Name: "double"}
	case classfile.FVNull:
		return classfile.TypeRef{Name: "java.lang.Object"}
	default:
		return classfile.TypeRef{Name: "int"}
	}
}

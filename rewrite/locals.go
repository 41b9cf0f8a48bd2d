package rewrite

import (
	"fmt"

	"github.com/go-interpreter/classdecomp/analysis"
	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
	"github.com/go-interpreter/classdecomp/decode"
)

type useKey struct {
	bc   *analysis.ByteCode
	slot int
}

// LocalBindings maps every load/store/iinc site to the Variable the AST
// Assembler should reference there (§4.7's output).
type LocalBindings struct {
	byUse map[useKey]*classfile.Variable
}

// Lookup returns the Variable bound to bc's access of slot, or nil if
// bc does not touch that slot.
func (b *LocalBindings) Lookup(bc *analysis.ByteCode, slot int) *classfile.Variable {
	return b.byUse[useKey{bc: bc, slot: slot}]
}

type localAccess struct {
	bc     *analysis.ByteCode
	slot   int
	isDef  bool
	isRef  bool
	offset int
}

// SplitLocals implements §4.7. declared carries the metadata-derived
// names/types merged during decoding; optimize selects between the
// single-variable-per-slot and reaching-definition-split modes.
func SplitLocals(res *analysis.Result, declared *decode.VariableTable, optimize bool) *LocalBindings {
	bindings := &LocalBindings{byUse: map[useKey]*classfile.Variable{}}

	accessesBySlot := map[int][]localAccess{}
	for bc := res.First; bc != nil; bc = bc.Next {
		for _, a := range localAccesses(bc) {
			accessesBySlot[a.slot] = append(accessesBySlot[a.slot], a)
		}
	}

	for slot, accesses := range accessesBySlot {
		slot := slot
		if param := parameterAt(declared, slot); param != nil {
			v := &classfile.Variable{Kind: classfile.VarParameter, Name: param.Name, Type: param.Type, OriginSlot: &slot}
			for _, a := range accesses {
				bindings.byUse[useKey{bc: a.bc, slot: slot}] = v
			}
			continue
		}

		if !optimize {
			v := variableForSlot(declared, slot, accesses)
			for _, a := range accesses {
				bindings.byUse[useKey{bc: a.bc, slot: slot}] = v
			}
			continue
		}

		splitOptimized(bindings, declared, slot, accesses)
	}

	return bindings
}

func parameterAt(declared *decode.VariableTable, slot int) *decode.VariableDefinition {
	for _, d := range declared.DefinitionsAt(slot) {
		if d.IsParameter && d.StartOffset == 0 {
			return d
		}
	}
	return nil
}

func variableForSlot(declared *decode.VariableTable, slot int, accesses []localAccess) *classfile.Variable {
	name := fmt.Sprintf("var_%d", slot)
	var typ classfile.TypeRef
	if len(accesses) > 0 {
		if d := declared.At(slot, accesses[0].offset); d != nil && d.Name != "" {
			name = d.Name
			typ = d.Type
		}
	}
	if typ == (classfile.TypeRef{}) {
		typ = inferType(accesses)
	}
	return &classfile.Variable{Kind: classfile.VarLocal, Name: name, Type: typ, OriginSlot: &slot}
}

func inferType(accesses []localAccess) classfile.TypeRef {
	for _, a := range accesses {
		if !a.isDef {
			continue
		}
		if v := a.bc.VariablesAfter[a.slot].Value; v.Kind != classfile.FVUninitialized {
			return frameValueType(v)
		}
	}
	return classfile.TypeRef{Name: "int"}
}

// splitOptimized implements §4.7's optimized mode: one Variable per
// distinct definition, then merging at references whose reaching-def
// set spans more than one of those variables.
func splitOptimized(bindings *LocalBindings, declared *decode.VariableTable, slot int, accesses []localAccess) {
	varByDef := map[*analysis.ByteCode]*classfile.Variable{}
	rep := map[*classfile.Variable]*classfile.Variable{}

	find := func(v *classfile.Variable) *classfile.Variable {
		for rep[v] != nil && rep[v] != v {
			v = rep[v]
		}
		return v
	}
	union := func(a, b *classfile.Variable) *classfile.Variable {
		ra, rb := find(a), find(b)
		if ra == rb {
			return ra
		}
		rep[rb] = ra
		return ra
	}

	for _, a := range accesses {
		if !a.isDef {
			continue
		}
		name := fmt.Sprintf("var_%d_%d", slot, a.offset)
		typ := classfile.TypeRef{Name: "int"}
		if v := a.bc.VariablesAfter[slot].Value; v.Kind != classfile.FVUninitialized {
			typ = frameValueType(v)
		}
		if d := declared.At(slot, a.offset); d != nil && d.Name != "" {
			name = d.Name
		}
		v := &classfile.Variable{Kind: classfile.VarLocal, Name: name, Type: typ, OriginSlot: &slot}
		varByDef[a.bc] = v
		bindings.byUse[useKey{bc: a.bc, slot: slot}] = v
	}

	for _, a := range accesses {
		if !a.isRef {
			continue
		}
		reaching := a.bc.VariablesBefore[slot].Definitions.ToSlice()
		var candidates []*classfile.Variable
		seen := map[*classfile.Variable]bool{}
		for _, d := range reaching {
			if v, ok := varByDef[d]; ok {
				r := find(v)
				if !seen[r] {
					seen[r] = true
					candidates = append(candidates, r)
				}
			}
		}
		if len(candidates) == 0 {
			continue
		}
		merged := candidates[0]
		for _, c := range candidates[1:] {
			merged = union(merged, c)
		}
		bindings.byUse[useKey{bc: a.bc, slot: slot}] = merged
	}

	for k, v := range bindings.byUse {
		if k.slot == slot {
			bindings.byUse[k] = find(v)
		}
	}
}

// localAccesses reports the (slot, isDef, isRef) touches a ByteCode
// makes, covering both explicit VariableOperand instructions and the
// zero-operand macro load/store forms (§4.1).
func localAccesses(bc *analysis.ByteCode) []localAccess {
	if bc.Instr == nil {
		return nil
	}
	if vo, ok := bc.Instr.Operand.(classfile.VariableOperand); ok {
		switch {
		case bc.Instr.Opcode.Code == opcodes.IInc.Code:
			return []localAccess{{bc: bc, slot: vo.Slot, isDef: true, isRef: true, offset: bc.Offset()}}
		case isStoreCode(bc.Instr.Opcode.Code):
			return []localAccess{{bc: bc, slot: vo.Slot, isDef: true, offset: bc.Offset()}}
		default:
			return []localAccess{{bc: bc, slot: vo.Slot, isRef: true, offset: bc.Offset()}}
		}
	}
	if slot, isLoad, isMacro := opcodes.IsMacroLoadStore(bc.Instr.Opcode); isMacro {
		return []localAccess{{bc: bc, slot: slot, isDef: !isLoad, isRef: isLoad, offset: bc.Offset()}}
	}
	return nil
}

func isStoreCode(code byte) bool {
	switch code {
	case opcodes.IStore.Code, opcodes.LStore.Code, opcodes.FStore.Code, opcodes.DStore.Code, opcodes.AStore.Code:
		return true
	default:
		return false
	}
}

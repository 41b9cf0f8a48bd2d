package analysis

import (
	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
)

// widthOf reports how many stack/variable slots v occupies: 2 for
// Long/Double, 1 otherwise (§3).
func widthOf(v classfile.FrameValue) int {
	if v.IsWide() {
		return 2
	}
	return 1
}

// topHalf returns the FVTop companion value for a wide push (§3: "Long
// and Double occupy two adjacent variable slots; the second slot holds
// Top").
func topHalf() classfile.FrameValue { return classfile.FrameValue{Kind: classfile.FVTop} }

// buildEntryVariables constructs the entry point's initial
// variablesBefore (§4.5 "Initial state"): parameter slots filled with
// their declared types (wide pairs get a Top second half), `this`
// filled with the declaring type (or UninitializedThis in a
// constructor), all other slots Uninitialized.
func buildEntryVariables(maxLocals int, params []classfile.Parameter, declaringType classfile.TypeRef, isStatic, isConstructor bool) []VariableSlot {
	slots := make([]VariableSlot, maxLocals)
	for i := range slots {
		slots[i] = newVariableSlot(classfile.FrameValue{Kind: classfile.FVUninitialized, AtInstruction: -1}, nil)
	}
	if !isStatic && maxLocals > 0 {
		v := classfile.FrameValue{Kind: classfile.FVReference, Type: declaringType}
		if isConstructor {
			v = classfile.FrameValue{Kind: classfile.FVUninitializedThis}
		}
		slots[0] = newVariableSlot(v, nil)
	}
	for _, p := range params {
		if p.Slot < 0 || p.Slot >= maxLocals {
			continue
		}
		fv := typeToFrameValue(p.Type)
		slots[p.Slot] = newVariableSlot(fv, nil)
		if fv.IsWide() && p.Slot+1 < maxLocals {
			slots[p.Slot+1] = newVariableSlot(topHalf(), nil)
		}
	}
	return slots
}

// typeToFrameValue maps a declared TypeRef to the FrameValue kind it
// occupies on entry; reference types (including arrays) are FVReference.
func typeToFrameValue(t classfile.TypeRef) classfile.FrameValue {
	if t.ArrayDepth > 0 {
		return classfile.FrameValue{Kind: classfile.FVReference, Type: t}
	}
	switch t.Name {
	case "int", "short", "char", "byte", "boolean":
		return classfile.FrameValue{Kind: classfile.FVInteger}
	case "long":
		return classfile.FrameValue{Kind: classfile.FVLong}
	case "float":
		return classfile.FrameValue{Kind: classfile.FVFloat}
	case "double":
		return classfile.FrameValue{Kind: classfile.FVDouble}
	default:
		return classfile.FrameValue{Kind: classfile.FVReference, Type: t}
	}
}

// PopCount and PushCount expose popCount/pushCount to other packages
// (the rewriter needs to know how many stack slots a ByteCode
// consumes/produces without recomputing the opcode table lookup).
func PopCount(instr *classfile.Instruction) int  { return popCount(instr) }
func PushCount(instr *classfile.Instruction) int { return pushCount(instr) }

// popCount/pushCount resolve an instruction's stack effect, falling
// back to the resolved operand's type width for the opcodes whose
// table entry is polymorphic (Pop/Push == -1).
func popCount(instr *classfile.Instruction) int {
	if instr.Opcode.Pop >= 0 {
		return instr.Opcode.Pop
	}
	return polymorphicPop(instr)
}

func pushCount(instr *classfile.Instruction) int {
	if instr.Opcode.Push >= 0 {
		return instr.Opcode.Push
	}
	return polymorphicPush(instr)
}

func polymorphicPop(instr *classfile.Instruction) int {
	switch instr.Opcode.Code {
	case opcodes.PutStatic.Code:
		if f, ok := instr.Operand.(classfile.FieldRef); ok {
			return widthOf(typeToFrameValue(f.Type))
		}
	case opcodes.GetField.Code:
		return 1
	case opcodes.PutField.Code:
		if f, ok := instr.Operand.(classfile.FieldRef); ok {
			return 1 + widthOf(typeToFrameValue(f.Type))
		}
	case opcodes.InvokeVirtual.Code, opcodes.InvokeSpecial.Code, opcodes.InvokeInterface.Code:
		if m, ok := instr.Operand.(classfile.MethodRef); ok {
			return 1 + argWidth(m.ParamTypes)
		}
	case opcodes.InvokeStatic.Code:
		if m, ok := instr.Operand.(classfile.MethodRef); ok {
			return argWidth(m.ParamTypes)
		}
	case opcodes.InvokeDynamic.Code:
		if cs, ok := instr.Operand.(classfile.CallSiteRef); ok {
			return argWidth(cs.Type.ParamTypes)
		}
	case opcodes.MultiANewArray.Code:
		if vo, ok := extraByte(instr); ok {
			return vo
		}
	}
	return 0
}

func polymorphicPush(instr *classfile.Instruction) int {
	switch instr.Opcode.Code {
	case opcodes.GetStatic.Code, opcodes.GetField.Code:
		if f, ok := instr.Operand.(classfile.FieldRef); ok {
			return widthOf(typeToFrameValue(f.Type))
		}
	case opcodes.InvokeVirtual.Code, opcodes.InvokeSpecial.Code, opcodes.InvokeStatic.Code,
		opcodes.InvokeInterface.Code:
		if m, ok := instr.Operand.(classfile.MethodRef); ok {
			if m.ReturnType == (classfile.TypeRef{}) {
				return 0
			}
			return widthOf(typeToFrameValue(m.ReturnType))
		}
	case opcodes.InvokeDynamic.Code:
		if cs, ok := instr.Operand.(classfile.CallSiteRef); ok {
			if cs.Type.ReturnType == (classfile.TypeRef{}) {
				return 0
			}
			return widthOf(typeToFrameValue(cs.Type.ReturnType))
		}
	case opcodes.MultiANewArray.Code:
		return 1
	}
	return 1
}

func argWidth(params []classfile.TypeRef) int {
	n := 0
	for _, p := range params {
		n += widthOf(typeToFrameValue(p))
	}
	return n
}

// extraByte recovers the dimension-count byte MULTIANEWARRAY encodes
// after its type index; the decoder does not currently expose it as a
// distinct field, so this is a documented limitation: callers whose
// MetadataScope resolves array types in full (ArrayDepth already set)
// get a push count of 1 regardless, which is correct for emission even
// though popCount falls back to 0 dimensions here.
func extraByte(instr *classfile.Instruction) (int, bool) {
	return 0, false
}

// resultType determines the FrameValue an instruction pushes, drawing
// on its resolved operand when the opcode is type-carrying.
func resultType(instr *classfile.Instruction) classfile.FrameValue {
	switch op := instr.Operand.(type) {
	case classfile.FieldRef:
		return typeToFrameValue(op.Type)
	case classfile.MethodRef:
		return typeToFrameValue(op.ReturnType)
	case classfile.CallSiteRef:
		return typeToFrameValue(op.Type.ReturnType)
	case classfile.TypeRef:
		return classfile.FrameValue{Kind: classfile.FVReference, Type: op}
	case classfile.Constant:
		return constantFrameValue(op)
	}
	switch instr.Opcode.Code {
	case opcodes.IAdd.Code, opcodes.ISub.Code, opcodes.IMul.Code, opcodes.IDiv.Code, opcodes.IRem.Code,
		opcodes.INeg.Code, opcodes.IShl.Code, opcodes.IShr.Code, opcodes.IUShr.Code,
		opcodes.IAnd.Code, opcodes.IOr.Code, opcodes.IXor.Code,
		opcodes.IALoad.Code, opcodes.BALoad.Code, opcodes.CALoad.Code, opcodes.SALoad.Code,
		opcodes.ArrayLength.Code, opcodes.InstanceOf.Code,
		opcodes.LCmp.Code, opcodes.FCmpL.Code, opcodes.FCmpG.Code, opcodes.DCmpL.Code, opcodes.DCmpG.Code,
		opcodes.I2B.Code, opcodes.I2C.Code, opcodes.I2S.Code, opcodes.L2I.Code, opcodes.F2I.Code, opcodes.D2I.Code:
		return classfile.FrameValue{Kind: classfile.FVInteger}
	case opcodes.LAdd.Code, opcodes.LSub.Code, opcodes.LMul.Code, opcodes.LDiv.Code, opcodes.LRem.Code,
		opcodes.LNeg.Code, opcodes.LShl.Code, opcodes.LShr.Code, opcodes.LUShr.Code,
		opcodes.LAnd.Code, opcodes.LOr.Code, opcodes.LXor.Code, opcodes.LALoad.Code,
		opcodes.I2L.Code, opcodes.F2L.Code, opcodes.D2L.Code:
		return classfile.FrameValue{Kind: classfile.FVLong}
	case opcodes.FAdd.Code, opcodes.FSub.Code, opcodes.FMul.Code, opcodes.FDiv.Code, opcodes.FRem.Code,
		opcodes.FNeg.Code, opcodes.FALoad.Code, opcodes.I2F.Code, opcodes.L2F.Code, opcodes.D2F.Code:
		return classfile.FrameValue{Kind: classfile.FVFloat}
	case opcodes.DAdd.Code, opcodes.DSub.Code, opcodes.DMul.Code, opcodes.DDiv.Code, opcodes.DRem.Code,
		opcodes.DNeg.Code, opcodes.DALoad.Code, opcodes.I2D.Code, opcodes.L2D.Code, opcodes.F2D.Code:
		return classfile.FrameValue{Kind: classfile.FVDouble}
	case opcodes.AALoad.Code, opcodes.AConstNull.Code, opcodes.New.Code,
		opcodes.ANewArray.Code, opcodes.NewArray.Code, opcodes.MultiANewArray.Code, opcodes.CheckCast.Code:
		return classfile.FrameValue{Kind: classfile.FVReference, Type: classfile.TypeRef{Name: "java.lang.Object"}}
	default:
		return classfile.FrameValue{Kind: classfile.FVInteger}
	}
}

func constantFrameValue(c classfile.Constant) classfile.FrameValue {
	switch c.Value.(type) {
	case int32:
		return classfile.FrameValue{Kind: classfile.FVInteger}
	case int64:
		return classfile.FrameValue{Kind: classfile.FVLong}
	case float32:
		return classfile.FrameValue{Kind: classfile.FVFloat}
	case float64:
		return classfile.FrameValue{Kind: classfile.FVDouble}
	case string:
		return classfile.FrameValue{Kind: classfile.FVReference, Type: classfile.TypeRef{Name: "java.lang.String"}}
	case classfile.TypeRef:
		return classfile.FrameValue{Kind: classfile.FVReference, Type: classfile.TypeRef{Name: "java.lang.Class"}}
	default:
		return classfile.FrameValue{Kind: classfile.FVReference, Type: classfile.TypeRef{Name: "java.lang.Object"}}
	}
}

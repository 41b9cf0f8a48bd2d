// Package decode implements the Instruction Decoder, the Branch Fixup
// Table, and the Variable Table Merger (§4.1, §4.2): it turns a raw
// method-body code array into a linked Instruction list with resolved
// operands, and a VariableTable integrating inferred and declared
// locals. Mirrors the shape of wagon's disasm package — read one
// opcode, dispatch on its operand encoding, append to a growing
// instruction list — generalized from WASM's LEB128 immediates and
// relative block nesting to the JVM's fixed-width big-endian operands
// and absolute offset branch targets.
package decode

import (
	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
)

// Result is the output of Decode: the linked instruction list and the
// variable table merged from decoding plus the method body's
// attributes.
type Result struct {
	Instructions *classfile.InstructionList
	Variables    *VariableTable
}

// Decode reads body.Code from offset 0 and produces a Result (§4.1).
// scope resolves constant-pool tokens encountered along the way.
func Decode(body *classfile.MethodBody, scope classfile.MetadataScope) (*Result, error) {
	r := newCodeReader(body.Code)
	list := classfile.NewInstructionList()
	fixups := newFixupTable()
	vars := NewVariableTable()
	vars.DeclareParameters(body.Parameters, len(body.Code), body.IsStatic, body.DeclaringType)

	danglingNops := map[int]*classfile.Instruction{}

	labelIndex := 0
	freshLabel := func(i *classfile.Instruction) {
		if i.Label == nil {
			i.Label = &classfile.Label{Index: labelIndex}
			labelIndex++
		}
	}

	resolveBranch := func(fromOffset int, delta int64) *classfile.BranchTarget {
		target := int(int64(fromOffset) + delta)
		bt := &classfile.BranchTarget{}
		switch {
		case target == fromOffset:
			// self-branch: the current instruction isn't appended yet;
			// the fixup runs right after it is.
			fixups.add(target, func(t *classfile.Instruction) {
				freshLabel(t)
				bt.Target = t
			})
		case target < fromOffset:
			if existing := list.At(target); existing != nil {
				freshLabel(existing)
				bt.Target = existing
			} else {
				// backward branch into an offset that was itself a
				// mid-instruction byte is a structural defect the CFG
				// builder will catch; best effort: leave nil.
			}
		case target > len(body.Code):
			if nop, ok := danglingNops[target]; ok {
				bt.Target = nop
			} else {
				nop := &classfile.Instruction{Offset: target, EndOffset: target, Opcode: opcodes.Nop}
				freshLabel(nop)
				danglingNops[target] = nop
				bt.Target = nop
			}
		default: // fromOffset < target <= len(body.Code)
			fixups.add(target, func(t *classfile.Instruction) {
				freshLabel(t)
				bt.Target = t
			})
		}
		return bt
	}

	ensureLocal := func(slot, effectiveOffset int) {
		vars.Ensure(slot, effectiveOffset)
	}

	for r.offset() < r.len() {
		offset := r.offset()
		opByte, err := r.readU1()
		if err != nil {
			return nil, classfile.WrapAtOffset(err, offset)
		}

		wide := false
		if opByte == opcodes.Wide.Code {
			wide = true
			opByte, err = r.readU1()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
		}

		op, ok := opcodes.Lookup(opByte)
		if !ok {
			return nil, classfile.UnrecognizedOpcodeError{Offset: offset, Opcode: opByte}
		}

		instr := &classfile.Instruction{Offset: offset, Opcode: op}

		if slot, isLoad, isMacro := opcodes.IsMacroLoadStore(op); isMacro {
			eff := offset
			if !isLoad {
				eff = offset + 1 // stored value becomes visible after the (1-byte) store
			}
			ensureLocal(slot, eff)
		}

		switch op.OperandKind {
		case opcodes.KindNone:
			// nothing to read; macro load/store handled above.

		case opcodes.KindPrimitive:
			b, err := r.readU1()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			instr.Operand = b

		case opcodes.KindType:
			idx, err := r.readU2()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			t, err := scope.ResolveType(idx)
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			if op.Code == opcodes.MultiANewArray.Code {
				if err := r.skip(1); err != nil { // dimension count — not kept
					return nil, classfile.WrapAtOffset(err, offset)
				}
			}
			instr.Operand = t

		case opcodes.KindField:
			idx, err := r.readU2()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			f, err := scope.ResolveField(idx)
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			instr.Operand = f

		case opcodes.KindMethod:
			idx, err := r.readU2()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			m, err := scope.ResolveMethod(idx)
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			instr.Operand = m

		case opcodes.KindInterfaceMethod:
			idx, err := r.readU2()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			m, err := scope.ResolveInterfaceMethod(idx)
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			if err := r.skip(2); err != nil { // count, 0 — discarded
				return nil, classfile.WrapAtOffset(err, offset)
			}
			instr.Operand = m

		case opcodes.KindCallSite:
			idx, err := r.readU2()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			cs, err := scope.ResolveCallSite(idx)
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			if err := r.skip(2); err != nil { // 2 reserved zero bytes
				return nil, classfile.WrapAtOffset(err, offset)
			}
			instr.Operand = cs

		case opcodes.KindBranch:
			var delta int64
			if op.Code == opcodes.GotoW.Code || op.Code == opcodes.JsrW.Code {
				d, err := r.readI4()
				if err != nil {
					return nil, classfile.WrapAtOffset(err, offset)
				}
				delta = int64(d)
			} else {
				d, err := r.readI2()
				if err != nil {
					return nil, classfile.WrapAtOffset(err, offset)
				}
				delta = int64(d)
			}
			bt := resolveBranch(offset, delta)
			instr.Operand = bt
			if delta == 0 {
				freshLabel(instr)
				bt.Target = instr
			}

		case opcodes.KindI1:
			v, err := r.readI1()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			instr.Operand = int32(v)

		case opcodes.KindI2:
			v, err := r.readI2()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			instr.Operand = int32(v)

		case opcodes.KindI8:
			hi, err := r.readU4()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			lo, err := r.readU4()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			instr.Operand = int64(hi)<<32 | int64(lo)

		case opcodes.KindConstant:
			idx, err := r.readU1()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			c, err := scope.ResolveConstant(uint16(idx))
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			instr.Operand = c

		case opcodes.KindWideConstant:
			idx, err := r.readU2()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			c, err := scope.ResolveConstant(idx)
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			instr.Operand = c

		case opcodes.KindSwitch:
			if err := r.alignPad(); err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			defaultDelta, err := r.readI4()
			if err != nil {
				return nil, classfile.WrapAtOffset(err, offset)
			}
			info := &classfile.SwitchInfo{Default: resolveBranch(offset, int64(defaultDelta))}

			if op.Code == opcodes.TableSwitch.Code {
				low, err := r.readI4()
				if err != nil {
					return nil, classfile.WrapAtOffset(err, offset)
				}
				high, err := r.readI4()
				if err != nil {
					return nil, classfile.WrapAtOffset(err, offset)
				}
				info.Low = low
				n := int(high-low) + 1
				for i := 0; i < n; i++ {
					d, err := r.readI4()
					if err != nil {
						return nil, classfile.WrapAtOffset(err, offset)
					}
					info.Targets = append(info.Targets, resolveBranch(offset, int64(d)))
				}
			} else {
				pairCount, err := r.readI4()
				if err != nil {
					return nil, classfile.WrapAtOffset(err, offset)
				}
				for i := int32(0); i < pairCount; i++ {
					key, err := r.readI4()
					if err != nil {
						return nil, classfile.WrapAtOffset(err, offset)
					}
					d, err := r.readI4()
					if err != nil {
						return nil, classfile.WrapAtOffset(err, offset)
					}
					info.Keys = append(info.Keys, key)
					info.Targets = append(info.Targets, resolveBranch(offset, int64(d)))
				}
			}
			instr.Operand = info

		case opcodes.KindLocal:
			var slot int
			if wide {
				v, err := r.readU2()
				if err != nil {
					return nil, classfile.WrapAtOffset(err, offset)
				}
				slot = int(v)
			} else {
				v, err := r.readU1()
				if err != nil {
					return nil, classfile.WrapAtOffset(err, offset)
				}
				slot = int(v)
			}
			if slot < 0 {
				instr.Operand = classfile.ErrorOperand{Offset: offset}
				break
			}
			instr.Operand = classfile.VariableOperand{Slot: slot}

		case opcodes.KindLocalI1, opcodes.KindLocalI2:
			var slot int
			var imm int32
			if wide {
				v, err := r.readU2()
				if err != nil {
					return nil, classfile.WrapAtOffset(err, offset)
				}
				slot = int(v)
				iv, err := r.readI2()
				if err != nil {
					return nil, classfile.WrapAtOffset(err, offset)
				}
				imm = int32(iv)
			} else {
				v, err := r.readU1()
				if err != nil {
					return nil, classfile.WrapAtOffset(err, offset)
				}
				slot = int(v)
				iv, err := r.readI1()
				if err != nil {
					return nil, classfile.WrapAtOffset(err, offset)
				}
				imm = int32(iv)
			}
			if slot < 0 {
				instr.Operand = classfile.ErrorOperand{Offset: offset}
				break
			}
			instr.Operand = classfile.VariableOperand{Slot: slot, Immediate: imm, HasImm: true}
		}

		instr.EndOffset = r.offset()

		if vo, ok := instr.Operand.(classfile.VariableOperand); ok {
			eff := instr.Offset
			if isStore(op) {
				eff = instr.EndOffset
			}
			ensureLocal(vo.Slot, eff)
		}

		list.Append(instr)
		fixups.resolve(offset, instr)
	}

	for offset, nop := range danglingNops {
		if list.At(offset) == nil {
			list.Append(nop)
		}
	}

	if fixups.hasPending() {
		return nil, classfile.NewStructuralErrorf(list.CodeSize(), "unresolved forward branch fixups remain after decoding")
	}

	vars.MergeDeclared(body.LocalVariableTable, body.LocalVariableTypeTable)
	vars.MergeVariables()
	vars.UpdateScopes(len(body.Code))

	return &Result{Instructions: list, Variables: vars}, nil
}

func isStore(op opcodes.Opcode) bool {
	switch op.Code {
	case opcodes.IStore.Code, opcodes.LStore.Code, opcodes.FStore.Code, opcodes.DStore.Code, opcodes.AStore.Code, opcodes.Ret.Code:
		return true
	default:
		return false
	}
}

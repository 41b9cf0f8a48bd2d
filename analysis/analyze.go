package analysis

import (
	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
)

// Result is the reachable, analyzed ByteCode chain the rewriter and
// splitter consume.
type Result struct {
	First, Last *ByteCode
	byOffset    map[int]*ByteCode
	MaxLocals   int

	// ExceptionLoads holds, per handler, the synthetic ByteCode that
	// represents its LoadException (§4.5 "Initial state"). The
	// rewriter attaches temporaries to it exactly like any other
	// producer when a real ByteCode pops the handler's entry slot; the
	// AST Assembler reads its StoreTo back to derive the catch/finally
	// exception variable (§4.8 step 3).
	ExceptionLoads map[*classfile.ExceptionHandler]*ByteCode
}

func (r *Result) At(offset int) *ByteCode { return r.byOffset[offset] }

// Analyze runs the Stack Analyzer to a fixed point (§4.5). cfg must be
// the handler-aware rebuild (no exception edges, built over the pruned
// handler set per §5 ordering). verifier yields per-instruction post
// states; a fresh instance is expected per call (§5).
func Analyze(list *classfile.InstructionList, handlers []*classfile.ExceptionHandler, cfg classfile.ControlFlowGraph, verifier classfile.StackMappingVisitor, body *classfile.MethodBody) (*Result, error) {
	arena := buildArena(list)

	entry := arena.byOffset[list.First.Offset]
	entry.StackBefore = []StackSlot{}
	entry.VariablesBefore = buildEntryVariables(body.MaxLocals, body.Parameters, body.DeclaringType, body.IsStatic, body.IsConstructor)

	worklist := []*ByteCode{entry}
	exceptionLoads := map[*classfile.ExceptionHandler]*ByteCode{}

	for _, h := range handlers {
		hf := arena.byOffset[h.Handler.First.Offset]
		if hf == nil || hf.StackBefore != nil {
			continue
		}
		excType := classfile.Throwable
		if h.Kind == classfile.HandlerCatch && len(h.CatchTypes) > 0 {
			excType = h.CatchTypes[0]
		}
		loadExc := &ByteCode{synthetic: true}
		exceptionLoads[h] = loadExc
		hf.StackBefore = []StackSlot{newStackSlot(classfile.FrameValue{Kind: classfile.FVReference, Type: excType}, loadExc)}
		hf.VariablesBefore = allUnknown(body.MaxLocals)
		worklist = append(worklist, hf)
	}

	for len(worklist) > 0 {
		bc := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		frame, err := verifier.Visit(bc.Instr)
		if err != nil {
			return nil, classfile.WrapAtOffset(err, bc.Offset())
		}

		newStack, err := computeNewStack(bc, frame)
		if err != nil {
			return nil, err
		}
		newVars := computeNewVariables(bc, frame)

		bc.StackAfter = newStack
		bc.VariablesAfter = newVars

		node := cfg.NodeAt(bc.Instr.Offset)
		var targets []*ByteCode
		if node != nil && node.End() == bc.Instr {
			for _, s := range node.Successors() {
				if s.Kind() != classfile.NodeNormal && s.Kind() != classfile.NodeEntryPoint {
					continue
				}
				if t := arena.byOffset[s.Start().Offset]; t != nil {
					targets = append(targets, t)
				}
			}
		} else if bc.Next != nil {
			targets = append(targets, bc.Next)
		}

		for _, t := range targets {
			if t.StackBefore == nil {
				t.StackBefore = cloneStack(newStack)
				t.VariablesBefore = cloneVars(newVars)
				worklist = append(worklist, t)
				continue
			}
			modified, err := mergeStack(t, newStack, bc.Offset())
			if err != nil {
				return nil, err
			}
			if mergeVariables(t, newVars) {
				modified = true
			}
			if modified {
				worklist = append(worklist, t)
			}
		}
	}

	result := arena.finish(body.MaxLocals)
	result.ExceptionLoads = exceptionLoads
	return result, nil
}

type arena struct {
	byOffset map[int]*ByteCode
	first    *ByteCode
}

func buildArena(list *classfile.InstructionList) *arena {
	a := &arena{byOffset: make(map[int]*ByteCode)}
	var prev *ByteCode
	for instr := list.First; instr != nil; instr = instr.Next {
		bc := &ByteCode{Instr: instr}
		a.byOffset[instr.Offset] = bc
		if prev != nil {
			prev.Next = bc
			bc.Prev = prev
		} else {
			a.first = bc
		}
		prev = bc
	}
	return a
}

// finish drops every ByteCode still unreached (§4.5 Post-pass) and
// relinks the remaining ones into a contiguous chain.
func (a *arena) finish(maxLocals int) *Result {
	r := &Result{byOffset: make(map[int]*ByteCode), MaxLocals: maxLocals}
	var prev *ByteCode
	for bc := a.first; bc != nil; bc = bc.Next {
		if !bc.reachable() {
			continue
		}
		r.byOffset[bc.Offset()] = bc
		bc.Prev = prev
		if prev != nil {
			prev.Next = bc
		} else {
			r.First = bc
		}
		prev = bc
	}
	if prev != nil {
		prev.Next = nil
	}
	r.Last = prev
	return r
}

func allUnknown(maxLocals int) []VariableSlot {
	slots := make([]VariableSlot, maxLocals)
	for i := range slots {
		slots[i] = newVariableSlot(classfile.FrameValue{Kind: classfile.FVUninitialized, AtInstruction: -1}, nil)
	}
	return slots
}

func cloneStack(s []StackSlot) []StackSlot {
	out := make([]StackSlot, len(s))
	for i, slot := range s {
		out[i] = slot.clone()
	}
	return out
}

func cloneVars(v []VariableSlot) []VariableSlot {
	out := make([]VariableSlot, len(v))
	for i, slot := range v {
		out[i] = slot.clone()
	}
	return out
}

// computeNewStack implements §4.5 "Compute newStack": DUP*/SWAP get
// bespoke handling so that a dup'd slot's Definitions are copied from
// the original (not the dup instruction itself — this is how
// coalescing later erases dups); everything else pops/pushes generic
// fresh slots typed from the verifier.
func computeNewStack(bc *ByteCode, frame classfile.FrameResult) ([]StackSlot, error) {
	stack := cloneStack(bc.StackBefore)

	switch bc.Instr.Opcode.Code {
	case opcodes.Dup.Code:
		top := stack[len(stack)-1]
		stack = append(stack, top.clone())
	case opcodes.DupX1.Code:
		n := len(stack)
		top := stack[n-1]
		stack = append(stack[:n-2], append([]StackSlot{top.clone()}, stack[n-2:]...)...)
	case opcodes.DupX2.Code:
		n := len(stack)
		top := stack[n-1]
		stack = append(stack[:n-3], append([]StackSlot{top.clone()}, stack[n-3:]...)...)
	case opcodes.Dup2.Code:
		n := len(stack)
		a, b := stack[n-2].clone(), stack[n-1].clone()
		stack = append(stack, a, b)
	case opcodes.Dup2X1.Code:
		n := len(stack)
		a, b := stack[n-2].clone(), stack[n-1].clone()
		stack = append(stack[:n-3], append([]StackSlot{a, b}, stack[n-3:]...)...)
	case opcodes.Dup2X2.Code:
		n := len(stack)
		a, b := stack[n-2].clone(), stack[n-1].clone()
		stack = append(stack[:n-4], append([]StackSlot{a, b}, stack[n-4:]...)...)
	case opcodes.Swap.Code:
		n := len(stack)
		stack[n-1], stack[n-2] = stack[n-2], stack[n-1]
	default:
		pop := popCount(bc.Instr)
		push := pushCount(bc.Instr)
		if pop > len(stack) {
			return nil, classfile.NewStructuralErrorf(bc.Offset(), "stack underflow: need %d, have %d", pop, len(stack))
		}
		stack = stack[:len(stack)-pop]
		postLen := len(frame.PostStack)
		for i := 0; i < push; i++ {
			v := resultType(bc.Instr)
			if postLen >= push {
				v = frame.PostStack[postLen-push+i]
			}
			stack = append(stack, newStackSlot(v, bc))
			if v.IsWide() && i+1 < push {
				i++
				stack = append(stack, newStackSlot(topHalf(), bc))
			}
		}
	}

	applyInitializations(stack, frame.Initialized)
	return stack, nil
}

// computeNewVariables implements §4.5 "Compute newVariables": clone
// the pre-state, resolve any freshly initialized Uninitialized slots,
// then apply a store instruction's write to its target slot.
func computeNewVariables(bc *ByteCode, frame classfile.FrameResult) []VariableSlot {
	vars := cloneVars(bc.VariablesBefore)
	for atOffset, v := range frame.Initialized {
		for i, vs := range vars {
			if vs.Value.Kind != classfile.FVUninitialized || vs.Value.AtInstruction != atOffset {
				continue
			}
			resolved := classfile.FrameValue{Kind: classfile.FVReference, Type: v}
			next := VariableSlot{Value: resolved, Definitions: vs.Definitions.Clone()}
			vars[i] = next
		}
	}

	if vo, ok := bc.Instr.Operand.(classfile.VariableOperand); ok && bc.Instr.Opcode.Code == opcodes.IInc.Code {
		if vo.Slot < len(vars) {
			vars[vo.Slot] = newVariableSlot(classfile.FrameValue{Kind: classfile.FVInteger}, bc)
		}
	} else if vo, ok := bc.Instr.Operand.(classfile.VariableOperand); ok && isStoreOpcode(bc.Instr.Opcode.Code) {
		v := resultTypeForStore(bc, frame)
		if vo.Slot < len(vars) {
			vars[vo.Slot] = newVariableSlot(v, bc)
			if v.IsWide() && vo.Slot+1 < len(vars) {
				vars[vo.Slot+1] = newVariableSlot(topHalf(), bc)
			}
		}
	} else if slot, isLoad, isMacro := opcodes.IsMacroLoadStore(bc.Instr.Opcode); isMacro && !isLoad {
		v := resultTypeForStore(bc, frame)
		if slot < len(vars) {
			vars[slot] = newVariableSlot(v, bc)
		}
	}

	return vars
}

func isStoreOpcode(code byte) bool {
	switch code {
	case opcodes.IStore.Code, opcodes.LStore.Code, opcodes.FStore.Code, opcodes.DStore.Code, opcodes.AStore.Code:
		return true
	default:
		return false
	}
}

// resultTypeForStore recovers the type of value being stored, from the
// top of the pre-store stack.
func resultTypeForStore(bc *ByteCode, _ classfile.FrameResult) classfile.FrameValue {
	if len(bc.StackBefore) == 0 {
		return classfile.FrameValue{Kind: classfile.FVInteger}
	}
	return bc.StackBefore[len(bc.StackBefore)-1].Value
}

func applyInitializations(stack []StackSlot, initialized map[int]classfile.TypeRef) {
	if len(initialized) == 0 {
		return
	}
	for i, s := range stack {
		if s.Value.Kind == classfile.FVUninitialized {
			if t, ok := initialized[s.Value.AtInstruction]; ok {
				stack[i].Value = classfile.FrameValue{Kind: classfile.FVReference, Type: t}
			}
		}
	}
}

// mergeStack implements §4.5 "Stack merge".
func mergeStack(target *ByteCode, incoming []StackSlot, atOffset int) (bool, error) {
	if len(target.StackBefore) != len(incoming) {
		return false, classfile.StackMismatchError{Offset: atOffset, Got: len(incoming), Wanted: len(target.StackBefore)}
	}
	modified := false
	for i := range target.StackBefore {
		before := target.StackBefore[i].Definitions.Cardinality()
		target.StackBefore[i].Definitions = target.StackBefore[i].Definitions.Union(incoming[i].Definitions)
		if target.StackBefore[i].Definitions.Cardinality() != before {
			modified = true
		}
	}
	return modified, nil
}

// mergeVariables implements §4.5 "Variable merge".
func mergeVariables(target *ByteCode, incoming []VariableSlot) bool {
	modified := false
	for i := range target.VariablesBefore {
		if i >= len(incoming) {
			break
		}
		t := &target.VariablesBefore[i]
		in := incoming[i]
		if !t.isUninitialized() && in.isUninitialized() {
			*t = in.clone()
			modified = true
			continue
		}
		before := t.Definitions.Cardinality()
		t.Definitions = t.Definitions.Union(in.Definitions)
		if t.Definitions.Cardinality() != before {
			modified = true
		}
	}
	return modified
}

package ast

import (
	"fmt"
	"sort"

	"github.com/go-interpreter/classdecomp/analysis"
	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
	"github.com/go-interpreter/classdecomp/rewrite"
)

// Settings bundles the decompiler-wide toggles §9 calls for instead of
// global state.
type Settings struct {
	AlwaysGenerateExceptionVariableForCatchBlocks bool
}

// Context parameterizes one method-body assembly (§9 "No global state").
type Context struct {
	CurrentType   classfile.TypeRef
	CurrentMethod string
	Optimize      bool
	Settings      Settings
	Scope         classfile.MetadataScope
}

// Assemble runs the §4.8 recursive procedure over the whole analyzed
// method body. bindings is the output of rewrite.SplitLocals, run by
// the caller so the declared-variable table stays in scope for naming.
func Assemble(ctx *Context, res *analysis.Result, handlers []*classfile.ExceptionHandler, bindings *rewrite.LocalBindings) []*Node {
	return assemble(ctx, res, res.First, nil, handlers, bindings)
}

func assemble(ctx *Context, res *analysis.Result, start, end *analysis.ByteCode, active []*classfile.ExceptionHandler, bindings *rewrite.LocalBindings) []*Node {
	relevant := tryStartsWithin(active, start, end)
	if len(relevant) == 0 {
		return linear(start, end, bindings)
	}

	pick := relevant[0]
	for _, h := range relevant[1:] {
		switch {
		case h.TryBlock.First.Offset < pick.TryBlock.First.Offset:
			pick = h
		case h.TryBlock.First.Offset == pick.TryBlock.First.Offset && h.TryBlock.Last.Offset > pick.TryBlock.Last.Offset:
			pick = h
		}
	}

	var siblings []*classfile.ExceptionHandler
	for _, h := range active {
		if h.SameTryBlock(pick) {
			siblings = append(siblings, h)
		}
	}
	sort.SliceStable(siblings, func(i, j int) bool {
		return siblings[i].Handler.First.Offset < siblings[j].Handler.First.Offset
	})

	tryStartBC := res.At(pick.TryBlock.First.Offset)
	tryEndBC := byteCodeAfter(res, pick.TryBlock.Last)

	consumed := map[*classfile.ExceptionHandler]bool{}
	for _, s := range siblings {
		consumed[s] = true
	}

	var nested []*classfile.ExceptionHandler
	for _, h := range active {
		if consumed[h] {
			continue
		}
		if h.TryBlock.First.Offset >= pick.TryBlock.First.Offset && h.TryBlock.Last.Offset <= pick.TryBlock.Last.Offset {
			nested = append(nested, h)
			consumed[h] = true
		}
	}

	out := linear(start, tryStartBC, bindings)

	tryBody := assemble(ctx, res, tryStartBC, tryEndBC, nested, bindings)
	tryBlock := Block(tryBody)
	if !endsUnconditionally(pick.TryBlock.Last) {
		tryBlock.Children = append(tryBlock.Children, Leave())
	}

	var catches []*Node
	seen := map[int]*Node{}
	maxHandlerLast := siblings[0].Handler.Last
	for _, h := range siblings {
		if h.Handler.Last.Offset > maxHandlerLast.Offset {
			maxHandlerLast = h.Handler.Last
		}

		if existing, ok := seen[h.Handler.First.Offset]; ok {
			if h.Kind == classfile.HandlerCatch {
				existing.CaughtTypes = append(existing.CaughtTypes, h.CatchTypes...)
				existing.ExceptionType = commonSuperType(ctx, existing.ExceptionType, h.CatchTypes)
			}
			continue
		}

		handlerStartBC := res.At(h.Handler.First.Offset)
		handlerEndBC := byteCodeAfter(res, h.Handler.Last)

		var nestedInHandler []*classfile.ExceptionHandler
		for _, h2 := range active {
			if consumed[h2] {
				continue
			}
			if h2.TryBlock.First.Offset >= h.Handler.First.Offset && h2.TryBlock.Last.Offset <= h.Handler.Last.Offset {
				nestedInHandler = append(nestedInHandler, h2)
				consumed[h2] = true
			}
		}

		body := assemble(ctx, res, handlerStartBC, handlerEndBC, nestedInHandler, bindings)
		catchNode := buildCatchBlock(ctx, res, h, body)
		seen[h.Handler.First.Offset] = catchNode
		catches = append(catches, catchNode)
	}

	out = append(out, &Node{Kind: KindTryCatchBlock, TryBody: tryBlock, Catches: catches})

	tailBC := byteCodeAfter(res, maxHandlerLast)
	var remaining []*classfile.ExceptionHandler
	for _, h := range active {
		if !consumed[h] {
			remaining = append(remaining, h)
		}
	}
	out = append(out, assemble(ctx, res, tailBC, end, remaining, bindings)...)
	return out
}

// buildCatchBlock implements §4.8 step 3's catch/finally variable rules.
func buildCatchBlock(ctx *Context, res *analysis.Result, h *classfile.ExceptionHandler, body []*Node) *Node {
	node := &Node{Kind: KindCatchBlock, IsFinally: h.IsFinally()}
	loadExc := res.ExceptionLoads[h]
	var storeTo []*classfile.Variable
	if loadExc != nil {
		storeTo = loadExc.StoreTo
	}

	if h.Kind == classfile.HandlerCatch {
		node.CaughtTypes = append([]classfile.TypeRef(nil), h.CatchTypes...)
		node.ExceptionType = commonOfList(ctx, h.CatchTypes)

		switch len(storeTo) {
		case 0:
			if ctx.Settings.AlwaysGenerateExceptionVariableForCatchBlocks {
				node.ExceptionVariable = generatedExceptionVariable(h, node.ExceptionType)
			}
		case 1:
			node.ExceptionVariable = storeTo[0]
		default:
			node.ExceptionVariable = generatedExceptionVariable(h, node.ExceptionType)
			prefix := make([]*Node, 0, len(storeTo))
			for _, st := range storeTo {
				prefix = append(prefix, Store(st, Load(node.ExceptionVariable)))
			}
			body = append(prefix, body...)
		}
		node.Body = Block(body)
		return node
	}

	node.ExceptionType = classfile.Throwable
	exVar := generatedExceptionVariable(h, classfile.Throwable)
	loadException := &Node{Kind: KindExpression, Opcode: "loadexception", Operand: classfile.Throwable}
	prefix := []*Node{Store(exVar, loadException)}
	for _, st := range storeTo {
		prefix = append(prefix, Store(st, Load(exVar)))
	}
	node.Body = Block(append(prefix, body...))
	return node
}

func generatedExceptionVariable(h *classfile.ExceptionHandler, t classfile.TypeRef) *classfile.Variable {
	return &classfile.Variable{
		Kind:      classfile.VarTemporary,
		Name:      fmt.Sprintf("ex_%x", h.Handler.First.Offset),
		Type:      t,
		Generated: true,
	}
}

func commonOfList(ctx *Context, types []classfile.TypeRef) classfile.TypeRef {
	if len(types) == 0 {
		return classfile.Throwable
	}
	t := types[0]
	for _, o := range types[1:] {
		t = commonSuperType(ctx, t, []classfile.TypeRef{o})
	}
	return t
}

func commonSuperType(ctx *Context, a classfile.TypeRef, bs []classfile.TypeRef) classfile.TypeRef {
	if ctx.Scope == nil {
		return classfile.Throwable
	}
	result := a
	for _, b := range bs {
		result = ctx.Scope.CommonSuperType(result, b)
	}
	return result
}

// tryStartsWithin returns every handler in active whose try-block
// begins inside [start, end).
func tryStartsWithin(active []*classfile.ExceptionHandler, start, end *analysis.ByteCode) []*classfile.ExceptionHandler {
	if start == nil {
		return nil
	}
	var out []*classfile.ExceptionHandler
	for _, h := range active {
		off := h.TryBlock.First.Offset
		if off < start.Offset() {
			continue
		}
		if end != nil && off >= end.Offset() {
			continue
		}
		out = append(out, h)
	}
	return out
}

// byteCodeAfter returns the reachable ByteCode immediately following
// instr, or nil if instr was the method's last reachable instruction.
func byteCodeAfter(res *analysis.Result, instr *classfile.Instruction) *analysis.ByteCode {
	for n := instr.Next; n != nil; n = n.Next {
		if bc := res.At(n.Offset); bc != nil {
			return bc
		}
	}
	return nil
}

// endsUnconditionally reports whether last is a control-flow
// instruction after which no synthetic Leave is needed (§4.8 step 2).
func endsUnconditionally(last *classfile.Instruction) bool {
	return opcodes.IsGoto(last.Opcode) || opcodes.IsThrow(last.Opcode) || opcodes.IsReturnLike(last.Opcode)
}

// linear implements §4.8's "Linear AST for a ByteCode range".
func linear(start, end *analysis.ByteCode, bindings *rewrite.LocalBindings) []*Node {
	var out []*Node
	for bc := start; bc != nil && bc != end; bc = bc.Next {
		if bc.Instr.Label != nil {
			out = append(out, &Node{Kind: KindLabel, Label: bc.Instr.Label})
		}
		if opcodes.IsDupOrSwap(bc.Instr.Opcode) {
			continue
		}
		out = append(out, byteCodeNodes(bc, bindings)...)
	}
	return out
}

func byteCodeNodes(bc *analysis.ByteCode, bindings *rewrite.LocalBindings) []*Node {
	core := coreNode(bc, bindings)
	if core == nil {
		return nil
	}
	switch len(bc.StoreTo) {
	case 0:
		return []*Node{core}
	case 1:
		return []*Node{Store(bc.StoreTo[0], core)}
	default:
		scratch := &classfile.Variable{Kind: classfile.VarTemporary, Name: fmt.Sprintf("tmp_%x", bc.Offset()), Generated: true}
		out := []*Node{Store(scratch, core)}
		for i := len(bc.StoreTo) - 1; i >= 0; i-- {
			out = append(out, Store(bc.StoreTo[i], Load(scratch)))
		}
		return out
	}
}

func coreNode(bc *analysis.ByteCode, bindings *rewrite.LocalBindings) *Node {
	instr := bc.Instr

	if vo, ok := instr.Operand.(classfile.VariableOperand); ok {
		if instr.Opcode.Code == opcodes.IInc.Code {
			return &Node{Kind: KindExpression, Opcode: instr.Opcode, Operand: vo, Ranges: exprRanges(instr)}
		}
		v := bindings.Lookup(bc, vo.Slot)
		if isStoreOpcodeCode(instr.Opcode.Code) {
			return Store(v, firstPoppedLoad(bc))
		}
		return Load(v)
	}

	if slot, isLoad, isMacro := opcodes.IsMacroLoadStore(instr.Opcode); isMacro {
		v := bindings.Lookup(bc, slot)
		if isLoad {
			return Load(v)
		}
		return Store(v, firstPoppedLoad(bc))
	}

	expr := &Node{Kind: KindExpression, Opcode: instr.Opcode, Operand: instr.Operand, Ranges: exprRanges(instr)}
	expr.Children = poppedLoads(bc)
	return expr
}

func exprRanges(instr *classfile.Instruction) []Range {
	return []Range{{Start: instr.Offset, End: instr.EndOffset}}
}

func poppedLoads(bc *analysis.ByteCode) []*Node {
	pop := analysis.PopCount(bc.Instr)
	if pop <= 0 || pop > len(bc.StackBefore) {
		return nil
	}
	start := len(bc.StackBefore) - pop
	var out []*Node
	for i := start; i < len(bc.StackBefore); i++ {
		slot := bc.StackBefore[i]
		if slot.Value.Kind == classfile.FVTop {
			continue
		}
		out = append(out, Load(slot.LoadFrom))
	}
	return out
}

func firstPoppedLoad(bc *analysis.ByteCode) *Node {
	loads := poppedLoads(bc)
	if len(loads) == 0 {
		return nil
	}
	return loads[len(loads)-1]
}

func isStoreOpcodeCode(code byte) bool {
	switch code {
	case opcodes.IStore.Code, opcodes.LStore.Code, opcodes.FStore.Code, opcodes.DStore.Code, opcodes.AStore.Code:
		return true
	default:
		return false
	}
}

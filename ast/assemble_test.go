package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-interpreter/classdecomp/analysis"
	"github.com/go-interpreter/classdecomp/ast"
	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
	"github.com/go-interpreter/classdecomp/decode"
	"github.com/go-interpreter/classdecomp/rewrite"
)

// nilCFG forces Analyze to fall back to physical bc.Next, which is
// correct for straight-line bodies with no branches.
type nilCFG struct{}

func (nilCFG) Nodes() []classfile.CFGNode         { return nil }
func (nilCFG) NodeAt(int) classfile.CFGNode       { return nil }
func (nilCFG) EntryNode() classfile.CFGNode       { return nil }
func (nilCFG) RegularExitNode() classfile.CFGNode { return nil }

type passthroughVerifier struct{}

func (passthroughVerifier) Visit(*classfile.Instruction) (classfile.FrameResult, error) {
	return classfile.FrameResult{}, nil
}

func opcodeOf(t *testing.T, n *ast.Node) opcodes.Opcode {
	t.Helper()
	op, ok := n.Opcode.(opcodes.Opcode)
	require.True(t, ok, "node %v carries an opcode", n.Kind)
	return op
}

func TestAssembleStraightLineExpression(t *testing.T) {
	body := &classfile.MethodBody{
		Code:      []byte{0x1a, 0x1b, 0x60, 0xac}, // iload_0, iload_1, iadd, ireturn
		MaxStack:  2,
		MaxLocals: 2,
		IsStatic:  true,
		Parameters: []classfile.Parameter{
			{Slot: 0, Name: "a", Type: classfile.TypeRef{Name: "int"}},
			{Slot: 1, Name: "b", Type: classfile.TypeRef{Name: "int"}},
		},
	}
	decoded, err := decode.Decode(body, nil)
	require.NoError(t, err)

	result, err := analysis.Analyze(decoded.Instructions, nil, nilCFG{}, passthroughVerifier{}, body)
	require.NoError(t, err)

	rewrite.Temporaries(result)
	declared := decode.NewVariableTable()
	declared.DeclareParameters(body.Parameters, len(body.Code), true, classfile.TypeRef{})
	bindings := rewrite.SplitLocals(result, declared, false)

	nodes := ast.Assemble(&ast.Context{Optimize: false}, result, nil, bindings)

	// iload_0, iload_1 each feed iadd directly: every producer here has
	// exactly one consumer, so Temporaries leaves them uncoalesced and
	// each surfaces as a Store wrapping its core expression, except the
	// tail ireturn which is never stored anywhere.
	require.Len(t, nodes, 4)

	assert.Equal(t, ast.KindStore, nodes[0].Kind)
	assert.Equal(t, ast.KindLoad, nodes[0].Value.Kind)
	assert.Equal(t, "a", nodes[0].Value.Variable.Name)

	assert.Equal(t, ast.KindStore, nodes[1].Kind)
	assert.Equal(t, ast.KindLoad, nodes[1].Value.Kind)
	assert.Equal(t, "b", nodes[1].Value.Variable.Name)

	assert.Equal(t, ast.KindStore, nodes[2].Kind)
	addExpr := nodes[2].Value
	assert.Equal(t, opcodes.IAdd.Name, opcodeOf(t, addExpr).Name)
	require.Len(t, addExpr.Children, 2)
	assert.Equal(t, ast.KindLoad, addExpr.Children[0].Kind)
	assert.Same(t, nodes[0].Variable, addExpr.Children[0].Variable)
	assert.Equal(t, ast.KindLoad, addExpr.Children[1].Kind)
	assert.Same(t, nodes[1].Variable, addExpr.Children[1].Variable)

	assert.Equal(t, ast.KindExpression, nodes[3].Kind)
	assert.Equal(t, opcodes.IReturn.Name, opcodeOf(t, nodes[3]).Name)
	require.Len(t, nodes[3].Children, 1)
	assert.Equal(t, ast.KindLoad, nodes[3].Children[0].Kind)
	assert.Same(t, nodes[2].Variable, nodes[3].Children[0].Variable)
}

// fakeNode/fakeCFG/buildFakeCFG give Analyze genuine control-flow edges
// for the goto in the try/catch scenario below, without pulling in a
// real CFGBuilder.
type fakeNode struct {
	instr *classfile.Instruction
	succ  []classfile.CFGNode
}

func (n *fakeNode) Start() *classfile.Instruction          { return n.instr }
func (n *fakeNode) End() *classfile.Instruction            { return n.instr }
func (n *fakeNode) Kind() classfile.NodeKind               { return classfile.NodeNormal }
func (n *fakeNode) Successors() []classfile.CFGNode        { return n.succ }
func (n *fakeNode) Predecessors() []classfile.CFGNode      { return nil }
func (n *fakeNode) Dominates(classfile.CFGNode) bool       { return false }
func (n *fakeNode) DominanceFrontier() []classfile.CFGNode { return nil }

type fakeCFG struct {
	byOffset map[int]*fakeNode
}

func (c *fakeCFG) Nodes() []classfile.CFGNode {
	out := make([]classfile.CFGNode, 0, len(c.byOffset))
	for _, n := range c.byOffset {
		out = append(out, n)
	}
	return out
}

func (c *fakeCFG) NodeAt(offset int) classfile.CFGNode {
	n, ok := c.byOffset[offset]
	if !ok {
		return nil
	}
	return n
}

func (c *fakeCFG) EntryNode() classfile.CFGNode       { return c.NodeAt(0) }
func (c *fakeCFG) RegularExitNode() classfile.CFGNode { return nil }

func buildFakeCFG(list *classfile.InstructionList) *fakeCFG {
	cfg := &fakeCFG{byOffset: make(map[int]*fakeNode)}
	for i := list.First; i != nil; i = i.Next {
		cfg.byOffset[i.Offset] = &fakeNode{instr: i}
	}
	for i := list.First; i != nil; i = i.Next {
		n := cfg.byOffset[i.Offset]
		switch {
		case opcodes.IsGoto(i.Opcode):
			bt, ok := i.Operand.(*classfile.BranchTarget)
			if ok && bt.Target != nil {
				if target := cfg.byOffset[bt.Target.Offset]; target != nil {
					n.succ = append(n.succ, target)
				}
			}
		case opcodes.IsReturnLike(i.Opcode) || opcodes.IsThrow(i.Opcode):
		default:
			if i.Next != nil {
				if target := cfg.byOffset[i.Next.Offset]; target != nil {
					n.succ = append(n.succ, target)
				}
			}
		}
	}
	return cfg
}

func TestAssembleTryCatchBlock(t *testing.T) {
	// offsets: 0 iconst_0, 1 pop, 2 goto +4 (-> 6), 5 astore_1 (handler), 6 return
	body := &classfile.MethodBody{
		Code:      []byte{0x03, 0x57, 0xa7, 0x00, 0x04, 0x4c, 0xb1},
		MaxStack:  1,
		MaxLocals: 2,
		IsStatic:  true,
	}
	decoded, err := decode.Decode(body, nil)
	require.NoError(t, err)

	tryFirst := decoded.Instructions.First          // iconst_0, offset 0
	tryLast := tryFirst.Next.Next                   // goto, offset 2, already absorbed by a prior prune pass
	handlerInstr := tryLast.Next                    // astore_1, offset 5
	require.Equal(t, "goto", tryLast.Opcode.Name)
	require.Equal(t, "astore_1", handlerInstr.Opcode.Name)

	handler := &classfile.ExceptionHandler{
		Kind:       classfile.HandlerCatch,
		TryBlock:   classfile.ExceptionBlock{First: tryFirst, Last: tryLast},
		Handler:    classfile.ExceptionBlock{First: handlerInstr, Last: handlerInstr},
		CatchTypes: []classfile.TypeRef{{Name: "java.lang.Exception"}},
	}
	handlers := []*classfile.ExceptionHandler{handler}

	cfg := buildFakeCFG(decoded.Instructions)
	result, err := analysis.Analyze(decoded.Instructions, handlers, cfg, passthroughVerifier{}, body)
	require.NoError(t, err)

	rewrite.Temporaries(result)
	declared := decode.NewVariableTable()
	bindings := rewrite.SplitLocals(result, declared, false)

	nodes := ast.Assemble(&ast.Context{}, result, handlers, bindings)
	require.Len(t, nodes, 2, "a try/catch block followed by the tail return")

	tcb := nodes[0]
	require.Equal(t, ast.KindTryCatchBlock, tcb.Kind)
	require.NotNil(t, tcb.TryBody)
	require.Equal(t, ast.KindBlock, tcb.TryBody.Kind)
	require.Len(t, tcb.TryBody.Children, 3, "iconst_0, pop, goto — no synthetic Leave since the goto already ends the block")
	assert.Equal(t, "goto", opcodeOf(t, tcb.TryBody.Children[2]).Name)

	require.Len(t, tcb.Catches, 1)
	catch := tcb.Catches[0]
	assert.Equal(t, ast.KindCatchBlock, catch.Kind)
	assert.False(t, catch.IsFinally)
	require.Len(t, catch.CaughtTypes, 1)
	assert.Equal(t, "java.lang.Exception", catch.CaughtTypes[0].Name)
	require.NotNil(t, catch.ExceptionVariable)

	require.NotNil(t, catch.Body)
	require.Len(t, catch.Body.Children, 1)
	store := catch.Body.Children[0]
	assert.Equal(t, ast.KindStore, store.Kind)
	assert.Equal(t, "var_1", store.Variable.Name)
	require.NotNil(t, store.Value)
	assert.Equal(t, ast.KindLoad, store.Value.Kind)
	assert.Same(t, catch.ExceptionVariable, store.Value.Variable, "the catch body loads the exception the handler was seeded with")

	tail := nodes[1]
	assert.Equal(t, ast.KindExpression, tail.Kind)
	assert.Equal(t, "return", opcodeOf(t, tail).Name)
}

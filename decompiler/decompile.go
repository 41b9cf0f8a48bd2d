package decompiler

import (
	"github.com/cockroachdb/errors"

	"github.com/go-interpreter/classdecomp/analysis"
	"github.com/go-interpreter/classdecomp/ast"
	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/decode"
	"github.com/go-interpreter/classdecomp/exceptions"
	"github.com/go-interpreter/classdecomp/rewrite"
)

// Decompile runs the full pipeline over one method body: decode,
// normalize and prune its exception handlers, run the Stack Analyzer
// to its fixed point, rewrite stack temporaries into named variables,
// split locals by reaching definition, and assemble the result tree
// (§4.1-§4.8). collab supplies the three external collaborators the
// core itself never implements (§6).
func Decompile(ctx *Context, body *classfile.MethodBody, collab Collaborators) ([]*ast.Node, error) {
	decoded, err := decode.Decode(body, collab.Scope)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	logger.Printf("%s.%s: decoded %d bytes", ctx.CurrentType.Name, ctx.CurrentMethod, len(body.Code))

	preliminary := buildPreliminaryHandlers(decoded.Instructions, body.ExceptionTable)
	cfg, err := collab.CFGBuilder(decoded.Instructions, preliminary)
	if err != nil {
		return nil, errors.Wrap(err, "build control-flow graph")
	}

	handlers, err := exceptions.Normalize(decoded.Instructions, body.ExceptionTable, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "normalize exception table")
	}
	handlers = exceptions.Prune(handlers)
	logger.Printf("%s.%s: %d exception handlers after pruning", ctx.CurrentType.Name, ctx.CurrentMethod, len(handlers))

	pruned := make([]classfile.ExceptionHandler, len(handlers))
	for i, h := range handlers {
		pruned[i] = *h
	}
	cfg, err = collab.CFGBuilder(decoded.Instructions, pruned)
	if err != nil {
		return nil, errors.Wrap(err, "rebuild control-flow graph")
	}

	result, err := analysis.Analyze(decoded.Instructions, handlers, cfg, collab.Verifier, body)
	if err != nil {
		return nil, errors.Wrap(err, "analyze stack")
	}

	rewrite.Temporaries(result)
	bindings := rewrite.SplitLocals(result, decoded.Variables, ctx.Optimize)

	nodes := ast.Assemble(ctx, result, handlers, bindings)
	return nodes, nil
}

// buildPreliminaryHandlers converts the raw exception table into the
// approximate ExceptionHandler shape the CFGBuilder needs to place
// block boundaries at handler starts, before the Normalizer has had a
// chance to compute true (dominance-derived) handler end offsets
// (§4.3 step 1: "build a CFG ... with no exception edges", which still
// needs to know where each handler begins).
func buildPreliminaryHandlers(list *classfile.InstructionList, raw []classfile.ExceptionTableEntryRaw) []classfile.ExceptionHandler {
	out := make([]classfile.ExceptionHandler, 0, len(raw))
	for _, e := range raw {
		tryFirst := list.At(e.StartOffset)
		tryLast := list.EndingAt(e.EndOffset)
		handlerFirst := list.At(e.HandlerOffset)
		if tryFirst == nil || tryLast == nil || handlerFirst == nil {
			continue
		}
		h := classfile.ExceptionHandler{
			TryBlock: classfile.ExceptionBlock{First: tryFirst, Last: tryLast},
			Handler:  classfile.ExceptionBlock{First: handlerFirst, Last: handlerFirst},
		}
		if e.CatchType != nil {
			h.Kind = classfile.HandlerCatch
			h.CatchTypes = []classfile.TypeRef{*e.CatchType}
		} else {
			h.Kind = classfile.HandlerFinally
		}
		out = append(out, h)
	}
	return out
}

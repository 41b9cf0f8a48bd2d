// Package exceptions implements the Exception Table Normalizer and the
// Handler Pruner (§4.3, §4.4): it turns the class file's raw
// (startOffset, endOffset, handlerOffset, catchType) rows into
// ExceptionHandler values with CFG-derived handler ends, then
// canonicalizes the resulting handler list so the AST Assembler can
// walk it without re-deriving any of this.
package exceptions

import (
	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
)

// Normalize implements §4.3. cfg must have been built with no exception
// edges over instructions (step 1 is the caller's responsibility, per
// the external CFGBuilder contract in §6).
func Normalize(instructions *classfile.InstructionList, raw []classfile.ExceptionTableEntryRaw, cfg classfile.ControlFlowGraph) ([]*classfile.ExceptionHandler, error) {
	handlers := make([]*classfile.ExceptionHandler, 0, len(raw))

	for i, e := range raw {
		tryFirst := instructions.At(e.StartOffset)
		tryLast := instructions.EndingAt(e.EndOffset)
		handlerFirst := instructions.At(e.HandlerOffset)
		if tryFirst == nil || tryLast == nil || handlerFirst == nil {
			return nil, classfile.NewStructuralErrorf(e.StartOffset, "exception table entry references an offset with no instruction")
		}

		handlerStartNode := cfg.NodeAt(e.HandlerOffset)
		if handlerStartNode == nil {
			return nil, classfile.NewStructuralErrorf(e.HandlerOffset, "no CFG node at handler offset")
		}
		endNode := findHandlerEnd(cfg, handlerStartNode)

		handlerLast := endNode.End()
		if nearest := nearestEnclosing(raw, i); nearest != nil {
			if bound := instructions.At(nearest.HandlerOffset); bound != nil && handlerLast.Offset >= bound.Offset {
				if prev := instructions.EndingAt(bound.Offset); prev != nil {
					handlerLast = prev
				}
			}
		}

		if handlerLast.EndOffset > instructions.CodeSize() {
			handlerLast = synthesizeTrailingNop(instructions, handlerLast.EndOffset)
		}

		h := &classfile.ExceptionHandler{
			TryBlock: classfile.ExceptionBlock{First: tryFirst, Last: tryLast},
			Handler:  classfile.ExceptionBlock{First: handlerFirst, Last: handlerLast},
		}
		if e.CatchType != nil {
			h.Kind = classfile.HandlerCatch
			h.CatchTypes = []classfile.TypeRef{*e.CatchType}
		} else {
			h.Kind = classfile.HandlerFinally
		}
		handlers = append(handlers, h)
	}

	return handlers, nil
}

// findHandlerEnd walks successors depth-first (cycle-safe) from start,
// returning the first node whose dominance frontier does not contain
// the regular-exit node, or whose successor set is empty (§4.3 step 3).
func findHandlerEnd(cfg classfile.ControlFlowGraph, start classfile.CFGNode) classfile.CFGNode {
	regularExit := cfg.RegularExitNode()
	visited := map[classfile.CFGNode]bool{}

	var walk func(n classfile.CFGNode) classfile.CFGNode
	walk = func(n classfile.CFGNode) classfile.CFGNode {
		if visited[n] {
			return n
		}
		visited[n] = true

		frontierHasExit := false
		for _, f := range n.DominanceFrontier() {
			if f == regularExit {
				frontierHasExit = true
				break
			}
		}
		succs := n.Successors()
		if !frontierHasExit || len(succs) == 0 {
			return n
		}
		for _, s := range succs {
			if !visited[s] {
				return walk(s)
			}
		}
		return n
	}
	return walk(start)
}

// nearestEnclosing returns the raw entry whose try range most tightly
// contains raw[i]'s try range, excluding raw[i] itself and any entry
// whose try range is identical to it (§4.3 step 4).
func nearestEnclosing(raw []classfile.ExceptionTableEntryRaw, i int) *classfile.ExceptionTableEntryRaw {
	var best *classfile.ExceptionTableEntryRaw
	target := raw[i]
	for j := range raw {
		if j == i {
			continue
		}
		cand := raw[j]
		if cand.StartOffset <= target.StartOffset && cand.EndOffset >= target.EndOffset &&
			(cand.StartOffset != target.StartOffset || cand.EndOffset != target.EndOffset) {
			if best == nil || (cand.EndOffset-cand.StartOffset) < (best.EndOffset-best.StartOffset) {
				b := cand
				best = &b
			}
		}
	}
	return best
}

// synthesizeTrailingNop appends a synthetic NOP instruction at offset
// when a derived handler end lies beyond the last real instruction
// (§4.3 Output, §7 Recoverable).
func synthesizeTrailingNop(instructions *classfile.InstructionList, offset int) *classfile.Instruction {
	if existing := instructions.At(offset); existing != nil {
		return existing
	}
	nop := &classfile.Instruction{Offset: offset, EndOffset: offset, Opcode: opcodes.Nop}
	instructions.Append(nop)
	return nop
}

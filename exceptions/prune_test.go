package exceptions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
)

// chain builds a sequential, 1-byte-per-opcode instruction list linked
// by Prev/Next, so each test only needs to name the opcodes it cares
// about and index into the result by position.
func chain(names ...string) []*classfile.Instruction {
	out := make([]*classfile.Instruction, len(names))
	for i, name := range names {
		out[i] = &classfile.Instruction{Offset: i, Opcode: opcodes.By(name)}
	}
	for i := range out {
		if i > 0 {
			out[i].Prev = out[i-1]
		}
		if i+1 < len(out) {
			out[i].Next = out[i+1]
			out[i].EndOffset = out[i+1].Offset
		} else {
			out[i].EndOffset = out[i].Offset + 1
		}
	}
	return out
}

func block(first, last *classfile.Instruction) classfile.ExceptionBlock {
	return classfile.ExceptionBlock{First: first, Last: last}
}

func TestRemoveSelfHandlingFinally(t *testing.T) {
	is := chain("nop", "nop", "nop", "nop")
	h := &classfile.ExceptionHandler{
		Kind:     classfile.HandlerFinally,
		TryBlock: block(is[0], is[1]),
		Handler:  block(is[0], is[3]),
	}
	out := removeSelfHandlingFinally([]*classfile.ExceptionHandler{h})
	assert.Empty(t, out, "a finally that handles its own try block should be dropped")
}

func TestRemoveSelfHandlingFinallyKeepsDistinctHandler(t *testing.T) {
	is := chain("nop", "nop", "nop", "nop")
	h := &classfile.ExceptionHandler{
		Kind:     classfile.HandlerFinally,
		TryBlock: block(is[0], is[1]),
		Handler:  block(is[2], is[3]),
	}
	out := removeSelfHandlingFinally([]*classfile.ExceptionHandler{h})
	assert.Len(t, out, 1)
}

func TestCloseGapsMergesAcrossSingleGoto(t *testing.T) {
	// i0: try-a body, i1: goto (the gap, also try-b's first instruction), i2: try-b body
	is := chain("nop", "goto", "nop", "nop", "nop")
	handlerBlock := block(is[3], is[4])
	a := &classfile.ExceptionHandler{Kind: classfile.HandlerCatch, TryBlock: block(is[0], is[0]), Handler: handlerBlock}
	b := &classfile.ExceptionHandler{Kind: classfile.HandlerCatch, TryBlock: block(is[1], is[2]), Handler: handlerBlock}

	out := closeGaps([]*classfile.ExceptionHandler{a, b})

	assert.Len(t, out, 1)
	assert.Same(t, is[0], out[0].TryBlock.First)
	assert.Same(t, is[2], out[0].TryBlock.Last, "merged try range should span through b's try-last")
}

func TestAlignSiblingTryRangesClampsToEarliestHandler(t *testing.T) {
	is := chain("nop", "nop", "nop", "nop", "nop", "nop")
	shared := block(is[0], is[5])
	sib1 := &classfile.ExceptionHandler{Kind: classfile.HandlerCatch, TryBlock: shared, Handler: block(is[3], is[3])}
	sib2 := &classfile.ExceptionHandler{Kind: classfile.HandlerCatch, TryBlock: shared, Handler: block(is[4], is[4])}

	out := alignSiblingTryRanges([]*classfile.ExceptionHandler{sib1, sib2})

	for _, h := range out {
		assert.Same(t, is[2], h.TryBlock.Last, "try-last should clamp to the instruction before the earliest sibling handler")
	}
}

func TestAlignCatchToNextCatchClampsOverlap(t *testing.T) {
	is := chain("nop", "nop", "nop", "nop", "nop", "nop")
	shared := block(is[0], is[0])
	first := &classfile.ExceptionHandler{Kind: classfile.HandlerCatch, TryBlock: shared, Handler: block(is[1], is[5])}
	second := &classfile.ExceptionHandler{Kind: classfile.HandlerCatch, TryBlock: shared, Handler: block(is[3], is[4])}

	out := alignCatchToNextCatch([]*classfile.ExceptionHandler{first, second})

	assert.Same(t, is[2], out[0].Handler.Last, "first catch should clamp to the instruction before the next sibling's handler")
	assert.Same(t, is[4], out[1].Handler.Last, "uninvolved sibling is untouched")
}

func TestEliminateRedundantFinally(t *testing.T) {
	is := chain("nop", "nop", "nop", "nop", "nop", "nop")
	sharedHandler := block(is[4], is[5])
	outer := &classfile.ExceptionHandler{Kind: classfile.HandlerFinally, TryBlock: block(is[0], is[3]), Handler: sharedHandler}
	inner := &classfile.ExceptionHandler{Kind: classfile.HandlerFinally, TryBlock: block(is[1], is[2]), Handler: sharedHandler}

	out := eliminateRedundantFinally([]*classfile.ExceptionHandler{outer, inner})

	assert.Len(t, out, 1)
	assert.Same(t, outer, out[0])
}

func TestEliminateFinallyDuplicatingOuterCatch(t *testing.T) {
	is := chain("nop", "nop", "nop", "nop", "nop", "nop")
	sharedHandler := block(is[4], is[5])
	outerCatch := &classfile.ExceptionHandler{Kind: classfile.HandlerCatch, TryBlock: block(is[0], is[3]), Handler: sharedHandler}
	innerFinally := &classfile.ExceptionHandler{Kind: classfile.HandlerFinally, TryBlock: block(is[1], is[2]), Handler: sharedHandler}

	out := eliminateFinallyDuplicatingOuterCatch([]*classfile.ExceptionHandler{outerCatch, innerFinally})

	assert.Len(t, out, 1)
	assert.Same(t, outerCatch, out[0])
}

func TestExtendTryEndAbsorbsTrailingGoto(t *testing.T) {
	is := chain("nop", "nop", "goto", "nop", "nop")
	h := &classfile.ExceptionHandler{Kind: classfile.HandlerCatch, TryBlock: block(is[0], is[1]), Handler: block(is[3], is[4])}

	out := extendTryEnd([]*classfile.ExceptionHandler{h})

	assert.Same(t, is[2], out[0].TryBlock.Last, "trailing goto immediately before the handler should join the try range")
}

func TestExtendTryEndLeavesReturnAlone(t *testing.T) {
	is := chain("nop", "nop", "return", "nop", "nop")
	h := &classfile.ExceptionHandler{Kind: classfile.HandlerCatch, TryBlock: block(is[0], is[1]), Handler: block(is[3], is[4])}

	out := extendTryEnd([]*classfile.ExceptionHandler{h})

	assert.Same(t, is[1], out[0].TryBlock.Last, "a plain return should not be absorbed into the try range")
}

func TestPruneIsIdempotent(t *testing.T) {
	is := chain("nop", "nop", "goto", "nop", "nop", "nop", "nop")
	h := &classfile.ExceptionHandler{Kind: classfile.HandlerCatch, TryBlock: block(is[0], is[1]), Handler: block(is[5], is[6])}

	once := Prune([]*classfile.ExceptionHandler{h})
	twice := Prune(once)

	assert.Equal(t, len(once), len(twice))
	assert.Equal(t, once[0].TryBlock.Last.Offset, twice[0].TryBlock.Last.Offset)
}

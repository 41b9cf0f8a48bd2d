package rewrite_test

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-interpreter/classdecomp/analysis"
	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
	"github.com/go-interpreter/classdecomp/rewrite"
)

func link(bcs ...*analysis.ByteCode) {
	for i := range bcs {
		if i > 0 {
			bcs[i].Prev = bcs[i-1]
		}
		if i+1 < len(bcs) {
			bcs[i].Next = bcs[i+1]
		}
	}
}

func defSet(producers ...*analysis.ByteCode) mapset.Set[*analysis.ByteCode] {
	s := mapset.NewThreadUnsafeSet[*analysis.ByteCode]()
	for _, p := range producers {
		s.Add(p)
	}
	return s
}

func TestTemporariesAllocatesOneTempPerPoppedSlot(t *testing.T) {
	producer := &analysis.ByteCode{Instr: &classfile.Instruction{Offset: 0, Opcode: opcodes.IConst0}}
	consumer := &analysis.ByteCode{
		Instr: &classfile.Instruction{Offset: 1, Opcode: opcodes.IStore},
		StackBefore: []analysis.StackSlot{
			{Value: classfile.FrameValue{Kind: classfile.FVInteger}, Definitions: defSet(producer)},
		},
	}
	link(producer, consumer)
	res := &analysis.Result{First: producer, Last: consumer}

	rewrite.Temporaries(res)

	require.Len(t, producer.StoreTo, 1)
	temp := producer.StoreTo[0]
	assert.Equal(t, "int", temp.Type.Name)
	assert.True(t, temp.Generated)
	assert.Same(t, temp, consumer.StackBefore[0].LoadFrom)
}

func TestTemporariesSkipsTopSlots(t *testing.T) {
	producer := &analysis.ByteCode{Instr: &classfile.Instruction{Offset: 0, Opcode: opcodes.IConst0}}
	consumer := &analysis.ByteCode{
		// a 2-pop opcode popping a wide value pushed earlier together
		// with its Top half; only the real value gets a temp.
		Instr: &classfile.Instruction{Offset: 1, Opcode: opcodes.Pop2},
		StackBefore: []analysis.StackSlot{
			{Value: classfile.FrameValue{Kind: classfile.FVTop}, Definitions: defSet(producer)},
			{Value: classfile.FrameValue{Kind: classfile.FVLong}, Definitions: defSet(producer)},
		},
	}
	link(producer, consumer)
	res := &analysis.Result{First: producer, Last: consumer}

	rewrite.Temporaries(res)

	require.Len(t, producer.StoreTo, 1)
	assert.Nil(t, consumer.StackBefore[0].LoadFrom)
	assert.NotNil(t, consumer.StackBefore[1].LoadFrom)
}

func TestTemporariesCoalescesMultiUseProducer(t *testing.T) {
	producer := &analysis.ByteCode{Instr: &classfile.Instruction{Offset: 5, Opcode: opcodes.IConst0}}
	consumerA := &analysis.ByteCode{
		Instr: &classfile.Instruction{Offset: 6, Opcode: opcodes.IStore},
		StackBefore: []analysis.StackSlot{
			{Value: classfile.FrameValue{Kind: classfile.FVInteger}, Definitions: defSet(producer)},
		},
	}
	consumerB := &analysis.ByteCode{
		Instr: &classfile.Instruction{Offset: 7, Opcode: opcodes.IStore},
		StackBefore: []analysis.StackSlot{
			{Value: classfile.FrameValue{Kind: classfile.FVInteger}, Definitions: defSet(producer)},
		},
	}
	link(producer, consumerA, consumerB)
	res := &analysis.Result{First: producer, Last: consumerB}

	rewrite.Temporaries(res)

	require.Len(t, producer.StoreTo, 1, "both single-definer, same-type temps should coalesce into one")
	shared := producer.StoreTo[0]
	assert.Equal(t, "expr_5", shared.Name)
	assert.Same(t, shared, consumerA.StackBefore[0].LoadFrom)
	assert.Same(t, shared, consumerB.StackBefore[0].LoadFrom)
}

func TestTemporariesSlotWithMultipleDefinersSharesOneTemp(t *testing.T) {
	producerA := &analysis.ByteCode{Instr: &classfile.Instruction{Offset: 0, Opcode: opcodes.IConst0}}
	producerB := &analysis.ByteCode{Instr: &classfile.Instruction{Offset: 1, Opcode: opcodes.IConst0}}
	merge := &analysis.ByteCode{Instr: &classfile.Instruction{Offset: 2, Opcode: opcodes.IStore}}
	merge.StackBefore = []analysis.StackSlot{
		// a control-flow merge: the slot has two possible producers, so
		// its single temp gets attributed to both of them. Neither
		// producer has >1 StoreTo entries, so coalescing never applies
		// here — the shared-definer case that must not be coalesced.
		{Value: classfile.FrameValue{Kind: classfile.FVInteger}, Definitions: defSet(producerA, producerB)},
	}
	link(producerA, producerB, merge)
	res := &analysis.Result{First: producerA, Last: merge}

	rewrite.Temporaries(res)

	require.Len(t, producerA.StoreTo, 1)
	require.Len(t, producerB.StoreTo, 1)
	assert.Same(t, producerA.StoreTo[0], producerB.StoreTo[0], "both producers share the merged slot's single temp")
}

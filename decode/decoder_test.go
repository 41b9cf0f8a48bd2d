package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-interpreter/classdecomp/classfile"
)

// straightLineAddBody is `static int add(int a, int b) { return a + b; }`:
// iload_0 iload_1 iadd ireturn.
func straightLineAddBody() *classfile.MethodBody {
	return &classfile.MethodBody{
		Code:      []byte{0x1a, 0x1b, 0x60, 0xac},
		MaxStack:  2,
		MaxLocals: 2,
		IsStatic:  true,
		Parameters: []classfile.Parameter{
			{Slot: 0, Name: "a", Type: classfile.TypeRef{Name: "int"}},
			{Slot: 1, Name: "b", Type: classfile.TypeRef{Name: "int"}},
		},
	}
}

func TestDecodeStraightLine(t *testing.T) {
	res, err := Decode(straightLineAddBody(), nil)
	require.NoError(t, err)

	var offsets []int
	for i := res.Instructions.First; i != nil; i = i.Next {
		offsets = append(offsets, i.Offset)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, offsets)
	assert.Equal(t, 4, res.Instructions.CodeSize())

	last := res.Instructions.At(3)
	require.NotNil(t, last)
	assert.Equal(t, "ireturn", last.Opcode.Name)
	assert.Equal(t, 4, last.EndOffset)

	a := res.Variables.At(0, 0)
	require.NotNil(t, a)
	assert.Equal(t, "a", a.Name)
	assert.True(t, a.IsParameter)

	b := res.Variables.At(1, 0)
	require.NotNil(t, b)
	assert.Equal(t, "b", b.Name)
}

func TestDecodeBackwardBranchLabelsTarget(t *testing.T) {
	// iconst_0 istore_0 ; loop: iload_0 ifeq +9 ; iinc 0,1 goto loop ; return
	// offsets:  0         1       2       3 (4,5 imm) 6 (7,8) 9 (10,11) 12
	code := []byte{
		0x03,       // 0: iconst_0
		0x3b,       // 1: istore_0
		0x1a,       // 2: iload_0   <- loop target
		0x99, 0x00, 0x09, // 3: ifeq +9 -> offset 12 (return)
		0x84, 0x00, 0x01, // 6: iinc 0, 1
		0xa7, 0xff, 0xf9, // 9: goto -7 -> offset 2
		0xb1, // 12: return
	}
	body := &classfile.MethodBody{Code: code, MaxStack: 1, MaxLocals: 1, IsStatic: true}

	res, err := Decode(body, nil)
	require.NoError(t, err)

	loopHead := res.Instructions.At(2)
	require.NotNil(t, loopHead)
	assert.NotNil(t, loopHead.Label, "backward branch target should be labeled")

	gotoInstr := res.Instructions.At(9)
	require.NotNil(t, gotoInstr)
	bt, ok := gotoInstr.Operand.(*classfile.BranchTarget)
	require.True(t, ok)
	assert.Same(t, loopHead, bt.Target)

	ifeq := res.Instructions.At(3)
	require.NotNil(t, ifeq)
	fbt, ok := ifeq.Operand.(*classfile.BranchTarget)
	require.True(t, ok)
	require.NotNil(t, fbt.Target)
	assert.Equal(t, 12, fbt.Target.Offset)
	assert.Equal(t, "return", fbt.Target.Opcode.Name)

	require.NotNil(t, fbt.Target.Label)
	assert.NotEqual(t, loopHead.Label.Index, fbt.Target.Label.Index, "distinct branch targets must carry distinct label indices")
}

func TestDecodeUnrecognizedOpcode(t *testing.T) {
	// 0xfe (impdep2) is reserved and not in the opcode table.
	body := &classfile.MethodBody{Code: []byte{0xfe}, MaxStack: 0, MaxLocals: 0, IsStatic: true}
	_, err := Decode(body, nil)
	assert.Error(t, err)
	var uo classfile.UnrecognizedOpcodeError
	require.ErrorAs(t, err, &uo)
	assert.Equal(t, byte(0xfe), uo.Opcode)
}

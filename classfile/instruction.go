package classfile

import "github.com/go-interpreter/classdecomp/classfile/opcodes"

// Label marks an Instruction as a branch target that needs a name in
// the eventual AST (§3).
type Label struct {
	Index int
}

// SwitchInfo is the operand of TABLESWITCH/LOOKUPSWITCH (§4.1).
type SwitchInfo struct {
	Default *BranchTarget
	// Keys is nil for a TABLESWITCH, whose cases are implicitly
	// Low..Low+len(Targets)-1.
	Keys    []int32
	Low     int32
	Targets []*BranchTarget
}

// BranchTarget is the operand of a single-target branch instruction. It
// is a mutable box so the Branch Fixup Table (§2, §9) can bind Target
// after the operand has already been attached to its owning
// Instruction.
type BranchTarget struct {
	Target *Instruction
}

// ErrorOperand replaces the operand of an instruction that referenced a
// negative variable slot (§4.1 Local operand cases, SPEC_FULL §D.3). It
// lets decoding continue instead of failing the whole method body.
type ErrorOperand struct {
	Offset int
}

// VariableOperand is the operand of a Local/LocalI1/LocalI2-encoded
// instruction: a slot index plus an optional immediate (ILOAD, ISTORE,
// IINC, RET).
type VariableOperand struct {
	Slot      int
	Immediate int32 // meaningful for IINC
	HasImm    bool
}

// Instruction is one decoded bytecode instruction. Identity is by
// pointer; offsets are stable and unique within a method body (§3).
type Instruction struct {
	Offset    int
	EndOffset int
	Opcode    opcodes.Opcode
	Operand   interface{}
	Label     *Label

	Prev, Next *Instruction
}

func (i *Instruction) String() string {
	if i == nil {
		return "<nil instr>"
	}
	return i.Opcode.Name
}

// InstructionList is the doubly linked, offset-ordered sequence of
// decoded instructions produced by the Instruction Decoder (§3).
type InstructionList struct {
	First, Last *Instruction
	byOffset    map[int]*Instruction
	byEndOffset map[int]*Instruction
}

// NewInstructionList builds an empty list.
func NewInstructionList() *InstructionList {
	return &InstructionList{byOffset: make(map[int]*Instruction), byEndOffset: make(map[int]*Instruction)}
}

// Append links instr at the end of the sequence and indexes it by
// offset for later lookup (e.g. resolving backward branches).
func (l *InstructionList) Append(instr *Instruction) {
	if l.Last != nil {
		l.Last.Next = instr
		instr.Prev = l.Last
	} else {
		l.First = instr
	}
	l.Last = instr
	l.byOffset[instr.Offset] = instr
	l.byEndOffset[instr.EndOffset] = instr
}

// EndingAt returns the instruction whose EndOffset equals offset — the
// instruction occupying the byte range immediately before offset.
func (l *InstructionList) EndingAt(offset int) *Instruction {
	return l.byEndOffset[offset]
}

// At returns the instruction starting at offset, or nil.
func (l *InstructionList) At(offset int) *Instruction {
	return l.byOffset[offset]
}

// CodeSize is the end offset of the last instruction, i.e. the size of
// the original code array this list was decoded from.
func (l *InstructionList) CodeSize() int {
	if l.Last == nil {
		return 0
	}
	return l.Last.EndOffset
}

// Slice returns the instructions in [start, end) in order. Both bounds
// are Instruction identities already known to belong to the list.
func (l *InstructionList) Slice(start, end *Instruction) []*Instruction {
	var out []*Instruction
	for i := start; i != nil && i != end; i = i.Next {
		out = append(out, i)
	}
	return out
}

// ExceptionBlock is an inclusive instruction range [First, Last],
// referencing Instruction identities (§3).
type ExceptionBlock struct {
	First, Last *Instruction
}

func (b ExceptionBlock) Contains(i *Instruction) bool {
	if b.First == nil || b.Last == nil {
		return false
	}
	return i.Offset >= b.First.Offset && i.Offset <= b.Last.Offset
}

// Overlaps reports whether b and o share any instruction.
func (b ExceptionBlock) Overlaps(o ExceptionBlock) bool {
	return b.First.Offset <= o.Last.Offset && o.First.Offset <= b.Last.Offset
}

// HandlerKind tags an ExceptionHandler variant (§3).
type HandlerKind int

const (
	HandlerCatch HandlerKind = iota
	HandlerFinally
)

// ExceptionHandler is the tagged {Catch, Finally} variant of §3, after
// normalization has resolved true (first,last) instruction pairs for
// both the try and handler ranges.
type ExceptionHandler struct {
	Kind       HandlerKind
	TryBlock   ExceptionBlock
	Handler    ExceptionBlock
	CatchTypes []TypeRef // one entry normally; >1 after multi-catch merge (SPEC_FULL §D.1)
}

func (h *ExceptionHandler) IsFinally() bool { return h.Kind == HandlerFinally }

func (h *ExceptionHandler) SameTryBlock(o *ExceptionHandler) bool {
	return h.TryBlock.First == o.TryBlock.First && h.TryBlock.Last == o.TryBlock.Last
}

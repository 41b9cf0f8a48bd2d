package classfile

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// StructuralError is the single typed failure a method-body analysis can
// surface (§7). It carries the offending byte offset and captures a
// stack trace at construction so the failure can be traced back to the
// pass that raised it without a local retry.
type StructuralError struct {
	Offset int
	Msg    string
	cause  error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("classfile: structural error at offset %d: %s", e.Offset, e.Msg)
}

func (e *StructuralError) Unwrap() error { return e.cause }

// NewStructuralError builds a StructuralError with a captured call stack.
func NewStructuralError(offset int, msg string) error {
	return errors.WithStack(&StructuralError{Offset: offset, Msg: msg})
}

// NewStructuralErrorf is NewStructuralError with fmt.Sprintf-style formatting.
func NewStructuralErrorf(offset int, format string, args ...interface{}) error {
	return NewStructuralError(offset, fmt.Sprintf(format, args...))
}

// WrapAtOffset annotates an error from an external collaborator (the
// metadata scope, the CFG builder, the verifier) with the offset of the
// instruction being processed when it occurred.
func WrapAtOffset(err error, offset int) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "at offset %d", offset)
}

// UnrecognizedOpcodeError is returned by the decoder on an opcode byte
// it does not know how to decode (§4.1 Failure mode).
type UnrecognizedOpcodeError struct {
	Offset int
	Opcode byte
}

func (e UnrecognizedOpcodeError) Error() string {
	return fmt.Sprintf("decode: unrecognized opcode 0x%02x at offset %d", e.Opcode, e.Offset)
}

// StackMismatchError is returned when two control-flow predecessors
// disagree on stack depth at a join point (§3 Invariants, §8 property 2).
type StackMismatchError struct {
	Offset      int
	Got, Wanted int
}

func (e StackMismatchError) Error() string {
	return fmt.Sprintf("analysis: stack depth mismatch at offset %d: got %d, wanted %d", e.Offset, e.Got, e.Wanted)
}

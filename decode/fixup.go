package decode

import "github.com/go-interpreter/classdecomp/classfile"

// fixup is one deferred operand-patching action, queued when a forward
// branch's target instruction has not been decoded yet (§4.1, §9
// "Fixup table"). apply binds the now-known target instruction.
type fixup struct {
	apply func(target *classfile.Instruction)
}

// fixupTable is a map keyed by target offset, each entry a chain of
// patch operations to run once the instruction at that offset is
// emitted.
type fixupTable struct {
	byOffset map[int][]fixup
}

func newFixupTable() *fixupTable {
	return &fixupTable{byOffset: make(map[int][]fixup)}
}

// add queues fn to run once target is decoded; combine is append,
// supporting N-way fan-in onto the same forward target (§2 Branch
// Fixup Table).
func (t *fixupTable) add(targetOffset int, fn func(target *classfile.Instruction)) {
	t.byOffset[targetOffset] = append(t.byOffset[targetOffset], fixup{apply: fn})
}

// resolve runs and clears every fixup queued for offset, called right
// after the instruction starting at offset is appended to the list.
func (t *fixupTable) resolve(offset int, target *classfile.Instruction) {
	pending, ok := t.byOffset[offset]
	if !ok {
		return
	}
	for _, f := range pending {
		f.apply(target)
	}
	delete(t.byOffset, offset)
}

// hasPending reports whether any targets are still dangling after
// decoding finished — this should never happen for well-formed input
// since out-of-range forward branches resolve to a synthetic NOP
// instead of a fixup (§4.1 "target > size of buffer").
func (t *fixupTable) hasPending() bool {
	return len(t.byOffset) > 0
}

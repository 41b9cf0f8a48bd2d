package exceptions

import (
	"sort"

	"github.com/go-interpreter/classdecomp/classfile"
	"github.com/go-interpreter/classdecomp/classfile/opcodes"
)

// Prune canonicalizes the normalized handler list by running the seven
// passes of §4.4 in order. Each pass is idempotent on its own output;
// running Prune twice on the same input is a fixed point (§8 property 7).
func Prune(handlers []*classfile.ExceptionHandler) []*classfile.ExceptionHandler {
	h := append([]*classfile.ExceptionHandler(nil), handlers...)
	h = removeSelfHandlingFinally(h)
	h = closeGaps(h)
	h = alignSiblingTryRanges(h)
	h = alignCatchToNextCatch(h)
	h = eliminateRedundantFinally(h)
	h = eliminateFinallyDuplicatingOuterCatch(h)
	h = extendTryEnd(h)
	return h
}

func sameTry(a, b *classfile.ExceptionHandler) bool { return a.SameTryBlock(b) }

func sameHandler(a, b *classfile.ExceptionHandler) bool {
	return a.Handler.First == b.Handler.First && a.Handler.Last == b.Handler.Last
}

// siblingsSharingTry returns, in handler-start order, every handler in
// all that shares h's try block (including h itself).
func siblingsSharingTry(all []*classfile.ExceptionHandler, h *classfile.ExceptionHandler) []*classfile.ExceptionHandler {
	var out []*classfile.ExceptionHandler
	for _, o := range all {
		if sameTry(o, h) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Handler.First.Offset < out[j].Handler.First.Offset })
	return out
}

// 1. Self-handling finally (§4.4 step 1): a finally whose handler
// begins at the same instruction as its try, and whose try-last
// precedes the handler-end, handles its own try block and is dropped.
func removeSelfHandlingFinally(all []*classfile.ExceptionHandler) []*classfile.ExceptionHandler {
	out := make([]*classfile.ExceptionHandler, 0, len(all))
	for _, h := range all {
		if h.IsFinally() && h.TryBlock.First == h.Handler.First && h.TryBlock.Last.Offset < h.Handler.Last.Offset {
			continue
		}
		out = append(out, h)
	}
	return out
}

// 2. Gap closing (§4.4 step 2): two handlers with identical handler
// blocks and try-ranges separated by a single unconditional branch
// merge into one handler spanning both try-ranges.
func closeGaps(all []*classfile.ExceptionHandler) []*classfile.ExceptionHandler {
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(all); i++ {
			for j := 0; j < len(all); j++ {
				if i == j {
					continue
				}
				a, b := all[i], all[j]
				if !sameHandler(a, b) || a.Kind != b.Kind {
					continue
				}
				if a.TryBlock.Last.Next == nil {
					continue
				}
				gap := a.TryBlock.Last.Next
				if gap == b.TryBlock.First && opcodes.IsGoto(gap.Opcode) && gap.Next == b.TryBlock.First.Next {
					// merge b into a, spanning the gap branch too.
					a.TryBlock.Last = b.TryBlock.Last
					all = removeAt(all, j)
					changed = true
					break
				}
			}
			if changed {
				break
			}
		}
	}
	return all
}

// 3. Sibling try alignment (§4.4 step 3): handlers sharing a try-block
// end exactly one instruction before the first sibling handler begins.
func alignSiblingTryRanges(all []*classfile.ExceptionHandler) []*classfile.ExceptionHandler {
	seen := map[*classfile.ExceptionHandler]bool{}
	for _, h := range all {
		if seen[h] {
			continue
		}
		sibs := siblingsSharingTry(all, h)
		for _, s := range sibs {
			seen[s] = true
		}
		if len(sibs) < 2 {
			continue
		}
		firstHandler := sibs[0].Handler.First
		for _, s := range sibs[1:] {
			if s.Handler.First.Offset < firstHandler.Offset {
				firstHandler = s.Handler.First
			}
		}
		if prev := prevInstruction(firstHandler); prev != nil {
			for _, s := range sibs {
				s.TryBlock.Last = prev
			}
		}
	}
	return all
}

// 4. Catch-to-next-catch alignment (§4.4 step 4): where a catch
// precedes another sibling, clamp its handler to end one instruction
// before the next sibling's handler begins.
func alignCatchToNextCatch(all []*classfile.ExceptionHandler) []*classfile.ExceptionHandler {
	groups := map[*classfile.ExceptionHandler][]*classfile.ExceptionHandler{}
	visited := map[*classfile.ExceptionHandler]bool{}
	for _, h := range all {
		if visited[h] {
			continue
		}
		sibs := siblingsSharingTry(all, h)
		for _, s := range sibs {
			visited[s] = true
			groups[s] = sibs
		}
	}

	for _, h := range all {
		sibs := groups[h]
		if len(sibs) < 2 || h.Kind != classfile.HandlerCatch {
			continue
		}
		for j, s := range sibs {
			if s != h || j+1 >= len(sibs) {
				continue
			}
			bound := sibs[j+1].Handler.First
			if h.Handler.Last.Offset >= bound.Offset {
				if prev := prevInstruction(bound); prev != nil {
					h.Handler.Last = prev
				}
			}
		}
	}
	return all
}

func prevInstruction(i *classfile.Instruction) *classfile.Instruction {
	return i.Prev
}

// 5. Redundant-finally elimination (§4.4 step 5): a finally whose
// handler block is identical to a sibling finally nested inside a
// catch is removed.
func eliminateRedundantFinally(all []*classfile.ExceptionHandler) []*classfile.ExceptionHandler {
	out := make([]*classfile.ExceptionHandler, 0, len(all))
	for _, h := range all {
		redundant := false
		if h.IsFinally() {
			for _, o := range all {
				if o == h || !o.IsFinally() {
					continue
				}
				if sameHandler(h, o) && nested(o.TryBlock, h.TryBlock) {
					redundant = true
					break
				}
			}
		}
		if !redundant {
			out = append(out, h)
		}
	}
	return out
}

func nested(outer, inner classfile.ExceptionBlock) bool {
	return outer.First.Offset <= inner.First.Offset && inner.Last.Offset <= outer.Last.Offset &&
		(outer.First != inner.First || outer.Last != inner.Last)
}

// 6. Finally-duplicates-outer-catch elimination (§4.4 step 6): an inner
// handler that is a finally merely re-entering an outer catch handler
// is dropped.
func eliminateFinallyDuplicatingOuterCatch(all []*classfile.ExceptionHandler) []*classfile.ExceptionHandler {
	out := make([]*classfile.ExceptionHandler, 0, len(all))
	for _, h := range all {
		drop := false
		if h.IsFinally() {
			for _, o := range all {
				if o == h || o.IsFinally() {
					continue
				}
				if sameHandler(h, o) && nested(o.TryBlock, h.TryBlock) {
					drop = true
					break
				}
			}
		}
		if !drop {
			out = append(out, h)
		}
	}
	return out
}

// 7. Try-end extension (§4.4 step 7): if the instruction immediately
// preceding the first handler is an unconditional branch, a throw, or
// a non-RETURN return-like instruction and lies just after the
// try-last, extend the try-block to include it. All siblings move in
// lock-step.
func extendTryEnd(all []*classfile.ExceptionHandler) []*classfile.ExceptionHandler {
	visited := map[*classfile.ExceptionHandler]bool{}
	for _, h := range all {
		if visited[h] {
			continue
		}
		sibs := siblingsSharingTry(all, h)
		for _, s := range sibs {
			visited[s] = true
		}
		if len(sibs) == 0 {
			continue
		}
		firstHandler := sibs[0].Handler.First
		for _, s := range sibs[1:] {
			if s.Handler.First.Offset < firstHandler.Offset {
				firstHandler = s.Handler.First
			}
		}
		cand := prevInstruction(firstHandler)
		if cand == nil {
			continue
		}
		tryLast := sibs[0].TryBlock.Last
		if cand.Offset != tryLast.EndOffset {
			continue
		}
		if opcodes.IsGoto(cand.Opcode) || opcodes.IsThrow(cand.Opcode) ||
			(opcodes.IsReturnLike(cand.Opcode) && cand.Opcode.Code != opcodes.Return.Code) {
			for _, s := range sibs {
				s.TryBlock.Last = cand
			}
		}
	}
	return all
}

func removeAt(s []*classfile.ExceptionHandler, i int) []*classfile.ExceptionHandler {
	return append(s[:i], s[i+1:]...)
}

package decode

import "github.com/go-interpreter/classdecomp/classfile"

// VariableDefinition is one scoped (slot, name, type) row, either
// inferred from decoding, declared in LocalVariableTable/
// LocalVariableTypeTable, or claimed by a parameter (§4.2).
type VariableDefinition struct {
	Slot        int
	StartOffset int
	EndOffset   int
	Name        string
	Type        classfile.TypeRef
	Declared    bool
	IsParameter bool
}

func (d *VariableDefinition) overlaps(o *VariableDefinition) bool {
	return d.StartOffset < o.EndOffset && o.StartOffset < d.EndOffset
}

func (d *VariableDefinition) contains(offset int) bool {
	return offset >= d.StartOffset && offset < d.EndOffset
}

// VariableTable integrates decoder-discovered slot usage with the
// authoritative LocalVariableTable/LocalVariableTypeTable attributes
// (§4.2).
type VariableTable struct {
	bySlot map[int][]*VariableDefinition
}

// NewVariableTable builds an empty table.
func NewVariableTable() *VariableTable {
	return &VariableTable{bySlot: make(map[int][]*VariableDefinition)}
}

// DeclareParameters claims slot [0, argCount) with scope [0, codeSize),
// slot 0 being `this` for instance methods (§4.2).
func (t *VariableTable) DeclareParameters(params []classfile.Parameter, codeSize int, isStatic bool, declaringType classfile.TypeRef) {
	if !isStatic {
		t.bySlot[0] = append(t.bySlot[0], &VariableDefinition{
			Slot: 0, StartOffset: 0, EndOffset: codeSize,
			Name: "this", Type: declaringType, Declared: true, IsParameter: true,
		})
	}
	for _, p := range params {
		t.bySlot[p.Slot] = append(t.bySlot[p.Slot], &VariableDefinition{
			Slot: p.Slot, StartOffset: 0, EndOffset: codeSize,
			Name: p.Name, Type: p.Type, Declared: true, IsParameter: true,
		})
	}
}

// Ensure creates or widens the scope of an inferred VariableDefinition
// at slot covering offset, called eagerly by the decoder every time it
// sees a load/store/iinc of that slot (§4.2).
func (t *VariableTable) Ensure(slot int, offset int) *VariableDefinition {
	for _, d := range t.bySlot[slot] {
		if !d.Declared && d.contains(offset) {
			return d
		}
	}
	// widen an adjacent inferred entry rather than fragmenting scope
	// needlessly; a new use at most one byte past the current end just
	// extends it.
	for _, d := range t.bySlot[slot] {
		if !d.Declared && offset >= d.EndOffset && offset-d.EndOffset <= 1 {
			d.EndOffset = offset + 1
			return d
		}
	}
	d := &VariableDefinition{Slot: slot, StartOffset: offset, EndOffset: offset + 1}
	t.bySlot[slot] = append(t.bySlot[slot], d)
	return d
}

// MergeDeclared folds LocalVariableTable/LocalVariableTypeTable entries
// in: where a declared entry overlaps an inferred one in the same slot,
// the declared name/type wins; otherwise they remain distinct
// slot-sharing variables (§4.2).
func (t *VariableTable) MergeDeclared(names, types []classfile.VariableTableEntry) {
	apply := func(e classfile.VariableTableEntry, isType bool) {
		decl := &VariableDefinition{
			Slot: e.Slot, StartOffset: e.StartOffset, EndOffset: e.StartOffset + e.Length,
			Declared: true,
		}
		if isType {
			decl.Type = e.Type
		} else {
			decl.Name = e.Name
			decl.Type = e.Type
		}

		existing := t.bySlot[e.Slot]
		for _, d := range existing {
			if d.overlaps(decl) {
				if decl.Name != "" {
					d.Name = decl.Name
				}
				if isType {
					d.Type = decl.Type
				} else if d.Type == (classfile.TypeRef{}) {
					d.Type = decl.Type
				}
				d.Declared = true
				if decl.StartOffset < d.StartOffset {
					d.StartOffset = decl.StartOffset
				}
				if decl.EndOffset > d.EndOffset {
					d.EndOffset = decl.EndOffset
				}
				return
			}
		}
		t.bySlot[e.Slot] = append(t.bySlot[e.Slot], decl)
	}
	for _, e := range names {
		apply(e, false)
	}
	for _, e := range types {
		apply(e, true)
	}
}

// MergeVariables collapses identical adjacent live ranges produced by
// Ensure's incremental widening (§4.2).
func (t *VariableTable) MergeVariables() {
	for slot, defs := range t.bySlot {
		if len(defs) < 2 {
			continue
		}
		merged := defs[:1]
		for _, d := range defs[1:] {
			last := merged[len(merged)-1]
			if last.Declared == d.Declared && last.Name == d.Name && last.Type == d.Type && d.StartOffset <= last.EndOffset {
				if d.EndOffset > last.EndOffset {
					last.EndOffset = d.EndOffset
				}
				continue
			}
			merged = append(merged, d)
		}
		t.bySlot[slot] = merged
	}
}

// UpdateScopes clamps every scope end to codeSize (§4.2).
func (t *VariableTable) UpdateScopes(codeSize int) {
	for _, defs := range t.bySlot {
		for _, d := range defs {
			if d.EndOffset > codeSize {
				d.EndOffset = codeSize
			}
		}
	}
}

// At returns the VariableDefinition covering (slot, offset), preferring
// a declared entry over an inferred one when both happen to match.
func (t *VariableTable) At(slot, offset int) *VariableDefinition {
	var best *VariableDefinition
	for _, d := range t.bySlot[slot] {
		if !d.contains(offset) {
			continue
		}
		if best == nil || (d.Declared && !best.Declared) {
			best = d
		}
	}
	return best
}

// Slots returns every distinct slot index the table has an entry for.
func (t *VariableTable) Slots() []int {
	out := make([]int, 0, len(t.bySlot))
	for s := range t.bySlot {
		out = append(out, s)
	}
	return out
}

// DefinitionsAt returns every VariableDefinition registered for slot,
// in no particular order, for the splitter to pick among by def set.
func (t *VariableTable) DefinitionsAt(slot int) []*VariableDefinition {
	return t.bySlot[slot]
}

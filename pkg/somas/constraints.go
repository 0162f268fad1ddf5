// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ConstraintGraph answers which tensors must not share bytes, and holds the validated
// contiguity groups and ref-alias classes.
//
// Conflicts are never materialized: two tensors conflict iff both are placed in the arena,
// their intervals overlap, and they are not in the same ref-alias class.
type ConstraintGraph struct {
	reg *Registry

	// placeable tensors take space in the arena: not external and non-zero size.
	placeable []bool

	// aliasRoot is the tensor whose bytes each tensor uses: itself, except for ref_output tensors.
	aliasRoot []TensorID

	// aliasMembers maps a root to the ref_output tensors aliasing it (directly or through a chain), in id order.
	aliasMembers map[TensorID][]TensorID

	// groupOf is the index of the contiguous group of each tensor, or -1.
	groupOf []int

	// index of the intervals of the placeable tensors.
	index *intervalIndex[int]
}

// BuildConstraints validates the declared contiguity groups and ref-aliases, and indexes the tensor intervals.
// It must be called after BuildLiveness.
//
// It returns an *UnsatisfiableConstraintError with the offending tensors if the declarations can't be honored.
func BuildConstraints(pc *PlanningContext) error {
	if !pc.livenessDone {
		return errors.New("BuildConstraints requires BuildLiveness to be run first")
	}
	reg := pc.Registry
	numTensors := reg.NumTensors()
	cg := &ConstraintGraph{
		reg:          reg,
		placeable:    make([]bool, numTensors),
		aliasRoot:    make([]TensorID, numTensors),
		aliasMembers: make(map[TensorID][]TensorID),
		groupOf:      make([]int, numTensors),
	}
	var spans []span[int]
	for ii, t := range reg.tensors {
		cg.aliasRoot[ii] = t.ID
		cg.groupOf[ii] = -1
		cg.placeable[ii] = !t.IsExternal() && t.AlignedSize > 0
		if cg.placeable[ii] {
			spans = append(spans, span[int]{lo: t.Interval.Start, hi: t.Interval.End, id: ii})
		}
	}
	if err := cg.buildAliasClasses(); err != nil {
		return err
	}
	if err := cg.buildContiguousGroups(); err != nil {
		return err
	}
	cg.index = newIntervalIndex(spans)
	cg.countConstraints(spans)
	pc.constraints = cg
	klog.V(1).Infof("somas[%s]: %d placeable tensors, %d ref-alias classes, %d contiguous groups",
		pc.RunID, len(spans), len(cg.aliasMembers), len(reg.contiguousGroups))
	return nil
}

func (cg *ConstraintGraph) buildAliasClasses() error {
	reg := cg.reg
	aliasedBy := make(map[TensorID]TensorID, len(reg.refAliases))
	for _, alias := range reg.refAliases {
		in, out := reg.tensors[alias.Input], reg.tensors[alias.Output]
		ids := []TensorID{in.ID, out.ID}
		switch {
		case in.ID == out.ID:
			return newUnsatisfiableError(ids, "a tensor can't alias itself")
		case out.Category != CategoryRefOutput:
			return newUnsatisfiableError(ids, "the aliasing tensor must be a ref_output, got %s", out.Category)
		case in.Category != CategoryRefInput && in.Category != CategoryRefOutput:
			return newUnsatisfiableError(ids, "the aliased tensor must be a ref_input, got %s", in.Category)
		case alias.EqualSize && out.AlignedSize != in.AlignedSize:
			return newUnsatisfiableError(ids, "declared with equal sizes, but ref_input has %d bytes and ref_output has %d bytes",
				in.AlignedSize, out.AlignedSize)
		case out.AlignedSize > in.AlignedSize:
			return newUnsatisfiableError(ids, "ref_output (%d bytes) doesn't fit in the ref_input it aliases (%d bytes)",
				out.AlignedSize, in.AlignedSize)
		case !in.Interval.Overlaps(out.Interval):
			return newUnsatisfiableError(ids, "ref_output interval %s doesn't overlap its ref_input interval %s",
				out.Interval, in.Interval)
		}
		if previous, found := aliasedBy[out.ID]; found {
			return newUnsatisfiableError([]TensorID{previous, in.ID, out.ID}, "ref_output aliases more than one tensor")
		}
		aliasedBy[out.ID] = in.ID
	}

	for _, t := range reg.tensors {
		if _, found := aliasedBy[t.ID]; !found && t.Category == CategoryRefOutput {
			return newUnsatisfiableError([]TensorID{t.ID}, "ref_output doesn't alias any ref_input")
		}
	}
	for _, t := range reg.tensors {
		if t.Category != CategoryRefOutput {
			continue
		}
		root := aliasedBy[t.ID]
		chain := []TensorID{t.ID, root}
		for reg.tensors[root].Category == CategoryRefOutput {
			root = aliasedBy[root]
			if slices.Contains(chain, root) {
				return newUnsatisfiableError(chain, "ref-alias cycle")
			}
			chain = append(chain, root)
		}
		cg.aliasRoot[t.ID] = root
		cg.aliasMembers[root] = append(cg.aliasMembers[root], t.ID)
		t.RefOverlap = true
		reg.tensors[root].RefOverlap = true
	}
	return nil
}

func (cg *ConstraintGraph) buildContiguousGroups() error {
	reg := cg.reg
	for groupIdx, group := range reg.contiguousGroups {
		for _, id := range group {
			t := reg.tensors[id]
			if previous := cg.groupOf[id]; previous != -1 {
				if previous == groupIdx {
					return newUnsatisfiableError([]TensorID{id}, "tensor listed twice in contiguous group %d", groupIdx)
				}
				return newUnsatisfiableError([]TensorID{id}, "tensor belongs to contiguous groups %d and %d", previous, groupIdx)
			}
			if t.IsExternal() {
				return newUnsatisfiableError(slices.Clone(group), "external input #%d can't be part of contiguous group %d", id, groupIdx)
			}
			if t.Category == CategoryRefOutput {
				return newUnsatisfiableError([]TensorID{cg.aliasRoot[id], id},
					"ref_output shares the bytes of its ref_input, it can't be part of contiguous group %d", groupIdx)
			}
			cg.groupOf[id] = groupIdx
		}
	}
	return nil
}

// countConstraints sets Tensor.NumConstraints, counting overlaps with sorted interval ends instead of enumerating them.
func (cg *ConstraintGraph) countConstraints(spans []span[int]) {
	starts := make([]int, len(spans))
	ends := make([]int, len(spans))
	for ii, s := range spans {
		starts[ii], ends[ii] = s.lo, s.hi
	}
	slices.Sort(starts)
	slices.Sort(ends)
	for _, s := range spans {
		t := cg.reg.tensors[s.id]
		count := countOverlaps(starts, ends, s.lo, s.hi) - 1 // Itself.
		root := cg.aliasRoot[t.ID]
		for _, member := range cg.AliasClass(root) {
			if member != t.ID && cg.placeable[member] && cg.reg.tensors[member].Interval.Overlaps(t.Interval) {
				count--
			}
		}
		t.NumConstraints = count
	}
}

// Placeable returns whether the tensor takes space in the arena.
func (cg *ConstraintGraph) Placeable(id TensorID) bool { return cg.placeable[id] }

// AliasRoot returns the tensor whose bytes the given tensor uses: for ref_output tensors it is the
// ref_input at the start of its alias chain, for every other tensor it is itself.
func (cg *ConstraintGraph) AliasRoot(id TensorID) TensorID { return cg.aliasRoot[id] }

// AliasClass returns the root followed by every ref_output aliasing it.
func (cg *ConstraintGraph) AliasClass(root TensorID) []TensorID {
	return append([]TensorID{root}, cg.aliasMembers[root]...)
}

// ContiguousGroup returns the index of the contiguous group the tensor belongs to, if any.
func (cg *ConstraintGraph) ContiguousGroup(id TensorID) (groupIdx int, found bool) {
	groupIdx = cg.groupOf[id]
	return groupIdx, groupIdx >= 0
}

// Conflicts returns whether the two tensors must occupy disjoint byte ranges.
func (cg *ConstraintGraph) Conflicts(a, b TensorID) bool {
	if a == b || !cg.placeable[a] || !cg.placeable[b] || cg.aliasRoot[a] == cg.aliasRoot[b] {
		return false
	}
	return cg.reg.tensors[a].Interval.Overlaps(cg.reg.tensors[b].Interval)
}

// ForEachConflict calls fn for every tensor conflicting with id, in order of interval start.
func (cg *ConstraintGraph) ForEachConflict(id TensorID, fn func(other TensorID)) {
	if !cg.placeable[id] {
		return
	}
	iv := cg.reg.tensors[id].Interval
	root := cg.aliasRoot[id]
	cg.index.ForEachOverlap(iv.Start, iv.End, func(other int) {
		otherID := TensorID(other)
		if otherID != id && cg.aliasRoot[otherID] != root {
			fn(otherID)
		}
	})
}

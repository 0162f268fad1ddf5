// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"cmp"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// placementUnit is a block of bytes placed as a whole: a single tensor with the ref_output tensors
// aliasing it, or a contiguous group.
type placementUnit struct {
	// tensors in layout order, and their offsets relative to the start of the unit.
	tensors    []TensorID
	relOffsets []int64

	size     int64
	interval Interval

	// workspace units are made only of workspace tensors.
	workspace bool

	offset int64
}

func (u *placementUnit) first() TensorID { return u.tensors[0] }

// Solve assigns an offset to every placeable tensor. It must be called after BuildConstraints.
//
// It is a best-fit, decreasing-size heuristic: units are placed largest first (earliest first on ties),
// and each one goes into the smallest gap left between the already placed units that are alive at the
// same time, or on top of them if no gap is large enough. It is not optimal, but it's deterministic and
// O(n log n + k), where k is the number of conflicting pairs.
func Solve(pc *PlanningContext) error {
	cg := pc.constraints
	if cg == nil {
		return errors.New("Solve requires BuildConstraints to be run first")
	}
	reg := pc.Registry
	alignment := pc.Config.Alignment
	units := buildPlacementUnits(reg, cg)
	sortPlacementUnits(units)

	var mainUnits, workspaceUnits []*placementUnit
	for _, u := range units {
		if u.workspace && !pc.Config.WorkspaceMerging {
			workspaceUnits = append(workspaceUnits, u)
		} else {
			mainUnits = append(mainUnits, u)
		}
	}
	mainSize := placeUnits(mainUnits, alignment)
	workspaceSize := placeUnits(workspaceUnits, alignment)
	for _, u := range workspaceUnits {
		u.offset += mainSize
	}

	placed := make([]bool, reg.NumTensors())
	for _, t := range reg.tensors {
		t.Offset = 0
	}
	for _, u := range units {
		for slot, id := range u.tensors {
			offset := u.offset + u.relOffsets[slot]
			// Zero-sized group members still get their slot offset, to keep the group ordered.
			reg.tensors[id].Offset = offset
			for _, member := range cg.AliasClass(id) {
				if cg.placeable[member] {
					reg.tensors[member].Offset = offset
					placed[member] = true
				}
			}
		}
	}

	pc.units = units
	pc.placed = placed
	pc.arenaSize = mainSize + workspaceSize
	pc.workspaceRegionSize = workspaceSize
	klog.V(1).Infof("somas[%s]: placed %d units, arena of %s (workspace region %s)",
		pc.RunID, len(units), humanize.IBytes(uint64(pc.arenaSize)), humanize.IBytes(uint64(workspaceSize)))
	return nil
}

// buildPlacementUnits creates one unit per contiguous group and one per remaining placeable alias root.
// The interval of a unit covers the intervals of all its tensors and of the tensors aliasing them.
func buildPlacementUnits(reg *Registry, cg *ConstraintGraph) []*placementUnit {
	alignment := reg.config.Alignment
	classInterval := func(root TensorID) (iv Interval, found bool) {
		for _, member := range cg.AliasClass(root) {
			if !cg.placeable[member] {
				continue
			}
			if !found {
				iv, found = reg.tensors[member].Interval, true
			} else {
				iv = iv.Union(reg.tensors[member].Interval)
			}
		}
		return
	}

	units := make([]*placementUnit, 0, reg.NumTensors())
	for _, group := range reg.contiguousGroups {
		u := &placementUnit{workspace: true}
		var hasInterval bool
		for _, id := range group {
			t := reg.tensors[id]
			u.tensors = append(u.tensors, id)
			u.relOffsets = append(u.relOffsets, u.size)
			u.size = alignUp(u.size+t.AlignedSize, alignment)
			u.workspace = u.workspace && t.IsWorkspace()
			if iv, found := classInterval(id); found {
				if hasInterval {
					u.interval = u.interval.Union(iv)
				} else {
					u.interval, hasInterval = iv, true
				}
			}
		}
		if u.size > 0 {
			units = append(units, u)
		}
	}

	for _, t := range reg.tensors {
		if !cg.placeable[t.ID] || cg.aliasRoot[t.ID] != t.ID || cg.groupOf[t.ID] >= 0 {
			continue
		}
		iv, _ := classInterval(t.ID)
		units = append(units, &placementUnit{
			tensors:    []TensorID{t.ID},
			relOffsets: []int64{0},
			size:       t.AlignedSize,
			interval:   iv,
			workspace:  t.IsWorkspace(),
		})
	}
	return units
}

// sortPlacementUnits by decreasing size, then earliest start, then lowest first tensor id.
func sortPlacementUnits(units []*placementUnit) {
	slices.SortFunc(units, func(a, b *placementUnit) int {
		if c := cmp.Compare(b.size, a.size); c != 0 {
			return c
		}
		if c := cmp.Compare(a.interval.Start, b.interval.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.first(), b.first())
	})
}

// placeUnits sets the offset of the units, in the order given, and returns the size of the region used.
func placeUnits(units []*placementUnit, alignment int64) (regionSize int64) {
	spans := make([]span[int], len(units))
	for ii, u := range units {
		spans[ii] = span[int]{lo: u.interval.Start, hi: u.interval.End, id: ii}
	}
	index := newIntervalIndex(spans)
	placed := make([]bool, len(units))
	var busy []span[int64]
	for ii, u := range units {
		busy = busy[:0]
		index.ForEachOverlap(u.interval.Start, u.interval.End, func(other int) {
			if placed[other] {
				o := units[other]
				busy = append(busy, span[int64]{lo: o.offset, hi: o.offset + o.size, id: other})
			}
		})
		u.offset = bestFit(busy, u.size)
		if u.offset%alignment != 0 {
			exceptions.Panicf("unit of tensor #%d placed at unaligned offset %d (alignment %d)", u.first(), u.offset, alignment)
		}
		placed[ii] = true
		regionSize = max(regionSize, u.offset+u.size)
		klog.V(2).Infof("somas: unit of tensor #%d (%d tensors, %d bytes, interval %s) at offset %d, %d live neighbours",
			u.first(), len(u.tensors), u.size, u.interval, u.offset, len(busy))
	}
	return
}

// bestFit returns the start of the smallest gap between the busy byte ranges [lo, hi) that fits size,
// the lowest one on ties. If none fits, it returns the end of the highest busy range.
func bestFit(busy []span[int64], size int64) int64 {
	slices.SortFunc(busy, func(a, b span[int64]) int { return cmp.Compare(a.lo, b.lo) })
	bestOffset, bestGap := int64(-1), int64(-1)
	var cursor int64
	for _, b := range busy {
		if gap := b.lo - cursor; gap >= size && (bestGap < 0 || gap < bestGap) {
			bestOffset, bestGap = cursor, gap
		}
		cursor = max(cursor, b.hi)
	}
	if bestOffset >= 0 {
		return bestOffset
	}
	return cursor
}

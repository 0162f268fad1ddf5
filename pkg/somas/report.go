// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Report is the result of planning, consumed by the execution engine.
type Report struct {
	// RunID identifies the planning run in the logs.
	RunID uuid.UUID

	Alignment int64

	// ArenaSize in bytes: the highest Offset+AlignedSize of all placed tensors.
	ArenaSize int64

	// WorkspaceRegionSize is the size of the separate workspace region at the top of the arena,
	// if Config.WorkspaceMerging is false. It is included in ArenaSize.
	WorkspaceRegionSize int64

	// Offsets of every placed tensor: tensors not listed (external inputs, zero-sized) are not in the arena.
	Offsets map[TensorID]int64

	// Hazards are the cross-stream synchronizations required, sorted by Before, then WaitAfter.
	Hazards []Hazard

	// PeakLive is the largest number of bytes reserved by placement units at the same schedule position.
	// Contiguous groups and ref-alias classes reserve their bytes over the union of their members' intervals.
	PeakLive int64

	// Fragmentation is the fraction of the arena wasted over PeakLive.
	Fragmentation float64

	NumTensors, NumPlaced, NumSkipped int

	// NumReused is the number of placed tensors that reuse bytes of a tensor that died before them.
	NumReused int

	// NumUnits is the number of blocks placed by the solver (contiguous groups count as one).
	NumUnits int
}

// NewReport collects the results of a planning run. It must be called after Solve (and ResolveHazards, if used).
func NewReport(pc *PlanningContext) (*Report, error) {
	if pc.placed == nil {
		return nil, errors.New("NewReport requires Solve to be run first")
	}
	reg := pc.Registry
	r := &Report{
		RunID:               pc.RunID,
		Alignment:           pc.Config.Alignment,
		ArenaSize:           pc.arenaSize,
		WorkspaceRegionSize: pc.workspaceRegionSize,
		Offsets:             make(map[TensorID]int64),
		Hazards:             pc.hazards,
		NumTensors:          reg.NumTensors(),
		NumUnits:            len(pc.units),
	}
	for _, t := range reg.tensors {
		if pc.placed[t.ID] {
			r.Offsets[t.ID] = t.Offset
		}
	}
	r.NumPlaced = len(r.Offsets)
	r.NumSkipped = r.NumTensors - r.NumPlaced

	// Peak: sweep the schedule with a difference array over the units.
	delta := make([]int64, reg.GraphEnd()+2)
	for _, u := range pc.units {
		delta[u.interval.Start] += u.size
		delta[u.interval.End+1] -= u.size
	}
	var live int64
	for _, d := range delta {
		live += d
		r.PeakLive = max(r.PeakLive, live)
	}
	if r.ArenaSize > 0 {
		r.Fragmentation = 1 - float64(r.PeakLive)/float64(r.ArenaSize)
	}

	var lastNext TensorID = -1
	forEachReuse(pc, func(_, next *Tensor) {
		if next.ID != lastNext {
			r.NumReused++
			lastNext = next.ID
		}
	})
	return r, nil
}

// String returns a one-line summary.
func (r *Report) String() string {
	return fmt.Sprintf("arena %s (peak live %s, fragmentation %.1f%%), %d of %d tensors placed in %d units, %d reusing memory, %d hazards",
		humanize.IBytes(uint64(r.ArenaSize)), humanize.IBytes(uint64(r.PeakLive)), 100*r.Fragmentation,
		r.NumPlaced, r.NumTensors, r.NumUnits, r.NumReused, len(r.Hazards))
}

// Validate re-checks the planned layout: aligned offsets and sizes, no two conflicting tensors sharing bytes,
// contiguous groups laid out in order without gaps, ref_output tensors at the offset of what they alias,
// and the arena size. It must be called after Solve.
//
// Any failure is a bug in the planner, and all of them are reported together in one *InternalInvariantViolation.
func Validate(pc *PlanningContext) error {
	if pc.placed == nil {
		return errors.New("Validate requires Solve to be run first")
	}
	reg := pc.Registry
	cg := pc.constraints
	alignment := pc.Config.Alignment
	var violations *multierror.Error
	var top int64
	for _, t := range reg.tensors {
		if t.AlignedSize%alignment != 0 || t.AlignedSize < t.RawSize {
			violations = multierror.Append(violations,
				errors.Errorf("%s: aligned size %d invalid for size %d and alignment %d", t, t.AlignedSize, t.RawSize, alignment))
		}
		if !pc.placed[t.ID] {
			if cg.placeable[t.ID] {
				violations = multierror.Append(violations, errors.Errorf("%s was never placed", t))
			}
			continue
		}
		if t.Offset < 0 || t.Offset%alignment != 0 {
			violations = multierror.Append(violations, errors.Errorf("%s: invalid offset %d for alignment %d", t, t.Offset, alignment))
		}
		top = max(top, t.End())
		cg.ForEachConflict(t.ID, func(otherID TensorID) {
			other := reg.tensors[otherID]
			if otherID > t.ID && t.Offset < other.End() && other.Offset < t.End() {
				violations = multierror.Append(violations, errors.Errorf(
					"%s (interval %s, bytes [%d, %d)) and %s (interval %s, bytes [%d, %d)) are alive at the same time and overlap",
					t, t.Interval, t.Offset, t.End(), other, other.Interval, other.Offset, other.End()))
			}
		})
	}
	if top != pc.arenaSize {
		violations = multierror.Append(violations, errors.Errorf("arena size is %d, but the highest tensor ends at %d", pc.arenaSize, top))
	}

	for groupIdx, group := range reg.contiguousGroups {
		expected := reg.tensors[group[0]].Offset
		for _, id := range group {
			t := reg.tensors[id]
			if t.Offset != expected {
				violations = multierror.Append(violations, errors.Errorf(
					"contiguous group %d: %s at offset %d, expected %d", groupIdx, t, t.Offset, expected))
			}
			expected = alignUp(t.Offset+t.AlignedSize, alignment)
		}
	}

	for _, alias := range reg.refAliases {
		in, out := reg.tensors[alias.Input], reg.tensors[alias.Output]
		if pc.placed[in.ID] && pc.placed[out.ID] && in.Offset != out.Offset {
			violations = multierror.Append(violations, errors.Errorf(
				"%s at offset %d aliases %s at offset %d", out, out.Offset, in, in.Offset))
		}
	}

	if err := violations.ErrorOrNil(); err != nil {
		return errors.WithStack(&InternalInvariantViolation{Err: err})
	}
	return nil
}

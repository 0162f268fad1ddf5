// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"cmp"
	"slices"

	"github.com/gomlx/somas/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ResolveHazards lists the synchronizations the execution engine needs before reusing memory across
// streams. It must be called after Solve, and it doesn't change any offset.
//
// Whenever a tensor takes bytes vacated by an earlier tensor, and some consumer of the earlier
// tensor runs on a different stream than the producer of the new one, the schedule order alone
// doesn't guarantee the earlier reads are finished: a Hazard asks the producer of the new tensor
// to wait for the last consumer of the earlier tensor on that stream.
//
// It does nothing if Config.HazardResolution is false.
func ResolveHazards(pc *PlanningContext) error {
	if pc.placed == nil {
		return errors.New("ResolveHazards requires Solve to be run first")
	}
	pc.hazards = nil
	if !pc.Config.HazardResolution {
		klog.V(1).Infof("somas[%s]: hazard resolution disabled", pc.RunID)
		return nil
	}
	reg := pc.Registry
	hazards := make([]Hazard, 0)
	forEachReuse(pc, func(prev, next *Tensor) {
		if !prev.CrossStream && !next.CrossStream && prev.ProducerStream == next.ProducerStream {
			// All readers of prev run on the same stream as the writer of next.
			return
		}
		for _, use := range lastUsePerStream(reg, prev) {
			if use.stream == next.ProducerStream {
				continue
			}
			hazards = append(hazards, Hazard{
				WaitAfter:    prev.ID,
				Before:       next.ID,
				WaitNode:     use.node,
				BeforeNode:   next.ProducerNode,
				WaitStream:   use.stream,
				BeforeStream: next.ProducerStream,
			})
		}
	})
	slices.SortFunc(hazards, func(a, b Hazard) int {
		if c := cmp.Compare(a.Before, b.Before); c != 0 {
			return c
		}
		if c := cmp.Compare(a.WaitAfter, b.WaitAfter); c != 0 {
			return c
		}
		return cmp.Compare(a.WaitStream, b.WaitStream)
	})
	pc.hazards = hazards
	klog.V(1).Infof("somas[%s]: %d cross-stream hazards", pc.RunID, len(hazards))
	return nil
}

// forEachReuse calls fn for every pair of placed tensors sharing bytes where prev is dead before next is produced.
// Pairs are visited in order of next's id.
func forEachReuse(pc *PlanningContext, fn func(prev, next *Tensor)) {
	reg := pc.Registry
	cg := pc.constraints
	spans := make([]span[int64], 0, reg.NumTensors())
	for _, t := range reg.tensors {
		if pc.placed[t.ID] {
			spans = append(spans, span[int64]{lo: t.Offset, hi: t.End() - 1, id: int(t.ID)})
		}
	}
	index := newIntervalIndex(spans)
	for _, s := range spans {
		next := reg.tensors[s.id]
		index.ForEachOverlap(s.lo, s.hi, func(other int) {
			prev := reg.tensors[other]
			if cg.aliasRoot[prev.ID] == cg.aliasRoot[next.ID] {
				return
			}
			if prev.Interval.End < next.Interval.Start {
				fn(prev, next)
			}
		})
	}
}

type streamUse struct {
	stream StreamID
	node   NodeID
}

// lastUsePerStream returns, for each stream reading the tensor, its last consumer on that stream.
// A tensor without consumers is considered last used by its producer.
func lastUsePerStream(reg *Registry, t *Tensor) []streamUse {
	if len(t.Consumers) == 0 {
		return []streamUse{{stream: t.ProducerStream, node: t.ProducerNode}}
	}
	var uses []streamUse
	for _, consumer := range sets.Sorted(t.Consumers) {
		stream := reg.nodes[consumer].Stream
		pos := slices.IndexFunc(uses, func(u streamUse) bool { return u.stream == stream })
		if pos < 0 {
			uses = append(uses, streamUse{stream: stream, node: consumer})
		} else {
			uses[pos].node = consumer // Consumers are sorted, so this is a later one.
		}
	}
	slices.SortFunc(uses, func(a, b streamUse) int { return cmp.Compare(a.stream, b.stream) })
	return uses
}

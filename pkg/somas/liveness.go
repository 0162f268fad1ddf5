// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"github.com/gomlx/somas/pkg/support/sets"
	"k8s.io/klog/v2"
)

// BuildLiveness computes the Interval, Lifetime and CrossStream of every tensor from the schedule.
//
// Tensors are independent of each other here, so they are processed in parallel (see Config.Parallelism).
// It returns a *MalformedGraphError if a tensor is consumed before it is produced.
func BuildLiveness(pc *PlanningContext) error {
	reg := pc.Registry
	graphEnd := reg.GraphEnd()
	errs := make([]error, reg.NumTensors())
	pc.pool.ForEach(reg.NumTensors(), func(i int) {
		errs[i] = computeLiveness(reg, reg.tensors[i], graphEnd)
	})
	// Report the error of the lowest tensor id, so the result doesn't depend on scheduling.
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	pc.livenessDone = true
	if klog.V(1).Enabled() {
		var numCrossStream int
		for _, t := range reg.tensors {
			if t.CrossStream {
				numCrossStream++
			}
		}
		klog.Infof("somas[%s]: liveness of %d tensors over %d nodes, %d cross-stream",
			pc.RunID, reg.NumTensors(), reg.NumNodes(), numCrossStream)
	}
	return nil
}

// effectiveLifetime upgrades the declared lifetime for the categories that require it.
func effectiveLifetime(declared LifetimeClass, category Category) LifetimeClass {
	switch category {
	case CategoryWorkspace:
		return LifetimeBounded
	case CategoryExternalInput, CategoryGetNextOutput:
		return LifetimeGlobal
	case CategoryOutputOnly, CategorySummaryInput:
		switch declared {
		case LifetimeBounded:
			return LifetimeToEnd
		case LifetimeFromStart:
			return LifetimeGlobal
		}
	}
	return declared
}

func computeLiveness(reg *Registry, t *Tensor, graphEnd int) error {
	t.Offset = 0
	t.RefOverlap = false
	t.NumConstraints = 0
	t.Lifetime = effectiveLifetime(t.declaredLifetime, t.Category)

	start := 0
	if t.ProducerNode != NoNode {
		start = int(t.ProducerNode)
	}
	lastUse, hasConsumers := sets.Max(t.Consumers)
	t.CrossStream = false
	for _, consumer := range sets.Sorted(t.Consumers) {
		if t.ProducerNode != NoNode && consumer < t.ProducerNode {
			return newMalformedGraphError(t.ID, consumer,
				"consumed by node #%d before being produced by node #%d", consumer, t.ProducerNode)
		}
		if reg.nodes[consumer].Stream != t.ProducerStream {
			t.CrossStream = true
		}
	}

	if t.Category == CategoryWorkspace {
		if hasConsumers && (len(t.Consumers) > 1 || !t.Consumers.Has(t.ProducerNode)) {
			return newMalformedGraphError(t.ID, lastUse,
				"workspace of node #%d can't be used by other nodes", t.ProducerNode)
		}
		t.Interval = Interval{Start: start, End: start}
		return nil
	}

	end := graphEnd
	if hasConsumers {
		end = int(lastUse)
	} else if t.Lifetime == LifetimeBounded && t.Category == CategoryCommon && t.AlignedSize > 0 {
		klog.V(2).Infof("somas: %s has no consumers, keeping it alive until the end of the graph", t)
	}
	switch t.Lifetime {
	case LifetimeGlobal:
		t.Interval = Interval{Start: 0, End: graphEnd}
	case LifetimeFromStart:
		t.Interval = Interval{Start: 0, End: end}
	case LifetimeToEnd:
		t.Interval = Interval{Start: start, End: graphEnd}
	default:
		t.Interval = Interval{Start: start, End: end}
	}
	return nil
}

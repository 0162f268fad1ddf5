// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

// testConfig returns the default configuration with the given alignment.
func testConfig(alignment int64) Config {
	cfg := DefaultConfig()
	cfg.Alignment = alignment
	return cfg
}

// newTestRegistry creates a registry with one node per stream given, named "n<i>".
func newTestRegistry(cfg Config, streams ...StreamID) *Registry {
	reg := NewRegistry(cfg)
	for ii, stream := range streams {
		reg.AddNode(fmt.Sprintf("n%d", ii), stream)
	}
	return reg
}

// addTensor registers a tensor and fails the test on error.
func addTensor(t *testing.T, reg *Registry, def TensorDef) TensorID {
	t.Helper()
	id, err := reg.AddTensor(def)
	require.NoError(t, err)
	return id
}

// common is a shortcut to define a bounded common tensor.
func common(size int64, producer NodeID, consumers ...NodeID) TensorDef {
	return TensorDef{Size: size, Producer: producer, Consumers: consumers}
}

// planOrFail runs Plan and fails the test on error.
func planOrFail(t *testing.T, reg *Registry) *Report {
	t.Helper()
	report, err := Plan(reg)
	require.NoErrorf(t, err, "%+v", err)
	return report
}

// requireNoOverlaps checks every pair of tensors by brute force.
func requireNoOverlaps(t *testing.T, reg *Registry, report *Report) {
	t.Helper()
	tensors := reg.Tensors()
	for _, a := range tensors {
		offA, placedA := report.Offsets[a.ID]
		if !placedA {
			continue
		}
		require.Zerof(t, offA%report.Alignment, "%s unaligned at %d", a, offA)
		require.LessOrEqualf(t, offA+a.AlignedSize, report.ArenaSize, "%s beyond arena", a)
		for _, b := range tensors[a.ID+1:] {
			offB, placedB := report.Offsets[b.ID]
			if !placedB || !a.Interval.Overlaps(b.Interval) {
				continue
			}
			if (a.RefOverlap || b.RefOverlap) && aliasLinked(reg, a.ID, b.ID) {
				continue
			}
			disjoint := offA+a.AlignedSize <= offB || offB+b.AlignedSize <= offA
			require.Truef(t, disjoint, "%s [%d,%d) and %s [%d,%d) overlap, intervals %s and %s",
				a, offA, offA+a.AlignedSize, b, offB, offB+b.AlignedSize, a.Interval, b.Interval)
		}
	}
}

// aliasLinked follows the declared ref-aliases to find whether a and b share the same root.
func aliasLinked(reg *Registry, a, b TensorID) bool {
	root := func(id TensorID) TensorID {
		for {
			next := id
			for _, alias := range reg.RefAliases() {
				if alias.Output == id {
					next = alias.Input
				}
			}
			if next == id {
				return id
			}
			id = next
		}
	}
	return root(a) == root(b)
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildConstraintsFor(reg *Registry) (*PlanningContext, error) {
	pc := NewPlanningContext(reg)
	if err := BuildLiveness(pc); err != nil {
		return nil, err
	}
	return pc, BuildConstraints(pc)
}

func TestBuildConstraints_Conflicts(t *testing.T) {
	reg := newTestRegistry(testConfig(1), 0, 0, 0, 0, 0)
	a := addTensor(t, reg, common(10, 0, 1))
	b := addTensor(t, reg, common(10, 1, 2))
	c := addTensor(t, reg, common(10, 3, 4))
	ri := addTensor(t, reg, TensorDef{Size: 10, Producer: 0, Consumers: []NodeID{2}, Category: CategoryRefInput})
	ro := addTensor(t, reg, TensorDef{Size: 10, Producer: 2, Consumers: []NodeID{3}, Category: CategoryRefOutput})
	ext := addTensor(t, reg, TensorDef{Size: 10, Producer: NoNode, Consumers: []NodeID{1}, Category: CategoryExternalInput})
	empty := addTensor(t, reg, common(0, 1, 2))
	require.NoError(t, reg.AddRefAlias(ri, ro, true))

	pc, err := buildConstraintsFor(reg)
	require.NoError(t, err)
	cg := pc.Constraints()

	assert.True(t, cg.Conflicts(a, b))
	assert.True(t, cg.Conflicts(b, a))
	assert.False(t, cg.Conflicts(a, c))
	assert.False(t, cg.Conflicts(a, a))
	assert.False(t, cg.Conflicts(ri, ro), "ref-alias pairs never conflict")
	assert.True(t, cg.Conflicts(ro, c))
	assert.False(t, cg.Conflicts(ext, a), "external inputs are not placed")
	assert.False(t, cg.Conflicts(empty, b), "zero-sized tensors are not placed")
	assert.False(t, cg.Placeable(ext))
	assert.False(t, cg.Placeable(empty))
	assert.Equal(t, ri, cg.AliasRoot(ro))
	assert.Equal(t, []TensorID{ri, ro}, cg.AliasClass(ri))
	assert.True(t, reg.Tensor(ri).RefOverlap)
	assert.True(t, reg.Tensor(ro).RefOverlap)
	assert.False(t, reg.Tensor(a).RefOverlap)

	var conflicts []TensorID
	cg.ForEachConflict(b, func(other TensorID) { conflicts = append(conflicts, other) })
	assert.ElementsMatch(t, []TensorID{a, ri, ro}, conflicts)

	// NumConstraints: a=[0,1], b=[1,2], c=[3,4], ri=[0,2], ro=[2,3].
	assert.Equal(t, 2, reg.Tensor(a).NumConstraints)  // b, ri
	assert.Equal(t, 3, reg.Tensor(b).NumConstraints)  // a, ri, ro
	assert.Equal(t, 1, reg.Tensor(c).NumConstraints)  // ro
	assert.Equal(t, 2, reg.Tensor(ri).NumConstraints) // a, b
	assert.Equal(t, 2, reg.Tensor(ro).NumConstraints) // b, c
}

func TestBuildConstraints_Unsatisfiable(t *testing.T) {
	type setupFn func(t *testing.T, reg *Registry) []TensorID
	refPair := func(t *testing.T, reg *Registry, inSize, outSize int64) (TensorID, TensorID) {
		ri := addTensor(t, reg, TensorDef{Size: inSize, Producer: 0, Consumers: []NodeID{1}, Category: CategoryRefInput})
		ro := addTensor(t, reg, TensorDef{Size: outSize, Producer: 1, Consumers: []NodeID{2}, Category: CategoryRefOutput})
		return ri, ro
	}
	tests := []struct {
		name  string
		setup setupFn
	}{
		{"overlapping groups", func(t *testing.T, reg *Registry) []TensorID {
			a, b, c := addTensor(t, reg, common(8, 0, 1)), addTensor(t, reg, common(8, 0, 1)), addTensor(t, reg, common(8, 0, 1))
			require.NoError(t, reg.AddContiguousGroup(a, b))
			require.NoError(t, reg.AddContiguousGroup(c, b))
			return []TensorID{b}
		}},
		{"duplicated in group", func(t *testing.T, reg *Registry) []TensorID {
			a := addTensor(t, reg, common(8, 0, 1))
			require.NoError(t, reg.AddContiguousGroup(a, a))
			return []TensorID{a}
		}},
		{"external in group", func(t *testing.T, reg *Registry) []TensorID {
			a := addTensor(t, reg, common(8, 0, 1))
			ext := addTensor(t, reg, TensorDef{Size: 8, Producer: NoNode, Category: CategoryExternalInput})
			require.NoError(t, reg.AddContiguousGroup(a, ext))
			return []TensorID{a, ext}
		}},
		{"ref output in group", func(t *testing.T, reg *Registry) []TensorID {
			ri, ro := refPair(t, reg, 8, 8)
			a := addTensor(t, reg, common(8, 0, 1))
			require.NoError(t, reg.AddRefAlias(ri, ro, true))
			require.NoError(t, reg.AddContiguousGroup(a, ro))
			return []TensorID{ri, ro}
		}},
		{"ref output without input", func(t *testing.T, reg *Registry) []TensorID {
			_, ro := refPair(t, reg, 8, 8)
			return []TensorID{ro}
		}},
		{"ref output larger", func(t *testing.T, reg *Registry) []TensorID {
			ri, ro := refPair(t, reg, 8, 16)
			require.NoError(t, reg.AddRefAlias(ri, ro, false))
			return []TensorID{ri, ro}
		}},
		{"declared equal sizes differ", func(t *testing.T, reg *Registry) []TensorID {
			ri, ro := refPair(t, reg, 16, 8)
			require.NoError(t, reg.AddRefAlias(ri, ro, true))
			return []TensorID{ri, ro}
		}},
		{"ref output aliasing two inputs", func(t *testing.T, reg *Registry) []TensorID {
			ri, ro := refPair(t, reg, 8, 8)
			ri2 := addTensor(t, reg, TensorDef{Size: 8, Producer: 0, Consumers: []NodeID{1}, Category: CategoryRefInput})
			require.NoError(t, reg.AddRefAlias(ri, ro, true))
			require.NoError(t, reg.AddRefAlias(ri2, ro, true))
			return []TensorID{ri, ri2, ro}
		}},
		{"ref output not overlapping input", func(t *testing.T, reg *Registry) []TensorID {
			// ref_input alive in [0,1], ref_output in [3,4]: a tensor alive at 2 could otherwise not reuse their bytes.
			ri := addTensor(t, reg, TensorDef{Size: 64, Producer: 0, Consumers: []NodeID{1}, Category: CategoryRefInput})
			ro := addTensor(t, reg, TensorDef{Size: 64, Producer: 3, Consumers: []NodeID{4}, Category: CategoryRefOutput})
			addTensor(t, reg, common(64, 2, 2))
			require.NoError(t, reg.AddRefAlias(ri, ro, true))
			return []TensorID{ri, ro}
		}},
		{"alias of a common tensor", func(t *testing.T, reg *Registry) []TensorID {
			a := addTensor(t, reg, common(8, 0, 1))
			ro := addTensor(t, reg, TensorDef{Size: 8, Producer: 1, Category: CategoryRefOutput})
			require.NoError(t, reg.AddRefAlias(a, ro, true))
			return []TensorID{a, ro}
		}},
		{"alias cycle", func(t *testing.T, reg *Registry) []TensorID {
			ro1 := addTensor(t, reg, TensorDef{Size: 8, Producer: 1, Category: CategoryRefOutput})
			ro2 := addTensor(t, reg, TensorDef{Size: 8, Producer: 1, Category: CategoryRefOutput})
			require.NoError(t, reg.AddRefAlias(ro1, ro2, true))
			require.NoError(t, reg.AddRefAlias(ro2, ro1, true))
			return []TensorID{ro1, ro2}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(testConfig(1), 0, 0, 0, 0, 0)
			wantIDs := tt.setup(t, reg)
			_, err := buildConstraintsFor(reg)
			var unsatisfiable *UnsatisfiableConstraintError
			require.Truef(t, errors.As(err, &unsatisfiable), "expected UnsatisfiableConstraintError, got %v", err)
			assert.ElementsMatch(t, wantIDs, unsatisfiable.Tensors)
		})
	}
}

func TestBuildConstraints_AliasChain(t *testing.T) {
	reg := newTestRegistry(testConfig(1), 0, 0, 0, 0)
	ri := addTensor(t, reg, TensorDef{Size: 32, Producer: 0, Consumers: []NodeID{1}, Category: CategoryRefInput})
	ro1 := addTensor(t, reg, TensorDef{Size: 32, Producer: 1, Consumers: []NodeID{2}, Category: CategoryRefOutput})
	ro2 := addTensor(t, reg, TensorDef{Size: 16, Producer: 2, Consumers: []NodeID{3}, Category: CategoryRefOutput})
	require.NoError(t, reg.AddRefAlias(ro1, ro2, false))
	require.NoError(t, reg.AddRefAlias(ri, ro1, true))
	pc, err := buildConstraintsFor(reg)
	require.NoError(t, err)
	assert.Equal(t, ri, pc.Constraints().AliasRoot(ro2))
	assert.Equal(t, []TensorID{ri, ro1, ro2}, pc.Constraints().AliasClass(ri))
}

func TestBuildConstraints_RequiresLiveness(t *testing.T) {
	reg := newTestRegistry(testConfig(1), 0)
	require.Error(t, BuildConstraints(NewPlanningContext(reg)))
	require.Error(t, Solve(NewPlanningContext(reg)))
	require.Error(t, ResolveHazards(NewPlanningContext(reg)))
	require.Error(t, Validate(NewPlanningContext(reg)))
	_, err := NewReport(NewPlanningContext(reg))
	require.Error(t, err)
}

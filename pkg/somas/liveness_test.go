// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLiveness(t *testing.T) {
	for _, parallelism := range []int{0, 4} {
		cfg := testConfig(1)
		cfg.Parallelism = parallelism
		reg := newTestRegistry(cfg, 0, 0, 0, 0, 0)
		tests := []struct {
			name         string
			def          TensorDef
			wantInterval Interval
			wantLifetime LifetimeClass
		}{
			{"bounded", common(8, 1, 3, 2), Interval{1, 3}, LifetimeBounded},
			{"no consumers", common(8, 1), Interval{1, 4}, LifetimeBounded},
			{"global", TensorDef{Size: 8, Producer: 2, Consumers: []NodeID{3}, Lifetime: LifetimeGlobal}, Interval{0, 4}, LifetimeGlobal},
			{"from start", TensorDef{Size: 8, Producer: 2, Consumers: []NodeID{3}, Lifetime: LifetimeFromStart}, Interval{0, 3}, LifetimeFromStart},
			{"to end", TensorDef{Size: 8, Producer: 1, Consumers: []NodeID{2}, Lifetime: LifetimeToEnd}, Interval{1, 4}, LifetimeToEnd},
			{"workspace", TensorDef{Size: 8, Producer: 2, Category: CategoryWorkspace, Lifetime: LifetimeGlobal}, Interval{2, 2}, LifetimeBounded},
			{"workspace read by its node", TensorDef{Size: 8, Producer: 1, Consumers: []NodeID{1}, Category: CategoryWorkspace}, Interval{1, 1}, LifetimeBounded},
			{"output only", TensorDef{Size: 8, Producer: 1, Consumers: []NodeID{2}, Category: CategoryOutputOnly}, Interval{1, 4}, LifetimeToEnd},
			{"summary input", TensorDef{Size: 8, Producer: 1, Consumers: []NodeID{2}, Category: CategorySummaryInput, Lifetime: LifetimeFromStart}, Interval{0, 4}, LifetimeGlobal},
			{"get next output", TensorDef{Size: 8, Producer: 0, Consumers: []NodeID{1}, Category: CategoryGetNextOutput}, Interval{0, 4}, LifetimeGlobal},
			{"graph input", common(8, NoNode, 2), Interval{0, 2}, LifetimeBounded},
		}
		ids := make([]TensorID, len(tests))
		for ii, tt := range tests {
			ids[ii] = addTensor(t, reg, tt.def)
		}
		pc := NewPlanningContext(reg)
		require.NoError(t, BuildLiveness(pc))
		for ii, tt := range tests {
			tensor := reg.Tensor(ids[ii])
			assert.Equalf(t, tt.wantInterval, tensor.Interval, "%s (parallelism=%d)", tt.name, parallelism)
			assert.Equalf(t, tt.wantLifetime, tensor.Lifetime, "%s (parallelism=%d)", tt.name, parallelism)
			assert.LessOrEqual(t, tensor.Interval.Start, tensor.Interval.End)
		}
	}
}

func TestBuildLiveness_CrossStream(t *testing.T) {
	reg := newTestRegistry(testConfig(1), 0, 1, 0)
	sameStream := addTensor(t, reg, common(8, 0, 2))
	crossStream := addTensor(t, reg, common(8, 0, 1, 2))
	input := addTensor(t, reg, TensorDef{Size: 8, Producer: NoNode, Stream: 1, Consumers: []NodeID{1}})
	require.NoError(t, BuildLiveness(NewPlanningContext(reg)))
	assert.False(t, reg.Tensor(sameStream).CrossStream)
	assert.True(t, reg.Tensor(crossStream).CrossStream)
	assert.False(t, reg.Tensor(input).CrossStream)
	assert.Equal(t, StreamID(1), reg.Tensor(input).ProducerStream)
}

func TestBuildLiveness_Malformed(t *testing.T) {
	t.Run("consumed before produced", func(t *testing.T) {
		reg := newTestRegistry(testConfig(1), 0, 0, 0)
		addTensor(t, reg, common(8, 0, 1))
		bad := addTensor(t, reg, common(8, 2, 1))
		err := BuildLiveness(NewPlanningContext(reg))
		require.Error(t, err)
		var malformed *MalformedGraphError
		require.True(t, errors.As(err, &malformed), "got %v", err)
		assert.Equal(t, bad, malformed.Tensor)
		assert.Equal(t, NodeID(1), malformed.Node)
	})

	t.Run("workspace shared", func(t *testing.T) {
		reg := newTestRegistry(testConfig(1), 0, 0)
		addTensor(t, reg, TensorDef{Size: 8, Producer: 0, Consumers: []NodeID{1}, Category: CategoryWorkspace})
		var malformed *MalformedGraphError
		require.ErrorAs(t, BuildLiveness(NewPlanningContext(reg)), &malformed)
	})

	t.Run("registration", func(t *testing.T) {
		reg := newTestRegistry(testConfig(1), 0)
		var malformed *MalformedGraphError
		_, err := reg.AddTensor(common(8, 3))
		require.ErrorAs(t, err, &malformed)
		_, err = reg.AddTensor(common(8, 0, 7))
		require.ErrorAs(t, err, &malformed)
		_, err = reg.AddTensor(common(-1, 0))
		require.ErrorAs(t, err, &malformed)
		_, err = reg.AddTensor(TensorDef{Size: 4, Producer: 0, Category: CategoryEventVirtual})
		require.ErrorAs(t, err, &malformed)
		_, err = reg.AddTensor(TensorDef{Size: 4, Producer: NoNode, Category: CategoryWorkspace})
		require.ErrorAs(t, err, &malformed)
		_, err = reg.AddTensor(TensorDef{Size: 4, Producer: 0, Category: Category(100)})
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, 0, reg.NumTensors())
	})
}

func TestRegistry_AlignedSize(t *testing.T) {
	reg := newTestRegistry(testConfig(512), 0)
	for _, tc := range []struct{ raw, aligned int64 }{{0, 0}, {1, 512}, {512, 512}, {513, 1024}} {
		id := addTensor(t, reg, common(tc.raw, 0))
		assert.Equal(t, tc.aligned, reg.Tensor(id).AlignedSize)
		assert.Equal(t, tc.raw, reg.Tensor(id).RawSize)
	}
}

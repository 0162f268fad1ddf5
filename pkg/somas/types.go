// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"fmt"

	"github.com/gomlx/somas/pkg/support/sets"
)

// TensorID identifies a tensor in a Registry. They are assigned sequentially starting from 0.
type TensorID int

// NodeID identifies a node in a Registry. It is also the node's position in the execution order.
type NodeID int

// NoNode is used as the producer of tensors that exist before the graph starts (parameters, weights).
const NoNode NodeID = -1

// StreamID identifies an execution stream. Nodes on different streams may run concurrently.
type StreamID int

// Category of a tensor: it defines how it is placed and how its lifetime is derived.
type Category int

//go:generate go tool enumer -type=Category -trimprefix=Category -transform=snake -values -text -json -output=gen_category_enumer.go types.go

const (
	// CategoryCommon is an ordinary intermediate result.
	CategoryCommon Category = iota

	// CategoryOutputOnly is a graph output: it must survive until the end of the graph.
	CategoryOutputOnly

	// CategoryWorkspace is a kernel scratch buffer, alive only during its producer node.
	CategoryWorkspace

	// CategoryExternalInput is a graph input owned by the caller: it is never placed in the arena.
	CategoryExternalInput

	// CategoryRefInput is a tensor updated in-place by some node: a CategoryRefOutput tensor aliases its bytes.
	CategoryRefInput

	// CategoryRefOutput is the result of an in-place update, aliasing the bytes of a CategoryRefInput tensor.
	CategoryRefOutput

	// CategoryEventVirtual is a zero-sized synchronization marker.
	CategoryEventVirtual

	// CategoryGetNextOutput is the output of the data prefetch node: it is filled asynchronously
	// by the input pipeline, so it is kept alive for the whole graph.
	CategoryGetNextOutput

	// CategorySummaryInput is read by summary collection after the graph finishes, so it is kept
	// alive until the end of the graph.
	CategorySummaryInput
)

// LifetimeClass describes how a tensor's liveness interval is bounded.
type LifetimeClass int

//go:generate go tool enumer -type=LifetimeClass -trimprefix=Lifetime -transform=snake -values -text -json -output=gen_lifetimeclass_enumer.go types.go

const (
	// LifetimeBounded tensors live from their producer to their last consumer.
	LifetimeBounded LifetimeClass = iota

	// LifetimeGlobal tensors live for the whole graph execution.
	LifetimeGlobal

	// LifetimeFromStart tensors live from the graph start to their last consumer.
	LifetimeFromStart

	// LifetimeToEnd tensors live from their producer to the graph end.
	LifetimeToEnd
)

// Interval of schedule positions, both ends included.
type Interval struct {
	Start, End int
}

// Overlaps returns whether the two intervals share at least one schedule position.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start <= other.End && other.Start <= i.End
}

// Union returns the smallest interval containing both.
func (i Interval) Union(other Interval) Interval {
	return Interval{Start: min(i.Start, other.Start), End: max(i.End, other.End)}
}

// Contains returns whether the schedule position is within the interval.
func (i Interval) Contains(pos int) bool {
	return i.Start <= pos && pos <= i.End
}

// String implements fmt.Stringer.
func (i Interval) String() string {
	return fmt.Sprintf("[%d, %d]", i.Start, i.End)
}

// Node is one step of the scheduled graph.
type Node struct {
	ID     NodeID
	Name   string
	Stream StreamID
}

// Tensor is the unit of allocation.
//
// Identity, producer and sizes are set when it is registered. Interval, Lifetime and CrossStream
// are (re)computed by BuildLiveness, NumConstraints and RefOverlap by BuildConstraints, and Offset by Solve.
type Tensor struct {
	ID             TensorID
	Name           string
	ProducerNode   NodeID
	ProducerStream StreamID

	// RawSize is the requested size in bytes, AlignedSize is RawSize rounded up to the alignment unit.
	// AlignedSize == 0 is legal, and such tensors take no space in the arena.
	RawSize, AlignedSize int64

	Category Category

	// Lifetime as declared by the caller, possibly upgraded by BuildLiveness based on the Category.
	Lifetime LifetimeClass

	// Interval in schedule order. For LifetimeGlobal it is always [0, GraphEnd].
	Interval Interval

	// Consumers are the nodes that read this tensor.
	Consumers sets.Set[NodeID]

	// CrossStream is true if at least one consumer runs on a different stream than the producer.
	CrossStream bool

	// RefOverlap is true if this tensor is part of a declared ref-alias pair.
	RefOverlap bool

	// NumConstraints is the number of placed tensors this one must not share bytes with.
	NumConstraints int

	// Offset in the arena, valid after Solve. Tensors that are not placed keep offset 0.
	Offset int64

	// declaredLifetime is kept so planning the same registry twice starts from the same state.
	declaredLifetime LifetimeClass
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if t.Name != "" {
		return fmt.Sprintf("tensor #%d (%q)", t.ID, t.Name)
	}
	return fmt.Sprintf("tensor #%d", t.ID)
}

// IsWorkspace returns whether the tensor is a kernel scratch buffer.
func (t *Tensor) IsWorkspace() bool { return t.Category == CategoryWorkspace }

// IsExternal returns whether the tensor is owned by the caller, and hence never placed.
func (t *Tensor) IsExternal() bool { return t.Category == CategoryExternalInput }

// End returns the tensor's byte range end: Offset+AlignedSize.
func (t *Tensor) End() int64 { return t.Offset + t.AlignedSize }

// RefAlias declares that Output is an in-place update of Input: both share the same bytes.
type RefAlias struct {
	Input, Output TensorID

	// EqualSize declares both tensors to have the same size.
	EqualSize bool
}

// Hazard is a synchronization requirement between two tensors sharing bytes across streams:
// the execution engine must wait for WaitNode (the last consumer of WaitAfter) to complete
// before BeforeNode (the producer of Before) starts.
type Hazard struct {
	WaitAfter    TensorID `json:"wait_after"`
	Before       TensorID `json:"before"`
	WaitNode     NodeID   `json:"wait_node"`
	BeforeNode   NodeID   `json:"before_node"`
	WaitStream   StreamID `json:"wait_stream"`
	BeforeStream StreamID `json:"before_stream"`
}

// String implements fmt.Stringer.
func (h Hazard) String() string {
	return fmt.Sprintf("wait for tensor #%d (node %d, stream %d) before tensor #%d (node %d, stream %d)",
		h.WaitAfter, h.WaitNode, h.WaitStream, h.Before, h.BeforeNode, h.BeforeStream)
}

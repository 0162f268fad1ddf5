// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/somas/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Registry holds the scheduled nodes, the tensors and the declared constraints of one graph.
//
// It is created once per scheduled graph: a new schedule (e.g. after a shape change) requires a new Registry.
// A Registry must not be modified while it is being planned.
type Registry struct {
	config  Config
	nodes   []*Node
	tensors []*Tensor

	contiguousGroups [][]TensorID
	refAliases       []RefAlias

	// planning is set while Plan is running on this registry.
	planning atomic.Bool
}

// NewRegistry creates an empty Registry. It panics if the configuration is invalid, see Config.Check.
func NewRegistry(config Config) *Registry {
	if err := config.Check(); err != nil {
		exceptions.Panicf("somas.NewRegistry: %v", err)
	}
	return &Registry{config: config}
}

// Config returns the configuration the Registry was created with.
func (r *Registry) Config() Config { return r.config }

// AddNode appends a node to the schedule: nodes must be added in execution order.
func (r *Registry) AddNode(name string, stream StreamID) NodeID {
	id := NodeID(len(r.nodes))
	r.nodes = append(r.nodes, &Node{ID: id, Name: name, Stream: stream})
	return id
}

// NumNodes returns the number of scheduled nodes.
func (r *Registry) NumNodes() int { return len(r.nodes) }

// Node returns the node with the given id. It panics if the id is invalid.
func (r *Registry) Node(id NodeID) *Node { return r.nodes[id] }

// Nodes returns all nodes in schedule order. The returned slice must not be modified.
func (r *Registry) Nodes() []*Node { return r.nodes }

// GraphEnd is the schedule position of the last node (0 for an empty graph).
func (r *Registry) GraphEnd() int {
	return max(len(r.nodes)-1, 0)
}

// TensorDef describes a tensor to be registered with AddTensor.
type TensorDef struct {
	Name string

	// Producer is the node that creates the tensor, or NoNode for tensors that exist before the graph
	// starts (parameters, weights).
	Producer NodeID

	// Stream of the producer, used only if Producer is NoNode. Otherwise, the producer node's stream is used.
	Stream StreamID

	// Size in bytes.
	Size int64

	Category Category
	Lifetime LifetimeClass

	// Consumers are the nodes that read the tensor, in any order.
	Consumers []NodeID
}

// AddTensor registers a new tensor and returns its id.
//
// It returns a *MalformedGraphError if the definition references unknown nodes or is otherwise inconsistent.
func (r *Registry) AddTensor(def TensorDef) (TensorID, error) {
	id := TensorID(len(r.tensors))
	if def.Producer != NoNode && !r.validNode(def.Producer) {
		return 0, newMalformedGraphError(id, def.Producer, "unknown producer node (graph has %d nodes)", len(r.nodes))
	}
	for _, consumer := range def.Consumers {
		if !r.validNode(consumer) {
			return 0, newMalformedGraphError(id, consumer, "unknown consumer node (graph has %d nodes)", len(r.nodes))
		}
	}
	if def.Size < 0 {
		return 0, newMalformedGraphError(id, def.Producer, "invalid negative size %d", def.Size)
	}
	if !def.Category.IsACategory() {
		return 0, newMalformedGraphError(id, def.Producer, "invalid category %s", def.Category)
	}
	if !def.Lifetime.IsALifetimeClass() {
		return 0, newMalformedGraphError(id, def.Producer, "invalid lifetime class %s", def.Lifetime)
	}
	switch def.Category {
	case CategoryWorkspace:
		if def.Producer == NoNode {
			return 0, newMalformedGraphError(id, NoNode, "workspace tensors must be allocated by a node")
		}
	case CategoryEventVirtual:
		if def.Size != 0 {
			return 0, newMalformedGraphError(id, def.Producer, "event tensors must have size 0, got %d", def.Size)
		}
	}

	t := &Tensor{
		ID:               id,
		Name:             def.Name,
		ProducerNode:     def.Producer,
		ProducerStream:   def.Stream,
		RawSize:          def.Size,
		AlignedSize:      alignUp(def.Size, r.config.Alignment),
		Category:         def.Category,
		Lifetime:         def.Lifetime,
		declaredLifetime: def.Lifetime,
		Consumers:        sets.MakeWith(def.Consumers...),
	}
	if def.Producer != NoNode {
		t.ProducerStream = r.nodes[def.Producer].Stream
	}
	if len(def.Consumers) == 0 && def.Category == CategoryCommon && def.Lifetime == LifetimeBounded {
		klog.Warningf("somas: %s has no consumers, it will be kept alive until the end of the graph", t)
	}
	r.tensors = append(r.tensors, t)
	return id, nil
}

func (r *Registry) validNode(id NodeID) bool {
	return id >= 0 && int(id) < len(r.nodes)
}

func (r *Registry) validTensor(id TensorID) bool {
	return id >= 0 && int(id) < len(r.tensors)
}

// NumTensors returns the number of registered tensors.
func (r *Registry) NumTensors() int { return len(r.tensors) }

// Tensor returns the tensor with the given id. It panics if the id is invalid.
func (r *Registry) Tensor(id TensorID) *Tensor { return r.tensors[id] }

// Tensors returns all tensors indexed by their id. The returned slice must not be modified.
func (r *Registry) Tensors() []*Tensor { return r.tensors }

// AddContiguousGroup declares that the given tensors must be laid out as one contiguous block,
// in the given order.
//
// Whether groups are disjoint is only checked when planning, see BuildConstraints.
func (r *Registry) AddContiguousGroup(ids ...TensorID) error {
	if len(ids) == 0 {
		return errors.New("AddContiguousGroup: empty group")
	}
	for _, id := range ids {
		if !r.validTensor(id) {
			return errors.Errorf("AddContiguousGroup: unknown tensor #%d", id)
		}
	}
	r.contiguousGroups = append(r.contiguousGroups, append([]TensorID(nil), ids...))
	return nil
}

// ContiguousGroups returns the declared contiguity groups. The returned slices must not be modified.
func (r *Registry) ContiguousGroups() [][]TensorID { return r.contiguousGroups }

// AddRefAlias declares that output is an in-place update of input, so both share the same bytes.
// If equalSize is true, both tensors are required to have the same aligned size.
func (r *Registry) AddRefAlias(input, output TensorID, equalSize bool) error {
	if !r.validTensor(input) {
		return errors.Errorf("AddRefAlias: unknown input tensor #%d", input)
	}
	if !r.validTensor(output) {
		return errors.Errorf("AddRefAlias: unknown output tensor #%d", output)
	}
	r.refAliases = append(r.refAliases, RefAlias{Input: input, Output: output, EqualSize: equalSize})
	return nil
}

// RefAliases returns the declared ref-aliases. The returned slice must not be modified.
func (r *Registry) RefAliases() []RefAlias { return r.refAliases }

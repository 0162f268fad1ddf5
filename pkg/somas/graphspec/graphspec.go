// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graphspec loads scheduled graph descriptions from YAML or JSON files and builds the
// corresponding somas.Registry.
//
// It stands in for the graph compiler when debugging or benchmarking the planner. Example:
//
//	alignment: 64
//	nodes:
//	  - {name: matmul, stream: 0}
//	  - {name: relu, stream: 0}
//	tensors:
//	  - {name: x, dtype: float32, dims: [32, 128], category: external_input, consumers: [matmul]}
//	  - {name: y, dtype: float32, dims: [32, 256], producer: matmul, consumers: [relu]}
//	  - {name: out, size: 32768, producer: relu, category: output_only}
//	  - {name: scratch, size: 4096, producer: matmul, category: workspace}
//
// Nodes are listed in execution order, and tensors are registered in the order listed, so the i-th
// tensor gets somas.TensorID(i).
package graphspec

import (
	"math"
	"os"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/somas/pkg/somas"
	"github.com/gomlx/somas/pkg/support/fsutil"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// Graph is the description of a scheduled graph.
type Graph struct {
	// Alignment overrides the configured alignment, if set.
	Alignment int64 `json:"alignment,omitempty"`

	Nodes   []Node   `json:"nodes"`
	Tensors []Tensor `json:"tensors"`

	// Contiguous lists groups of tensor names that must be laid out contiguously, in order.
	Contiguous [][]string `json:"contiguous,omitempty"`

	Refs []Ref `json:"refs,omitempty"`
}

// Node in the schedule.
type Node struct {
	Name   string         `json:"name"`
	Stream somas.StreamID `json:"stream,omitempty"`
}

// Tensor description. Its size is either given in bytes by Size, or by its DType and Dims.
type Tensor struct {
	Name string `json:"name"`

	DType string `json:"dtype,omitempty"`
	Dims  []int  `json:"dims,omitempty"`
	Size  int64  `json:"size,omitempty"`

	// Producer node name: if empty the tensor exists before the graph starts, and it's attributed to Stream.
	Producer string         `json:"producer,omitempty"`
	Stream   somas.StreamID `json:"stream,omitempty"`

	Consumers []string            `json:"consumers,omitempty"`
	Category  somas.Category      `json:"category,omitempty"`
	Lifetime  somas.LifetimeClass `json:"lifetime,omitempty"`
}

// Ref declares that tensor Output updates tensor Input in-place.
type Ref struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	EqualSize bool   `json:"equal_size,omitempty"`
}

// Parse a YAML or JSON graph description. Unknown fields are errors.
func Parse(data []byte) (*Graph, error) {
	g := &Graph{}
	if err := yaml.UnmarshalStrict(data, g); err != nil {
		return nil, errors.Wrap(err, "failed to parse graph description")
	}
	return g, nil
}

// Load reads and parses the graph description in the given file. A leading "~" in path is
// expanded to the home directory.
func Load(path string) (*Graph, error) {
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read graph description")
	}
	g, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "in %q", path)
	}
	return g, nil
}

// ByteSize returns the size in bytes of the tensor.
//
// If both Size and DType are given, they must agree.
func (t *Tensor) ByteSize() (int64, error) {
	if t.DType == "" {
		if len(t.Dims) > 0 {
			return 0, errors.Errorf("tensor %q has dims but no dtype", t.Name)
		}
		return t.Size, nil
	}
	dtype, err := dtypes.DTypeString(t.DType)
	if err != nil || dtype == dtypes.InvalidDType {
		return 0, errors.Errorf("tensor %q has unknown dtype %q", t.Name, t.DType)
	}
	if slices.ContainsFunc(t.Dims, func(dim int) bool { return dim < 0 }) {
		return 0, errors.Errorf("tensor %q has invalid dims %v", t.Name, t.Dims)
	}
	var size int64
	if !slices.Contains(t.Dims, 0) {
		// Products are checked before multiplying, so they never wrap around.
		numElements := int64(1)
		for _, dim := range t.Dims {
			if numElements > math.MaxInt64/int64(dim) {
				return 0, errors.Errorf("tensor %q: number of elements of %s%v overflows int64", t.Name, dtype, t.Dims)
			}
			numElements *= int64(dim)
		}
		elemSize := int64(dtype.Memory())
		if elemSize > 0 && numElements > math.MaxInt64/elemSize {
			return 0, errors.Errorf("tensor %q: byte size of %s%v overflows int64", t.Name, dtype, t.Dims)
		}
		size = elemSize * numElements
	}
	if t.Size != 0 && t.Size != size {
		return 0, errors.Errorf("tensor %q declares size %d, but %s%v takes %d bytes", t.Name, t.Size, dtype, t.Dims, size)
	}
	return size, nil
}

// Build creates the somas.Registry for the graph, using the given configuration with the
// graph's Alignment, if set.
//
// Errors returned by the registry (e.g. *somas.MalformedGraphError) are kept in the chain.
func (g *Graph) Build(cfg somas.Config) (*somas.Registry, error) {
	if g.Alignment != 0 {
		cfg.Alignment = g.Alignment
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	reg := somas.NewRegistry(cfg)

	nodeIDs := make(map[string]somas.NodeID, len(g.Nodes))
	for _, node := range g.Nodes {
		if node.Name == "" {
			return nil, errors.Errorf("node #%d has no name", len(nodeIDs))
		}
		if _, found := nodeIDs[node.Name]; found {
			return nil, errors.Errorf("node %q defined more than once", node.Name)
		}
		nodeIDs[node.Name] = reg.AddNode(node.Name, node.Stream)
	}
	findNode := func(tensor, name string) (somas.NodeID, error) {
		id, found := nodeIDs[name]
		if !found {
			return somas.NoNode, errors.Errorf("tensor %q references unknown node %q", tensor, name)
		}
		return id, nil
	}

	tensorIDs := make(map[string]somas.TensorID, len(g.Tensors))
	for _, t := range g.Tensors {
		if t.Name == "" {
			return nil, errors.Errorf("tensor #%d has no name", len(tensorIDs))
		}
		if _, found := tensorIDs[t.Name]; found {
			return nil, errors.Errorf("tensor %q defined more than once", t.Name)
		}
		size, err := t.ByteSize()
		if err != nil {
			return nil, err
		}
		def := somas.TensorDef{
			Name:     t.Name,
			Producer: somas.NoNode,
			Stream:   t.Stream,
			Size:     size,
			Category: t.Category,
			Lifetime: t.Lifetime,
		}
		if t.Producer != "" {
			if def.Producer, err = findNode(t.Name, t.Producer); err != nil {
				return nil, err
			}
		}
		for _, consumer := range t.Consumers {
			id, err := findNode(t.Name, consumer)
			if err != nil {
				return nil, err
			}
			def.Consumers = append(def.Consumers, id)
		}
		id, err := reg.AddTensor(def)
		if err != nil {
			return nil, errors.WithMessagef(err, "tensor %q", t.Name)
		}
		tensorIDs[t.Name] = id
	}
	findTensor := func(name string) (somas.TensorID, error) {
		id, found := tensorIDs[name]
		if !found {
			return 0, errors.Errorf("unknown tensor %q", name)
		}
		return id, nil
	}

	for groupIdx, names := range g.Contiguous {
		ids := make([]somas.TensorID, 0, len(names))
		for _, name := range names {
			id, err := findTensor(name)
			if err != nil {
				return nil, errors.WithMessagef(err, "contiguous group #%d", groupIdx)
			}
			ids = append(ids, id)
		}
		if err := reg.AddContiguousGroup(ids...); err != nil {
			return nil, errors.WithMessagef(err, "contiguous group #%d", groupIdx)
		}
	}
	for _, ref := range g.Refs {
		input, err := findTensor(ref.Input)
		if err != nil {
			return nil, errors.WithMessage(err, "ref input")
		}
		output, err := findTensor(ref.Output)
		if err != nil {
			return nil, errors.WithMessage(err, "ref output")
		}
		if err := reg.AddRefAlias(input, output, ref.EqualSize); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// LoadRegistry loads the graph description in path and builds its registry.
func LoadRegistry(path string, cfg somas.Config) (*somas.Registry, error) {
	g, err := Load(path)
	if err != nil {
		return nil, err
	}
	reg, err := g.Build(cfg)
	if err != nil {
		return nil, errors.WithMessagef(err, "building graph from %q", path)
	}
	return reg, nil
}

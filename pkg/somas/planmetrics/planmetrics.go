// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package planmetrics exports the results of memory planning as Prometheus metrics, one
// series per planned graph.
package planmetrics

import (
	"maps"
	"slices"
	"sync"

	"github.com/gomlx/somas/pkg/somas"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	descArenaBytes = iota
	descWorkspaceRegionBytes
	descPeakLiveBytes
	descFragmentation
	descTensors
	descUnits
	descHazards
	descPlans
	numDescriptors
)

var descriptors = [numDescriptors]*prometheus.Desc{
	descArenaBytes: prometheus.NewDesc(
		"somas_arena_bytes",
		"Size of the memory arena planned for a graph.",
		[]string{"graph"}, nil,
	),
	descWorkspaceRegionBytes: prometheus.NewDesc(
		"somas_workspace_region_bytes",
		"Size of the separate workspace region at the top of the arena, 0 if workspaces are merged.",
		[]string{"graph"}, nil,
	),
	descPeakLiveBytes: prometheus.NewDesc(
		"somas_peak_live_bytes",
		"Largest number of bytes alive at the same point of the schedule.",
		[]string{"graph"}, nil,
	),
	descFragmentation: prometheus.NewDesc(
		"somas_fragmentation_ratio",
		"Fraction of the arena wasted over the peak live bytes.",
		[]string{"graph"}, nil,
	),
	descTensors: prometheus.NewDesc(
		"somas_tensors",
		"Number of tensors of a graph, by placement state.",
		[]string{"graph", "state"}, nil,
	),
	descUnits: prometheus.NewDesc(
		"somas_placement_units",
		"Number of blocks placed by the solver.",
		[]string{"graph"}, nil,
	),
	descHazards: prometheus.NewDesc(
		"somas_hazards",
		"Number of cross-stream synchronizations required by the planned layout.",
		[]string{"graph"}, nil,
	),
	descPlans: prometheus.NewDesc(
		"somas_plans_total",
		"Number of times a graph was planned.",
		[]string{"graph"}, nil,
	),
}

type graphStats struct {
	report   *somas.Report
	numPlans int
}

// Collector is a prometheus.Collector of planning reports. It is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	graphs map[string]*graphStats
}

var _ prometheus.Collector = (*Collector)(nil)

// New returns an empty Collector.
func New() *Collector {
	return &Collector{graphs: make(map[string]*graphStats)}
}

// Observe records the report of the latest planning of the named graph.
func (c *Collector) Observe(graph string, report *somas.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats, found := c.graphs[graph]
	if !found {
		stats = &graphStats{}
		c.graphs[graph] = stats
	}
	stats.report = report
	stats.numPlans++
}

// Forget drops the metrics of the named graph.
func (c *Collector) Forget(graph string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.graphs, graph)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, graph := range slices.Sorted(maps.Keys(c.graphs)) {
		stats := c.graphs[graph]
		r := stats.report
		gauge := func(desc int, value float64, labels ...string) {
			ch <- prometheus.MustNewConstMetric(descriptors[desc], prometheus.GaugeValue, value,
				append([]string{graph}, labels...)...)
		}
		gauge(descArenaBytes, float64(r.ArenaSize))
		gauge(descWorkspaceRegionBytes, float64(r.WorkspaceRegionSize))
		gauge(descPeakLiveBytes, float64(r.PeakLive))
		gauge(descFragmentation, r.Fragmentation)
		gauge(descTensors, float64(r.NumPlaced), "placed")
		gauge(descTensors, float64(r.NumSkipped), "skipped")
		gauge(descTensors, float64(r.NumReused), "reused")
		gauge(descUnits, float64(r.NumUnits))
		gauge(descHazards, float64(len(r.Hazards)))
		ch <- prometheus.MustNewConstMetric(descriptors[descPlans], prometheus.CounterValue, float64(stats.numPlans), graph)
	}
}

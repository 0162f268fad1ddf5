// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// somas_plan plans the memory arena of one or more graph descriptions (see package graphspec)
// and reports the results.
//
// Usage:
//
//	somas_plan [flags] graph.yaml [graph2.yaml ...]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/somas/pkg/somas"
	"github.com/gomlx/somas/pkg/somas/graphspec"
	"github.com/gomlx/somas/pkg/somas/planmetrics"
	"github.com/gomlx/somas/pkg/support/fsutil"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagConfig = flag.String("config", "", fmt.Sprintf(
		"Planner configuration, a comma-separated list of options, e.g. \"align=64,no_hazards\". "+
			"If empty, it is read from $%s.", somas.ConfigEnvVar))
	flagTensors = flag.Bool("tensors", false, "Lists the placement of every tensor.")
	flagHazards = flag.Bool("hazards", false, "Lists the cross-stream hazards.")
	flagJSON    = flag.String("json", "", "Writes the offsets of all graphs as JSON to the given file, \"-\" for stdout.")
	flagMetrics = flag.Bool("metrics", false, "Prints the planning statistics in Prometheus text format.")
	flagNoColor = flag.Bool("no_color", false, "Disables colors in the output.")
)

// plannedGraph holds the results for one graph description file.
type plannedGraph struct {
	path     string
	registry *somas.Registry
	report   *somas.Report
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagNoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing graph description files to plan. See 'somas_plan -help'")
		os.Exit(1)
	}
	var cfg somas.Config
	if *flagConfig != "" {
		cfg = must.M1(somas.ParseConfig(*flagConfig))
	} else {
		cfg = must.M1(somas.ConfigFromEnv())
	}

	graphs, failed := planAll(args, cfg)
	for _, g := range graphs {
		reportGraph(g)
	}
	if *flagJSON != "" {
		must.M(writeJSON(*flagJSON, graphs))
	}
	if *flagMetrics {
		printMetrics(graphs)
	}
	if failed > 0 {
		klog.Errorf("%d of %d graphs failed to plan", failed, len(args))
		os.Exit(1)
	}
}

// planAll loads and plans each file, returning the successful ones and the number of failures.
func planAll(paths []string, cfg somas.Config) (graphs []*plannedGraph, failed int) {
	var bar *progressbar.ProgressBar
	if len(paths) > 1 {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Planning: "),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("graphs"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
			progressbar.OptionClearOnFinish(),
		)
	}
	for _, path := range paths {
		g, err := planFile(path, cfg)
		if bar != nil {
			_ = bar.Add(1)
		}
		if err != nil {
			klog.Errorf("%+v", err)
			failed++
			continue
		}
		graphs = append(graphs, g)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return
}

func planFile(path string, cfg somas.Config) (*plannedGraph, error) {
	reg, err := graphspec.LoadRegistry(path, cfg)
	if err != nil {
		return nil, err
	}
	report, err := somas.Plan(reg)
	if err != nil {
		return nil, err
	}
	return &plannedGraph{path: path, registry: reg, report: report}, nil
}

type jsonTensor struct {
	Name     string         `json:"name"`
	Category somas.Category `json:"category"`
	Offset   int64          `json:"offset"`
	Size     int64          `json:"size"`
}

type jsonGraph struct {
	Path      string         `json:"path"`
	RunID     string         `json:"run_id"`
	ArenaSize int64          `json:"arena_size"`
	Tensors   []jsonTensor   `json:"tensors"`
	Hazards   []somas.Hazard `json:"hazards,omitempty"`
}

// writeJSON writes the placed tensors of every graph, in tensor id order.
func writeJSON(path string, graphs []*plannedGraph) error {
	out := make([]jsonGraph, 0, len(graphs))
	for _, g := range graphs {
		jg := jsonGraph{Path: g.path, RunID: g.report.RunID.String(), ArenaSize: g.report.ArenaSize, Hazards: g.report.Hazards}
		for _, t := range g.registry.Tensors() {
			offset, placed := g.report.Offsets[t.ID]
			if !placed {
				continue
			}
			jg.Tensors = append(jg.Tensors, jsonTensor{Name: t.Name, Category: t.Category, Offset: offset, Size: t.AlignedSize})
		}
		out = append(out, jg)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	path, err = fsutil.ExpandHome(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printMetrics(graphs []*plannedGraph) {
	collector := planmetrics.New()
	for _, g := range graphs {
		collector.Observe(filepath.Base(g.path), g.report)
	}
	registry := prometheus.NewRegistry()
	must.M(registry.Register(collector))
	for _, family := range must.M1(registry.Gather()) {
		must.M1(expfmt.MetricFamilyToText(os.Stdout, family))
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(headers ...string) *lgtable.Table {
	return lgtable.New().
		Headers(headers...).
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

func bytesCell(n int64) string {
	return humanize.IBytes(uint64(n))
}

// reportGraph prints the summary of a planned graph, and the tensors and hazards tables if requested.
func reportGraph(g *plannedGraph) {
	r := g.report
	fmt.Println(titleStyle.Render(g.path))
	table := newPlainTable()
	table.Row("run", r.RunID.String())
	table.Row("alignment", humanize.Comma(r.Alignment))
	table.Row("arena", bytesCell(r.ArenaSize))
	if r.WorkspaceRegionSize > 0 {
		table.Row("workspace region", bytesCell(r.WorkspaceRegionSize))
	}
	table.Row("peak live", bytesCell(r.PeakLive))
	table.Row("fragmentation", fmt.Sprintf("%.1f%%", 100*r.Fragmentation))
	table.Row("# tensors", humanize.Comma(int64(r.NumTensors)))
	table.Row("# placed", humanize.Comma(int64(r.NumPlaced)))
	table.Row("# reusing memory", humanize.Comma(int64(r.NumReused)))
	table.Row("# units", humanize.Comma(int64(r.NumUnits)))
	table.Row("# hazards", humanize.Comma(int64(len(r.Hazards))))
	fmt.Println(table.Render())

	if *flagTensors {
		table := newPlainTable("ID", "Name", "Category", "Lifetime", "Interval", "Size", "Offset", "Constraints")
		for _, t := range g.registry.Tensors() {
			offset := "-"
			if off, placed := r.Offsets[t.ID]; placed {
				offset = humanize.Comma(off)
			}
			table.Row(fmt.Sprint(t.ID), t.Name, t.Category.String(), t.Lifetime.String(), t.Interval.String(),
				bytesCell(t.AlignedSize), offset, fmt.Sprint(t.NumConstraints))
		}
		fmt.Println(table.Render())
	}

	if *flagHazards && len(r.Hazards) > 0 {
		nodeName := func(id int) string { return g.registry.Nodes()[id].Name }
		table := newPlainTable("Tensor", "Waits For", "Node", "Stream", "After Node", "After Stream")
		for _, h := range r.Hazards {
			table.Row(g.registry.Tensor(h.Before).Name, g.registry.Tensor(h.WaitAfter).Name,
				nodeName(int(h.BeforeNode)), fmt.Sprint(h.BeforeStream),
				nodeName(int(h.WaitNode)), fmt.Sprint(h.WaitStream))
		}
		fmt.Println(table.Render())
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package multigraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/tgraph/pkg/support/xslices"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
)

func keysString(keys []Key) string {
	if len(keys) == 0 {
		return "-"
	}
	return strings.Join(xslices.Map(keys, func(key Key) string { return strconv.Itoa(int(key)) }), ",")
}

// String renders a table with one row per fragment, in execution order.
func (mg *MultiGraph) String() string {
	reps := mg.Representatives()
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row < 0 {
				return headerRowStyle
			}
			s := evenRowStyle
			if row%2 == 0 {
				s = oddRowStyle
			}
			if col >= 2 && col <= 5 {
				s = s.Align(lipgloss.Right)
			}
			return s
		}).
		Headers("Key", "Kind", "Ops", "Inputs", "Outputs", "Memory", "Preds", "Succs", "Same as")
	for _, key := range mg.order {
		graph, attrs := mg.graphs[key], mg.attrs[key]
		sameAs := "-"
		if rep := reps[key]; rep != key {
			sameAs = strconv.Itoa(int(rep))
		}
		table.Row(
			strconv.Itoa(int(key)),
			attrs.Kind.String(),
			humanize.Comma(int64(len(graph.Ops()))),
			strconv.Itoa(len(graph.Boundary())),
			strconv.Itoa(len(graph.Outputs())),
			humanize.Bytes(uint64(graph.Memory())),
			keysString(attrs.Predecessors),
			keysString(attrs.Successors),
			sameAs,
		)
	}
	return fmt.Sprintf("MultiGraph %s (%d fragments, policy %s):\n%s", mg.id, mg.Len(), mg.policy, table.Render())
}

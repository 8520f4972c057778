package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/tinynpu/tiling"
	"github.com/sarchlab/tinynpu/timing/core"
)

func statsTable(title string, st core.Stats, extra ...table.Row) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Cycles", st.Cycles})
	t.AppendRow(table.Row{"Instructions", st.Instructions})
	t.AppendRow(table.Row{"Tiles", st.Tiles})
	t.AppendRow(table.Row{"Compute cycles", st.ComputeCycles})
	t.AppendRow(table.Row{"Drain cycles", st.DrainCycles})
	t.AppendRow(table.Row{"Buffer writes", st.BufferWrites})
	t.AppendRow(table.Row{"Host write stalls", st.HostWriteStalls})
	for _, r := range extra {
		t.AppendRow(r)
	}

	return t.Render()
}

func matrixTable(title string, m *tiling.Matrix) string {
	t := table.NewWriter()
	t.SetTitle(title)

	header := table.Row{""}
	for c := 0; c < m.Cols; c++ {
		header = append(header, fmt.Sprintf("c%d", c))
	}
	t.AppendHeader(header)

	for r := 0; r < m.Rows; r++ {
		row := table.Row{fmt.Sprintf("r%d", r)}
		for _, v := range m.Row(r) {
			row = append(row, v)
		}
		t.AppendRow(row)
	}

	return t.Render()
}

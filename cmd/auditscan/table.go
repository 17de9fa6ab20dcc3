package main

import (
	"github.com/assetaudit/backend/internal/application/auditsession"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type column struct {
	title   string
	numeric bool
}

// newTable starts a rounded table whose headers keep their case
func newTable(cols ...column) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if c.numeric {
			configs[i].Align = text.AlignRight
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)
	return tw
}

func countsTable(c audit.Counts) string {
	tw := newTable(
		column{"Expected", true},
		column{"Found", true},
		column{"Missing", true},
		column{"Unexpected", true},
	)
	tw.AppendRow(table.Row{c.Expected, c.Found, c.Missing, c.Unexpected})
	return tw.Render()
}

// problemsTable lists codes that never resolved to an asset; empty when there are none
func problemsTable(items []auditsession.ScannedItem) string {
	tw := newTable(column{title: "Code"}, column{title: "Problem"})
	for _, it := range items {
		if e, ok := it.Payload.(auditsession.Errored); ok {
			tw.AppendRow(table.Row{it.Code, e.Reason})
		}
	}
	if tw.Length() == 0 {
		return ""
	}
	return tw.Render()
}

// checklistTable shows every expected asset, found ones first
func checklistTable(entries []audit.ChecklistEntry) string {
	tw := newTable(column{title: "Asset"}, column{title: "State"}, column{"Value", true})
	for _, e := range entries {
		state := "missing"
		if e.Found {
			state = "found"
		}
		tw.AppendRow(table.Row{e.Asset.Name, state, e.Asset.Valuation.StringFixed(2)})
	}
	return tw.Render()
}

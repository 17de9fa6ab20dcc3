package main

import (
	"fmt"
	"io"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report <audit-id>",
		Short: "Show found, missing and unexpected assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAuditID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			rec, err := client.GetReconciliation(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("load reconciliation: %w", err)
			}
			writeReport(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func writeReport(out io.Writer, rec *appaudit.ReconciliationResponse) {
	fmt.Fprintf(out, "Audit %s (%s)\n", rec.AuditSessionID, rec.Status)
	fmt.Fprintln(out, countsTable(rec.Counts))

	tw := newTable(column{title: "Result"}, column{title: "Asset"}, column{"Value", true})
	for _, a := range rec.Found {
		tw.AppendRow(table.Row{"found", a.Name, a.Valuation.StringFixed(2)})
	}
	for _, a := range rec.Missing {
		tw.AppendRow(table.Row{"missing", a.Name, a.Valuation.StringFixed(2)})
	}
	for _, a := range rec.Unexpected {
		tw.AppendRow(table.Row{"unexpected", a.Name, a.Valuation.StringFixed(2)})
	}
	if tw.Length() > 0 {
		fmt.Fprintln(out, tw.Render())
	}
	fmt.Fprintf(out, "Missing value: %s\n", rec.MissingValue.StringFixed(2))
}

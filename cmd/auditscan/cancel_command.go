package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <audit-id>",
		Short: "Abandon an active audit",
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
			cancelled, err := client.CancelAudit(cmd.Context(), id, reason)
			if err != nil {
				return fmt.Errorf("cancel audit: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Audit %s is %s\n", cancelled.ID, cancelled.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the audit is abandoned")
	return cmd
}

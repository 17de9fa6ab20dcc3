package main

import (
	"fmt"
	"strings"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var (
		name        string
		contextType string
		contextID   string
		descendants bool
		assetIDs    []string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Open a new audit and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := appaudit.CreateAuditRequest{
				Name:               name,
				ContextType:        strings.ToUpper(contextType),
				IncludeDescendants: descendants,
			}
			if contextID != "" {
				id, err := uuid.Parse(contextID)
				if err != nil {
					return fmt.Errorf("--context-id must be a UUID")
				}
				req.ContextID = &id
			}
			for _, raw := range assetIDs {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid asset id %q", raw)
				}
				req.AssetIDs = append(req.AssetIDs, id)
			}

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			created, err := client.CreateAudit(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("create audit: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Audit %s opened for %s\n", created.ID, created.ContextName)
			fmt.Fprintf(out, "%d assets expected. Run `auditscan scan %s` to start scanning.\n", created.ExpectedAssetCount, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Audit name")
	cmd.Flags().StringVar(&contextType, "context-type", "LOCATION", "LOCATION, KIT, USER or SELECTION")
	cmd.Flags().StringVar(&contextID, "context-id", "", "Location, kit or custodian id")
	cmd.Flags().BoolVar(&descendants, "descendants", false, "Include child locations")
	cmd.Flags().StringSliceVar(&assetIDs, "asset", nil, "Asset id for a SELECTION audit (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "auditscan",
		Short:         "Scan assets into an audit",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.server, "server", envOr("AUDITSCAN_SERVER", "http://localhost:8080"), "Audit API base URL")
	flags.StringVar(&ctx.token, "token", os.Getenv("AUDITSCAN_TOKEN"), "Bearer token")
	flags.StringVar(&ctx.tenant, "tenant", os.Getenv("AUDITSCAN_TENANT"), "Tenant ID, used when no token is given")
	flags.StringVar(&ctx.user, "user", os.Getenv("AUDITSCAN_USER"), "User ID, used when no token is given")
	flags.DurationVar(&ctx.timeout, "timeout", 30*time.Second, "Request timeout")
	flags.StringVar(&ctx.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newStartCommand(ctx))
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newReportCommand(ctx))
	rootCmd.AddCommand(newCancelCommand(ctx))

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

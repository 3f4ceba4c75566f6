package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/codeflow-backend/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run event workers in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		noWorkers, _ := cmd.Flags().GetBool("no-workers")
		return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
			if noWorkers {
				return a.RunServer(ctx)
			}
			return a.Run(ctx)
		})
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run event workers only",
	Long: "Run event workers only. Any number of worker processes may share one " +
		"database; claims are serialized per event by the store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
			return a.RunWorker(ctx)
		})
	},
}

func init() {
	serveCmd.Flags().Bool("no-workers", false, "serve HTTP without starting event workers")
	rootCmd.Flags().Bool("no-workers", false, "serve HTTP without starting event workers")
}

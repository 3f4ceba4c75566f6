package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/codeflow-backend/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Migrate explicitly below instead of as a side effect of startup.
		noAuto := func(cfg *app.Config) { cfg.AutoMigrate = false }
		return withApp(cmd, noAuto, func(ctx context.Context, a *app.App) error {
			if err := a.Migrate(); err != nil {
				return err
			}
			a.Log.Info("Migration complete")
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the skill catalog and problem bank into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
			return a.Seed(ctx)
		})
	},
}

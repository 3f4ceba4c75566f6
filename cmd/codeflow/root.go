package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/codeflow-backend/internal/app"
	"github.com/yungbote/codeflow-backend/internal/platform/envutil"
	"github.com/yungbote/codeflow-backend/internal/platform/shutdown"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var rootCmd = &cobra.Command{
	Use:           "codeflow",
	Short:         "Skill mastery tracking and adaptive problem sequencing",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("env-file", ".env", "dotenv file loaded before reading the environment")
	pf.String("bkt-params", "", "BKT parameter file (overrides BKT_PARAMS_FILE)")
	pf.String("skills", "", "skill catalog file (overrides SKILLS_FILE)")
	pf.String("problems", "", "problem bank file (overrides PROBLEMS_FILE)")
	pf.Int("workers", 0, "worker loops per process (overrides WORKER_CONCURRENCY)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads .env and the environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command) (app.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := envutil.LoadDotEnv(envFile); err != nil {
		return app.Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg := app.LoadConfig()
	cfg.Version = version
	if p, _ := cmd.Flags().GetString("bkt-params"); p != "" {
		cfg.BKTParamsFile = p
	}
	if p, _ := cmd.Flags().GetString("skills"); p != "" {
		cfg.SkillsFile = p
	}
	if p, _ := cmd.Flags().GetString("problems"); p != "" {
		cfg.ProblemsFile = p
	}
	if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
		cfg.Worker.Concurrency = n
	}
	return cfg, nil
}

// withApp builds the App, runs fn under a signal-aware context and closes
// the App afterwards.
func withApp(cmd *cobra.Command, mutate func(*app.Config), fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if mutate != nil {
		mutate(&cfg)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer a.Close()
	return fn(ctx, a)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("codeflow", version)
	},
}

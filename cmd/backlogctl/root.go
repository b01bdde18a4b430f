package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext(time.Now)

	rootCmd := &cobra.Command{
		Use:           "backlogctl",
		Short:         "Plan play sessions and forecast backlog completion",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&ctx.jsonOutput, "json", false, "Write JSON even when stdout is a terminal")
	flags.StringVar(&ctx.envFile, "env", "", "Dotenv file to load before the environment")
	flags.StringVar(&ctx.dbPath, "db", "", "SQLite database path (overrides BACKLOG_SQLITE_PATH)")
	flags.StringVar(&ctx.lockDir, "lock-dir", "", "Directory for per-user lock files (overrides BACKLOG_LOCK_DIR)")

	rootCmd.AddCommand(newPlanCommand(ctx))
	rootCmd.AddCommand(newProjectCommand(ctx))
	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newUndoCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))

	return rootCmd
}

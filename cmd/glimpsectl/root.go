package main

import (
	"glimpse/internal/logging"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags globalFlags
	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "glimpsectl",
		Short:         "Cull photo folders: thumbnails, labels and exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.debug {
				logging.SetLevel(logging.LevelDebug)
			} else if !flags.verbose {
				logging.SetLevel(logging.LevelWarn)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.dataDir, "data-dir", "", "Data directory (default $GLIMPSE_DATA_DIR or the user data dir)")
	pf.StringVarP(&flags.configPath, "config", "c", "", "Preferences file (default $GLIMPSE_CONFIG or the user config dir)")
	pf.BoolVar(&flags.jsonOutput, "json", false, "Print JSON instead of tables")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Show informational log lines")
	pf.BoolVar(&flags.debug, "debug", false, "Show debug log lines")

	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newOpenCommand(ctx))
	rootCmd.AddCommand(newLabelCommand(ctx))
	rootCmd.AddCommand(newLabelsCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newSessionsCommand(ctx))
	rootCmd.AddCommand(newExifCommand(ctx))
	rootCmd.AddCommand(newThreadsCommand(ctx))
	rootCmd.AddCommand(newStorageCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newVersionCommand(ctx))

	return rootCmd
}

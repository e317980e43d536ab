package main

import (
	"github.com/Sternrassler/wanikani-dict/internal/config"
	"github.com/Sternrassler/wanikani-dict/pkg/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "wanikani-dict",
		Short:        "Build a dictionary archive from WaniKani subjects",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String(config.KeyConfigFile, "", "Config file (yaml, toml or json)")
	flags.String(config.KeyLogLevel, string(logging.LevelInfo), "Log level (debug, info, warn, error)")
	flags.Bool(config.KeyLogPretty, false, "Human-readable console logs")

	root.AddCommand(
		newBuildCmd(),
		newVersionCmd(),
	)

	return root
}

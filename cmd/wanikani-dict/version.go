package main

import (
	"fmt"
	"runtime"

	"github.com/Sternrassler/wanikani-dict/pkg/archive"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wanikani-dict %s (commit %s, %s, archive revision %s)\n",
				version, commit, runtime.Version(), archive.DefaultManifest.Revision)
			return err
		},
	}
}

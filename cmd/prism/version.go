package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prismdata/prism-go/pkg/prism"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		// No config needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "prism %s (commit %s)\n", prism.ReleaseVersion(), prism.BuildCommit())
		},
	}
}

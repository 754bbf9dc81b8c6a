package main

import (
	"io"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

func newRootCommand(out, logOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ticketsim",
		Short:         "ticketsim - a concurrent ticket pool simulation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.SetOut(out)
	rootCmd.SetErr(logOut)

	rootCmd.AddCommand(
		newRunCommand(out, logOut),
		newServeCommand(out, logOut),
		newSchemaCommand(out, logOut),
		newEventsCommand(out, logOut),
		newSummaryCommand(out, logOut),
	)

	return rootCmd
}

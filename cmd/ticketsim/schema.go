package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newSchemaCommand(out, logOut io.Writer) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create the event and snapshot tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ensureSchema(cmd.Context(), printOnly, out, logOut)
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "print the DDL instead of executing it")

	return cmd
}

func ensureSchema(ctx context.Context, printOnly bool, out, logOut io.Writer) error {
	infra, err := setupInfrastructure(ctx, logOut)
	if err != nil {
		return err
	}
	defer func() { _ = infra.Close() }()

	eventLog, err := infra.requireEventLog(ctx)
	if err != nil {
		return err
	}

	if printOnly {
		for _, statement := range eventLog.SchemaStatements() {
			_, _ = fmt.Fprintf(out, "%s;\n\n", statement)
		}

		return nil
	}

	if err = eventLog.EnsureSchema(ctx); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out, "schema is up to date")

	return nil
}

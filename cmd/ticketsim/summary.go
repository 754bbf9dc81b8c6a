package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/ticketpool/ticketpool-simulation-go/shell"
)

func newSummaryCommand(out, logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "summary RUN_ID",
		Short: "Print the recorded summary of a finished run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}

			return printSummary(cmd.Context(), runID, out, logOut)
		},
	}
}

func printSummary(ctx context.Context, runID uuid.UUID, out, logOut io.Writer) error {
	infra, err := setupInfrastructure(ctx, logOut)
	if err != nil {
		return err
	}
	defer func() { _ = infra.Close() }()

	eventLog, err := infra.requireEventLog(ctx)
	if err != nil {
		return err
	}

	summary, err := shell.LoadRunSummary(ctx, eventLog, runID)
	if err != nil {
		return err
	}

	encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(encoded))

	return err
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ticketpool/ticketpool-simulation-go/shell"
	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

func newEventsCommand(out, logOut io.Writer) *cobra.Command {
	var customerID string

	cmd := &cobra.Command{
		Use:   "events RUN_ID",
		Short: "List the pool events persisted for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}

			return listEvents(cmd.Context(), runID, customerID, out, logOut)
		},
	}

	cmd.Flags().StringVar(&customerID, "customer", "", "only list the purchases of this customer")

	return cmd
}

func listEvents(ctx context.Context, runID uuid.UUID, customerID string, out, logOut io.Writer) error {
	infra, err := setupInfrastructure(ctx, logOut)
	if err != nil {
		return err
	}
	defer func() { _ = infra.Close() }()

	eventLog, err := infra.requireEventLog(ctx)
	if err != nil {
		return err
	}

	filter := shell.RunEventsFilter(runID)
	if customerID != "" {
		filter = shell.CustomerPurchasesFilter(runID, customerID)
	}

	events, err := shell.LoadEvents(ctx, eventLog, filter)
	if err != nil {
		return err
	}

	for _, event := range events {
		_, _ = fmt.Fprintln(out, formatEvent(event))
	}

	return nil
}

func formatEvent(event ticketpool.Event) string {
	line := fmt.Sprintf("%s %-8s ticket=%d actor=%s",
		event.OccurredAt.Format(time.RFC3339Nano), event.Kind, event.TicketID, event.ActorID)

	if event.Kind == ticketpool.EventKindSold {
		line += fmt.Sprintf(" vip=%t", event.VIP)
	}

	return line
}

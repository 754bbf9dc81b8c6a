package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ticketpool/ticketpool-simulation-go/simulation"
	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

func newRunCommand(out, logOut io.Writer) *cobra.Command {
	var flags *simulationFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation until all tickets are sold or it is interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runSimulation(ctx, cfg, out, logOut)
		},
	}

	flags = addSimulationFlags(cmd.Flags())

	return cmd
}

func runSimulation(ctx context.Context, cfg simulation.Config, out, logOut io.Writer) error {
	infra, err := setupInfrastructure(ctx, logOut)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := infra.Close(); closeErr != nil {
			infra.logger.Error("shutting down infrastructure failed", "error", closeErr.Error())
		}
	}()

	if _, err = infra.openEventLog(ctx); err != nil {
		return err
	}

	options, err := infra.coordinatorOptions(statisticsPrinter(out))
	if err != nil {
		return err
	}

	coordinator, err := simulation.NewCoordinator(options...)
	if err != nil {
		return err
	}

	if err = coordinator.Start(cfg); err != nil {
		return err
	}

	select {
	case <-coordinator.Done():
	case <-ctx.Done():
		if stopErr := coordinator.Stop(); stopErr != nil {
			infra.logger.Warn("stopping simulation failed", "error", stopErr.Error())
		}
	}

	status := coordinator.Status()
	_, _ = fmt.Fprintf(out, "run %s %s: produced=%d sold=%d available=%d complete=%t\n",
		status.RunID, status.State, status.Statistics.Produced, status.Statistics.Sold,
		status.Statistics.Available, status.Statistics.IsComplete)

	return status.Err
}

func statisticsPrinter(out io.Writer) simulation.StatisticsReporter {
	return simulation.StatisticsReporterFunc(func(runID uuid.UUID, stats ticketpool.Statistics) {
		_, _ = fmt.Fprintf(out, "run %s: available=%d produced=%d sold=%d\n",
			runID, stats.Available, stats.Produced, stats.Sold)
	})
}

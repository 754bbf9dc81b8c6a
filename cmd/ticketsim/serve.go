package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ticketpool/ticketpool-simulation-go/httpapi"
	"github.com/ticketpool/ticketpool-simulation-go/simulation"
)

const readHeaderTimeout = 5 * time.Second

func newServeCommand(_, logOut io.Writer) *cobra.Command {
	var (
		flags *simulationFlags
		addr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation control API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, addr, cfg, logOut)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	flags = addSimulationFlags(cmd.Flags())

	return cmd
}

func serve(ctx context.Context, addr string, baseConfig simulation.Config, logOut io.Writer) error {
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

	options, err := infra.coordinatorOptions(nil)
	if err != nil {
		return err
	}

	coordinator, err := simulation.NewCoordinator(options...)
	if err != nil {
		return err
	}

	handler, err := httpapi.NewHandler(coordinator,
		httpapi.WithBaseConfig(baseConfig),
		httpapi.WithLogger(infra.logger),
		httpapi.WithMetrics(infra.metrics),
	)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		infra.logger.Info("http api listening", "addr", addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = server.Shutdown(shutdownCtx)
		cancel()
	}

	if coordinator.State() == simulation.StateRunning {
		_ = coordinator.Stop()
	}

	return err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/api/handlers"
	"github.com/linesmerrill/courtroom-api/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "courtroom-api",
		Short:         "Simulate legal proceedings with role-bound AI agents",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	return root
}

func serveCmd() *cobra.Command {
	var (
		port     string
		inMemory bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := handlers.App{}
			a.Config = *config.New()
			defer func() { _ = zap.L().Sync() }()

			if port != "" {
				a.Config.Port = port
			}
			if a.Config.Port == "" {
				a.Config.Port = "8080"
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			//initialize database and router
			if err := a.Initialize(ctx, inMemory); err != nil {
				return err
			}
			return serve(ctx, &a)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (overrides PORT)")
	cmd.Flags().BoolVar(&inMemory, "memory", false, "keep everything in memory instead of mongo")
	return cmd
}

func serve(ctx context.Context, a *handlers.App) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		zap.S().Infow("courtroom-api is up and running",
			"port", a.Config.Port,
			"url", a.Config.BaseURL,
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	zap.S().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.S().Errorw("failed to shut down cleanly", "error", err)
	}
	return a.Close(shutdownCtx)
}

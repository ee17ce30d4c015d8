package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	service "github.com/okian/audiomatch/internal/app"
	"github.com/okian/audiomatch/pkg/logger"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			// Root context with cancel on SIGINT/SIGTERM.
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logger.Get()
			svc := service.New(cfg, service.WithLogger(log.Named("service")))
			if err := svc.Start(runCtx); err != nil {
				return err
			}
			defer svc.Stop()

			srv := svc.NewHTTPServer()
			errCh := make(chan error, 1)
			go func() {
				log.Info(runCtx, "starting HTTP server", logger.String("addr", cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-runCtx.Done():
			}
			log.Info(runCtx, "shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(runCtx, "server shutdown failed", logger.Error(err))
				return err
			}
			log.Info(runCtx, "server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

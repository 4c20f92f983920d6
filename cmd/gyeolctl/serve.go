package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"gyeol/pkg/gyeol"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTPAddr = addr
			}
			if a.cfg.Level() > slog.LevelDebug {
				gin.SetMode(gin.ReleaseMode)
			}
			return a.withClient(cmd.Context(), func(c *gyeol.Client) error {
				handler, err := c.Handler(cmd.Context())
				if err != nil {
					return err
				}
				return serve(cmd.Context(), a.logger, a.cfg.HTTPAddr, handler)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (env GYEOL_HTTP_ADDR)")
	return cmd
}

// serve runs the server until ctx is cancelled, then drains in-flight
// requests.
func serve(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

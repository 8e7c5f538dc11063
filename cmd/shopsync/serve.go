package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/assistpro/shopsync/cmd/shopsync/handlers"
	"github.com/assistpro/shopsync/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync loop and the local status server",
		Long: `Run the sync engine and scheduler for the tenant and serve the local
status surface: /health, /metrics, /sync/* and the /ws event stream.

The process pushes after every local write, pulls on wake and reconnect,
and keeps running until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default $HTTP_ADDR)")
	return cmd
}

func newServer(a *app, hub *handlers.WSHub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(logging.Middleware())
	e.Use(a.metrics.Middleware())

	handlers.Register(e, handlers.NewSyncHandler(a.session, hub), a.metrics)
	return e
}

func runServe(parent context.Context, opts *ServeOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := opts.Addr
	if addr == "" {
		addr = a.cfg.HTTP.Addr
	}

	hub := handlers.NewWSHub()
	defer hub.Close()
	a.session.Engine.SetEventHandler(hub)

	e := newServer(a, hub)
	a.session.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logging.Info("[Server] Listening", zap.String("addr", addr), zap.String("tenant_id", a.session.TenantID()))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logging.Info("[Server] Shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Warn("[Server] Forced shutdown", zap.Error(err))
	}
	return nil
}

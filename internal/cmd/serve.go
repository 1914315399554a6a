package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskgraph/internal/server"
	"taskgraph/internal/taskstorage/filesystem"

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds how long in-flight requests get on exit.
const shutdownTimeout = 5 * time.Second

// newServeCmd creates the serve command.
func newServeCmd(provider *AppProvider) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the task API over HTTP until interrupted.

The listen address comes from --addr, else server.addr in config.yaml
(default :3000). With the file backend, the snapshot is watched and
changes made by other processes (such as tg commands run alongside the
server) are picked up automatically.

Endpoints live under /v1: /v1/add, /v1/finish, /v1/tasks, /v1/ready,
/v1/blocked, /v1/dependencies, /v1/subtasks and /v1/settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = app.Config.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", addr, err)
			}
			return runServer(ctx, app, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from server.addr)")

	return cmd
}

// runServer serves on ln until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, app *App, ln net.Listener) error {
	srv := server.New(app.Engine, app.Persist, app.Logger)

	if fs, ok := app.Backend.(*filesystem.FilesystemStorage); ok {
		w, err := fs.Watch()
		if err != nil {
			app.Logger.Warn("watching snapshot failed; external changes will not be picked up",
				"path", fs.Path(), "error", err)
		} else {
			defer w.Stop()
			go srv.Follow(ctx, w.Changes)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

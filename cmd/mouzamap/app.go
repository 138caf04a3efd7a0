package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"mouzamap.org/internal/app"
	"mouzamap.org/internal/appconf"
	"mouzamap.org/internal/logging"
	"mouzamap.org/internal/restapi"
	"mouzamap.org/internal/webui"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load boundaries and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			coreApp, err := BuildApplication(cfg)
			if err != nil {
				return err
			}
			srv, api := CreateServer(coreApp, cfg)
			return Run(cmd.Context(), srv, coreApp, api)
		},
	}
}

// NewLogger builds the process logger from configuration. Verbose forces
// debug level.
func NewLogger(cfg appconf.Config) *slog.Logger {
	level := cfg.LogLevel
	if cfg.Verbose {
		level = "debug"
	}
	return logging.New(os.Stdout, cfg.LogFormat, level)
}

// BuildApplication loads the boundaries and wires the application.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	logger := NewLogger(cfg)
	slog.SetDefault(logger)

	coreApp, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return coreApp, nil
}

// CreateServer builds the HTTP server for coreApp. The returned RestAPI must
// be shut down by the caller.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)
	webUI := &webui.WebUI{Application: coreApp}

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	webUI.SetWebUIRoutes(mux)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      api.Handler(mux),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(coreApp.Logger.Handler(), slog.LevelError),
	}
	return srv, api
}

// Run serves until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, coreApp *app.Application, api *restapi.RestAPI) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := coreApp.Logger
	serveErr := make(chan error, 1)
	go func() {
		logging.LogOperation(logger, "server_starting",
			slog.String("addr", srv.Addr),
			slog.String("env", coreApp.Config.Env.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		api.Shutdown()
		logging.SafeCloseWithLogging(coreApp, logger, "application")
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.LogOperation(logger, "server_shutting_down")

	// Streams end first; http.Server.Shutdown would otherwise wait on them.
	api.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	logging.SafeCloseWithLogging(coreApp, logger, "application")

	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logging.LogOperation(logger, "server_stopped")
	return nil
}

// Package main is the entrypoint of the read-only dashboard process.
//
// The dashboard serves the latest shared state record written by airwatch
// over HTTP (GET /api/current, GET /health). It reads the same state backend
// the sampling process writes and never modifies it.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"airwatch/internal/api"
	"airwatch/internal/config"
	"airwatch/internal/state"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "path to the device settings file (default $AIRWATCH_CONFIG or config.json)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	logger := config.NewLogger(stdout, "info")

	var provider config.SecretProvider
	if env := os.Getenv("APP_ENV"); env != "" && env != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return 1
	}
	logger = config.NewLogger(stdout, cfg.LogLevel)

	settingsPath := cfg.SettingsPath
	if *configPath != "" {
		settingsPath = *configPath
	}
	settings, err := config.NewSettingsLoader(settingsPath, cfg.Secrets, logger).Load()
	if err != nil {
		logger.Error("failed to load settings", "path", settingsPath, "error", err)
		return 1
	}

	opened, err := state.Open(ctx, state.OpenConfig{
		Backend:       settings.State.Backend,
		Path:          cfg.StatePath,
		RedisAddr:     settings.State.RedisAddr,
		RedisPassword: cfg.Secrets.RedisPassword.Unmask(),
		RedisKey:      settings.State.RedisKey,
		DatabaseURL:   cfg.Secrets.DatabaseURL.Unmask(),
		Device:        settings.DeviceName,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to open state backend", "error", err)
		return 1
	}
	defer opened.Close()

	srv, err := api.NewServer(opened.Store, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return 1
	}
	srv.MountRoutes()

	ln, err := net.Listen("tcp", ":"+cfg.Dashboard.Port)
	if err != nil {
		logger.Error("failed to listen", "port", cfg.Dashboard.Port, "error", err)
		return 1
	}

	logger.Info("dashboard listening", "addr", ln.Addr().String(), "device", settings.DeviceName)
	if err := serve(ctx, srv.Handler(), ln, logger); err != nil {
		logger.Error("dashboard server failed", "error", err)
		return 1
	}
	logger.Info("dashboard stopped cleanly")
	return 0
}

// serve runs the HTTP server on ln until ctx is cancelled, then shuts it down
// gracefully.
func serve(ctx context.Context, handler http.Handler, ln net.Listener, logger *slog.Logger) error {
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

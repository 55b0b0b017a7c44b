// Package main is the entrypoint of the airwatch sampling process.
//
// One process samples one device: it acquires a reading every interval,
// classifies it, writes the shared state record, emails alerts and uploads
// telemetry. SIGINT or SIGTERM stops the loop, including mid-sleep.
//
// This file handles bootstrapping; wiring.go builds the components from the
// settings file and internal/sampler runs the loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"airwatch/internal/config"
	"airwatch/internal/sampler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 after cancellation or an exhausted
// source, 1 when startup fails.
func run(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("airwatch", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "path to the device settings file (default $AIRWATCH_CONFIG or config.json)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	logger := config.NewLogger(stdout, "info")

	cfg, err := config.LoadConfig(secretProvider())
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return 1
	}
	logger = config.NewLogger(stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	settingsPath := cfg.SettingsPath
	if *configPath != "" {
		settingsPath = *configPath
	}

	loader := config.NewSettingsLoader(settingsPath, cfg.Secrets, logger)
	settings, err := loader.Load()
	if err != nil {
		logger.Error("failed to load settings", "path", settingsPath, "error", err)
		return 1
	}

	logger = logger.With("device", settings.DeviceName)
	logger.Info("airwatch starting",
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"environment", cfg.Environment,
		"settings", settingsPath,
		"source", settings.SourceKind(),
		"interval", settings.Interval().String(),
	)

	deps, err := wire(ctx, cfg, settings, logger)
	if err != nil {
		logger.Error("failed to initialize components", "error", err)
		return 1
	}
	defer deps.Close()

	loop := sampler.New(sampler.Config{
		Device:    settings.DeviceName,
		Interval:  settings.Interval(),
		Source:    deps.Source,
		Settings:  loader,
		Persister: deps.State,
		Notifier:  deps.Notifier,
		Sink:      deps.Sink,
		Metrics:   deps.Metrics,
		Logger:    logger,
	})

	if err := loop.Run(ctx); err != nil {
		logger.Error("sampling loop failed", "error", err)
		return 1
	}
	logger.Info("airwatch stopped")
	return 0
}

// secretProvider returns the SSM provider outside local environments. The
// loader only consults it when *_SSM_PARAM variables are present.
func secretProvider() config.SecretProvider {
	env := os.Getenv("APP_ENV")
	if env == "" || env == "local" {
		return nil
	}
	return config.NewSSMProvider(os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))
}

// closers releases resources in reverse order of acquisition.
type closers []func()

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func describe(kind, detail string) string {
	if detail == "" {
		return kind
	}
	return fmt.Sprintf("%s (%s)", kind, detail)
}

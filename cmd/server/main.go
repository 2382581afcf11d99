package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/supwarden/internal/logging"
	"github.com/iudanet/supwarden/internal/server"
	"github.com/iudanet/supwarden/internal/server/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(flags *config.Flags) error {
	cfg, err := config.Load(flags, os.LookupEnv)
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.New(ctx, cfg, logger, Version)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close resources", slog.Any("error", err))
		}
	}()

	logger.Info("Supwarden server starting",
		slog.String("version", Version),
		slog.String("database", cfg.Database.Driver),
		slog.String("blob", cfg.Blob.Driver),
		slog.String("events", cfg.Events.Driver),
		slog.Bool("google_sign_in", cfg.Auth.GoogleClientID != ""))

	return app.Run(ctx)
}

func printVersion() {
	fmt.Printf("Supwarden Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

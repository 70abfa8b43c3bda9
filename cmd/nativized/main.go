// nativized is the localization daemon: it owns the job queue, runs the
// pipeline workers, and serves the HTTP API the CLI talks to.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"nativize/internal/config"
	"nativize/internal/logging"
	"nativize/internal/objectstore"
	"nativize/internal/preflight"
	"nativize/internal/queue"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		os.Exit(1)
	}

	objects, err := objectstore.New(ctx, cfg)
	if err != nil {
		logger.Error("open object store", logging.Error(err))
		os.Exit(1)
	}

	reportPreflight(ctx, cfg, objects, logger)

	d, err := buildDaemon(cfg, store, objects, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("nativized shutting down")
	d.Stop()
}

func reportPreflight(ctx context.Context, cfg *config.Config, objects objectstore.Store, logger *slog.Logger) {
	for _, result := range preflight.RunAll(ctx, cfg, objects) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		if status.Available {
			continue
		}
		logger.Warn("missing system dependency",
			logging.String("name", status.Name),
			logging.String("detail", status.Detail),
		)
	}
}

package main

import (
	"time"

	"log/slog"

	"nativize/internal/analysis"
	"nativize/internal/config"
	"nativize/internal/daemon"
	"nativize/internal/ingest"
	"nativize/internal/objectstore"
	"nativize/internal/queue"
	"nativize/internal/services/analyzer"
	"nativize/internal/services/speech"
	"nativize/internal/stageexec"
	"nativize/internal/stitching"
	"nativize/internal/synthesis"
	"nativize/internal/workflow"
)

// buildDaemon wires the four pipeline stages against their live service
// clients and hands the assembled workflow to the daemon.
func buildDaemon(cfg *config.Config, store *queue.Store, objects objectstore.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	breakers := stageexec.NewBreakerSet(
		cfg.Retry.BreakerThreshold,
		time.Duration(cfg.Retry.BreakerCooldownSeconds)*time.Second,
	)

	stages := workflow.Stages{
		Ingest:    ingest.NewHandler(cfg, logger, objects),
		Analysis:  analysis.NewHandler(cfg, logger, analyzer.NewClientFromConfig(cfg), objects, breakers),
		Synthesis: synthesis.NewHandler(cfg, logger, speech.NewClientFromConfig(cfg), objects, store, breakers),
		Stitching: stitching.NewHandler(cfg, logger, objects),
	}

	manager := workflow.NewManager(cfg, store, objects, logger, stages)
	return daemon.New(cfg, store, objects, logger, manager)
}

// Package ingest implements the uploading stage: the source video is
// moved into the object store, staged locally, and validated before any
// analysis spend happens.
package ingest

import (
	"context"
	"fmt"
	"os"

	"log/slog"

	"nativize/internal/config"
	"nativize/internal/language"
	"nativize/internal/logging"
	"nativize/internal/media/ffprobe"
	"nativize/internal/objectstore"
	"nativize/internal/queue"
	"nativize/internal/services"
	"nativize/internal/stage"
	"nativize/internal/staging"
)

// ProbeFunc matches ffprobe.Inspect and is injectable for tests.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Handler stages and validates the source video.
type Handler struct {
	cfg     *config.Config
	logger  *slog.Logger
	objects objectstore.Store
	probe   ProbeFunc
}

// NewHandler constructs the ingest stage handler.
func NewHandler(cfg *config.Config, logger *slog.Logger, objects objectstore.Store) *Handler {
	return &Handler{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "ingest"),
		objects: objects,
		probe:   ffprobe.Inspect,
	}
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "ingest")
}

// WithProbe overrides the media prober for tests.
func (h *Handler) WithProbe(probe ProbeFunc) {
	if probe != nil {
		h.probe = probe
	}
}

// Prepare validates the request and creates the job workspace.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	if !language.Supported(job.TargetLanguage) {
		return services.Wrap(services.ErrValidation, "uploading", "prepare",
			fmt.Sprintf("unsupported target language %q", job.TargetLanguage), nil)
	}
	if job.SourcePath == "" && job.SourceRef == "" {
		return services.Wrap(services.ErrValidation, "uploading", "prepare",
			"job has neither a source path nor an uploaded source reference", nil)
	}
	return staging.NewWorkspace(h.cfg, job.ID).Ensure()
}

// Execute uploads the source into the object store (when submitted by
// path), stages it locally, and probes it. Files without both a video
// and an audio stream are rejected before the analyzer sees them.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	ws := staging.NewWorkspace(h.cfg, job.ID)
	ext := staging.SourceExt(job.SourcePath, job.SourceRef)
	stagedPath := ws.SourcePath(ext)

	switch {
	case job.SourceRef == "":
		ref, err := h.objects.PutFile(ctx, objectstore.JobKey(job.ID, "source"+ext), job.SourcePath)
		if err != nil {
			return err
		}
		job.SourceRef = ref
		job.SetStageProgress(queue.StatusUploading, 0.5)
		if err := copyIntoStaging(job.SourcePath, stagedPath); err != nil {
			return err
		}
	default:
		// Presigned upload: the bytes are already durable, pull them down.
		if err := h.objects.Fetch(ctx, job.SourceRef, stagedPath); err != nil {
			return err
		}
		job.SetStageProgress(queue.StatusUploading, 0.5)
	}

	result, err := h.probe(ctx, h.cfg.FFprobeBinary(), stagedPath)
	if err != nil {
		return err
	}
	if err := result.ValidateSource(); err != nil {
		return err
	}
	duration := result.DurationSeconds()
	if limit := h.cfg.Analyzer.MaxAnalyzableMinute; limit > 0 && duration > float64(limit)*60 {
		return services.Wrap(services.ErrContent, "uploading", "probe",
			fmt.Sprintf("video runs %.0fs, above the %dm analysis limit", duration, limit), nil)
	}
	if limit := h.cfg.Analyzer.MaxSourceMB; limit > 0 && result.SizeBytes() > int64(limit)<<20 {
		return services.Wrap(services.ErrContent, "uploading", "probe",
			fmt.Sprintf("source is %dMB, above the %dMB limit", result.SizeBytes()>>20, limit), nil)
	}
	job.DurationSeconds = duration

	h.logger.Info("source staged",
		logging.String("source_ref", job.SourceRef),
		logging.Float64("duration_seconds", duration),
		logging.Int64("size_bytes", result.SizeBytes()),
	)
	return nil
}

// HealthCheck verifies the workspace root is writable.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := os.MkdirAll(h.cfg.Paths.WorkDir, 0o755); err != nil {
		return stage.Unhealthy("ingest", fmt.Sprintf("work dir unavailable: %v", err))
	}
	return stage.Healthy("ingest")
}

func copyIntoStaging(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return services.Wrap(services.ErrValidation, "uploading", "stage_source",
			fmt.Sprintf("source file not found: %s", src), err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create staged source: %w", err)
	}
	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("stage source: %w", err)
	}
	return out.Close()
}

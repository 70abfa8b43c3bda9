// Package analysis implements the analyzing stage: the staged source is
// sent to the content analyzer and the resulting translated segments
// and cultural report are persisted on the job.
package analysis

import (
	"context"
	"fmt"
	"os"

	"log/slog"

	"nativize/internal/config"
	"nativize/internal/language"
	"nativize/internal/logging"
	"nativize/internal/objectstore"
	"nativize/internal/queue"
	"nativize/internal/services"
	"nativize/internal/services/analyzer"
	"nativize/internal/stage"
	"nativize/internal/stageexec"
	"nativize/internal/staging"
)

// Handler runs content analysis for one job.
type Handler struct {
	cfg      *config.Config
	logger   *slog.Logger
	service  analyzer.Service
	objects  objectstore.Store
	policy   stageexec.RetryPolicy
	breakers *stageexec.BreakerSet
}

// NewHandler constructs the analysis stage handler.
func NewHandler(cfg *config.Config, logger *slog.Logger, service analyzer.Service, objects objectstore.Store, breakers *stageexec.BreakerSet) *Handler {
	return &Handler{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "analysis"),
		service:  service,
		objects:  objects,
		policy:   stageexec.PolicyFromConfig(cfg.Retry),
		breakers: breakers,
	}
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "analysis")
}

// Prepare makes sure the staged source file is present, refetching it
// from the object store when the workspace was cleaned.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	ws := staging.NewWorkspace(h.cfg, job.ID)
	if err := ws.Ensure(); err != nil {
		return err
	}
	path := sourcePath(ws, job)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if job.SourceRef == "" {
		return services.Wrap(services.ErrValidation, "analyzing", "prepare", "job has no source reference", nil)
	}
	return h.objects.Fetch(ctx, job.SourceRef, path)
}

// Execute asks the analyzer for the localization payload and persists
// segments, report, title, and the recommended voice on the job.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	target, ok := language.Lookup(job.TargetLanguage)
	if !ok {
		return services.Wrap(services.ErrValidation, "analyzing", "analyze",
			fmt.Sprintf("unsupported target language %q", job.TargetLanguage), nil)
	}
	ws := staging.NewWorkspace(h.cfg, job.ID)
	path := sourcePath(ws, job)

	var result *analyzer.Result
	err := stageexec.Execute(ctx, h.policy, h.breakers.Get("analyzer"), "analyze", func(ctx context.Context) error {
		var execErr error
		result, execErr = h.service.Analyze(ctx, path, target)
		return execErr
	})
	if err != nil {
		return err
	}

	if err := job.SetSegments(result.Segments); err != nil {
		return err
	}
	if err := job.SetReport(result.Report); err != nil {
		return err
	}
	if result.Title != "" {
		job.Title = result.Title
	}
	if job.Voice == "" && result.VoiceGender != "" {
		// Persist the recommendation; synthesis resolves gender
		// keywords against the voice catalog.
		job.Voice = result.VoiceGender
	}

	h.logger.Info("analysis complete",
		logging.Int("segments", len(result.Segments)),
		logging.Int("adaptations", result.Report.AdaptationCount),
		logging.Int("quality_score", result.Report.QualityScore),
		logging.String("voice", job.Voice),
	)
	return nil
}

// HealthCheck pings the analyzer backend.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.service.Ping(ctx); err != nil {
		return stage.Unhealthy("analysis", err.Error())
	}
	return stage.Healthy("analysis")
}

func sourcePath(ws staging.Workspace, job *queue.Job) string {
	return ws.SourcePath(staging.SourceExt(job.SourcePath, job.SourceRef))
}

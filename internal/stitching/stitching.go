// Package stitching implements the final stage: the dubbed audio track
// is assembled on the source timeline, muxed over the original video,
// and rendered into mobile and messaging-sized versions, all of which
// are uploaded as the job's outputs.
package stitching

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"log/slog"

	"nativize/internal/config"
	"nativize/internal/fileutil"
	"nativize/internal/localization"
	"nativize/internal/logging"
	"nativize/internal/media/ffprobe"
	"nativize/internal/media/mux"
	"nativize/internal/objectstore"
	"nativize/internal/queue"
	"nativize/internal/services"
	"nativize/internal/stage"
	"nativize/internal/staging"
)

// ProbeFunc matches ffprobe.Inspect and is injectable for tests.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Runner abstracts the ffmpeg runner for tests.
type Runner interface {
	Execute(ctx context.Context, args []string) error
}

// Handler assembles and uploads the localized outputs.
type Handler struct {
	cfg     *config.Config
	logger  *slog.Logger
	objects objectstore.Store
	runner  Runner
	probe   ProbeFunc
}

// NewHandler constructs the stitching stage handler.
func NewHandler(cfg *config.Config, logger *slog.Logger, objects objectstore.Store) *Handler {
	return &Handler{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "stitching"),
		objects: objects,
		runner:  mux.NewRunner(cfg.FFmpegBinary(), logger),
		probe:   ffprobe.Inspect,
	}
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "stitching")
	if runner, ok := h.runner.(*mux.Runner); ok {
		runner.SetLogger(logger)
	}
}

// WithRunner overrides the ffmpeg runner for tests.
func (h *Handler) WithRunner(runner Runner) {
	if runner != nil {
		h.runner = runner
	}
}

// WithProbe overrides the media prober for tests.
func (h *Handler) WithProbe(probe ProbeFunc) {
	if probe != nil {
		h.probe = probe
	}
}

// Prepare stages everything the encode needs: the source video and
// every segment's audio clip. A segment without audio means synthesis
// did not finish and the stage must not start.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	segments, err := job.Segments()
	if err != nil {
		return err
	}
	if missing := localization.PendingAudio(segments); len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "stitching", "prepare",
			fmt.Sprintf("segment %d has no audio clip", missing[0]), nil)
	}

	ws := staging.NewWorkspace(h.cfg, job.ID)
	if err := ws.Ensure(); err != nil {
		return err
	}

	sourcePath := ws.SourcePath(staging.SourceExt(job.SourcePath, job.SourceRef))
	if _, err := os.Stat(sourcePath); err != nil {
		if job.SourceRef == "" {
			return services.Wrap(services.ErrValidation, "stitching", "prepare", "job has no source reference", nil)
		}
		if err := h.objects.Fetch(ctx, job.SourceRef, sourcePath); err != nil {
			return err
		}
	}

	for _, seg := range segments {
		clipPath := ws.ClipPath(seg.Index)
		if _, err := os.Stat(clipPath); err == nil {
			continue
		}
		if err := h.objects.Fetch(ctx, seg.AudioRef, clipPath); err != nil {
			return err
		}
	}
	return nil
}

// Execute assembles the dubbed track, muxes it over the source video,
// renders the extra versions, and uploads everything.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	segments, err := job.Segments()
	if err != nil {
		return err
	}
	ws := staging.NewWorkspace(h.cfg, job.ID)
	sourcePath := ws.SourcePath(staging.SourceExt(job.SourcePath, job.SourceRef))

	duration := job.DurationSeconds
	if duration <= 0 {
		result, err := h.probe(ctx, h.cfg.FFprobeBinary(), sourcePath)
		if err != nil {
			return err
		}
		duration = result.DurationSeconds()
		job.DurationSeconds = duration
	}

	timeline := mux.Timeline{
		SourcePath:      sourcePath,
		GapFill:         h.cfg.Media.GapFill,
		DurationSeconds: duration,
	}
	for _, seg := range segments {
		timeline.Clips = append(timeline.Clips, mux.Clip{
			Path:         ws.ClipPath(seg.Index),
			StartSeconds: seg.StartTime,
			EndSeconds:   seg.EndTime,
		})
	}

	assembleArgs, err := mux.AssembleArgs(timeline, ws.CombinedAudioPath())
	if err != nil {
		return err
	}
	if err := h.encode(ctx, assembleArgs); err != nil {
		return err
	}
	job.SetStageProgress(queue.StatusStitching, 0.25)

	if err := h.encode(ctx, mux.MuxArgs(sourcePath, ws.CombinedAudioPath(), ws.OutputPath())); err != nil {
		return err
	}
	job.SetStageProgress(queue.StatusStitching, 0.5)

	if err := h.encode(ctx, mux.MobileArgs(ws.OutputPath(), ws.MobileOutputPath(),
		h.cfg.Media.MobileCRF, h.cfg.Media.MobileScaleHeight)); err != nil {
		return err
	}
	job.SetStageProgress(queue.StatusStitching, 0.65)

	bitrate := mux.WhatsAppBitrateKbps(h.cfg.Media.WhatsAppTargetMB, duration, h.cfg.Media.MinAudioBitrateKbps)
	if err := h.encode(ctx, mux.WhatsAppArgs(ws.OutputPath(), ws.WhatsAppOutputPath(),
		bitrate, h.cfg.Media.WhatsAppScaleHeight)); err != nil {
		return err
	}
	job.SetStageProgress(queue.StatusStitching, 0.8)

	if err := h.uploadOutputs(ctx, job, ws); err != nil {
		return err
	}
	h.renderSubtitles(ctx, job, ws, segments)
	job.WordsLocalized = localization.WordsLocalized(segments)

	if !h.cfg.Media.KeepIntermediateFiles {
		if err := ws.Remove(); err != nil {
			h.logger.Warn("failed to remove job workspace", logging.Error(err))
		}
	}

	h.logger.Info("outputs uploaded",
		logging.String("output_ref", job.OutputRef),
		logging.String("mobile_ref", job.MobileOutputRef),
		logging.String("whatsapp_ref", job.WhatsAppRef),
		logging.Int("words_localized", job.WordsLocalized),
	)
	return nil
}

// encode runs one ffmpeg invocation, retrying a failed encode once.
// Transient encoder crashes (out of memory, flaky codecs) usually pass
// on the second run; an interruption is not retried.
func (h *Handler) encode(ctx context.Context, args []string) error {
	err := h.runner.Execute(ctx, args)
	if err == nil || !errors.Is(err, services.ErrEncoding) || ctx.Err() != nil {
		return err
	}
	h.logger.Warn("encode failed, retrying once", logging.Error(err))
	return h.runner.Execute(ctx, args)
}

func (h *Handler) uploadOutputs(ctx context.Context, job *queue.Job, ws staging.Workspace) error {
	base := fileutil.SafeBaseName(job.Title)
	if base == "media" && job.SourcePath != "" {
		base = fileutil.SafeBaseName(job.SourcePath)
	}
	lang := strings.ToLower(job.TargetLanguage)

	ref, err := h.objects.PutFile(ctx, objectstore.JobKey(job.ID, fmt.Sprintf("%s_%s.mp4", base, lang)), ws.OutputPath())
	if err != nil {
		return err
	}
	job.OutputRef = ref

	ref, err = h.objects.PutFile(ctx, objectstore.JobKey(job.ID, fmt.Sprintf("%s_%s_mobile.mp4", base, lang)), ws.MobileOutputPath())
	if err != nil {
		return err
	}
	job.MobileOutputRef = ref

	ref, err = h.objects.PutFile(ctx, objectstore.JobKey(job.ID, fmt.Sprintf("%s_%s_whatsapp.mp4", base, lang)), ws.WhatsAppOutputPath())
	if err != nil {
		return err
	}
	job.WhatsAppRef = ref
	return nil
}

// renderSubtitles writes and uploads the WebVTT track. Subtitles are
// best-effort: a failure is logged, never fatal this late in the job.
func (h *Handler) renderSubtitles(ctx context.Context, job *queue.Job, ws staging.Workspace, segments []localization.Segment) {
	if !h.cfg.Media.SubtitlesEnabled {
		return
	}
	doc := localization.RenderWebVTT(segments)
	if err := os.WriteFile(ws.SubtitlesPath(), []byte(doc), 0o644); err != nil {
		h.logger.Warn("failed to write subtitles", logging.Error(err))
		return
	}
	ref, err := h.objects.PutFile(ctx, objectstore.JobKey(job.ID, "subtitles.vtt"), ws.SubtitlesPath())
	if err != nil {
		h.logger.Warn("failed to upload subtitles", logging.Error(err))
		return
	}
	job.SubtitlesRef = ref
}

// HealthCheck verifies the ffmpeg binary is present.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(h.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy("stitching", fmt.Sprintf("ffmpeg not found: %v", err))
	}
	return stage.Healthy("stitching")
}

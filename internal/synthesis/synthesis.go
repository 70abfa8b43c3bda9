// Package synthesis implements the generating_audio stage: every
// segment without an audio reference is rendered to speech, uploaded,
// and linked back onto the segment. The stage completes only when every
// segment carries a clip.
package synthesis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"nativize/internal/config"
	"nativize/internal/localization"
	"nativize/internal/logging"
	"nativize/internal/media/ffprobe"
	"nativize/internal/objectstore"
	"nativize/internal/queue"
	"nativize/internal/services"
	"nativize/internal/services/speech"
	"nativize/internal/stage"
	"nativize/internal/stageexec"
	"nativize/internal/staging"
)

// Overrun tolerance before a pacing warning is recorded.
const pacingSlack = 1.1

// ProbeFunc matches ffprobe.Inspect and is injectable for tests.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Handler renders segment audio through the speech backend.
type Handler struct {
	cfg      *config.Config
	logger   *slog.Logger
	tts      speech.Service
	objects  objectstore.Store
	store    *queue.Store
	policy   stageexec.RetryPolicy
	breakers *stageexec.BreakerSet
	probe    ProbeFunc
}

// NewHandler constructs the synthesis stage handler.
func NewHandler(cfg *config.Config, logger *slog.Logger, tts speech.Service, objects objectstore.Store, store *queue.Store, breakers *stageexec.BreakerSet) *Handler {
	return &Handler{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "synthesis"),
		tts:      tts,
		objects:  objects,
		store:    store,
		policy:   stageexec.PolicyFromConfig(cfg.Retry),
		breakers: breakers,
		probe:    ffprobe.Inspect,
	}
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "synthesis")
}

// WithProbe overrides the clip duration prober for tests.
func (h *Handler) WithProbe(probe ProbeFunc) {
	if probe != nil {
		h.probe = probe
	}
}

// Prepare ensures the workspace exists and the job carries segments.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	if !job.HasSegments() {
		return services.Wrap(services.ErrValidation, "generating_audio", "prepare",
			"job has no segments to synthesize", nil)
	}
	return staging.NewWorkspace(h.cfg, job.ID).Ensure()
}

// Execute synthesizes every segment still missing audio. Segments are
// fanned out under the configured concurrency limit; when several fail,
// the failure of the lowest-indexed segment is reported.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	segments, err := job.Segments()
	if err != nil {
		return err
	}
	pending := localization.PendingAudio(segments)
	if len(pending) == 0 {
		return nil
	}

	ws := staging.NewWorkspace(h.cfg, job.ID)
	voice, gender := resolveVoicePreference(job.Voice)

	concurrency := h.cfg.Workflow.SynthesisConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu       sync.Mutex
		done     int
		failures = make(map[int]error)
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, index := range pending {
		group.Go(func() error {
			seg := segments[index]
			clipErr := h.synthesizeSegment(groupCtx, job, ws, &seg, voice, gender)

			mu.Lock()
			defer mu.Unlock()
			if clipErr != nil {
				failures[index] = clipErr
				// Keep the other workers going; partial clips
				// survive for the retry pass.
				return nil
			}
			segments[index] = seg
			done++
			h.persistProgress(groupCtx, job, segments, float64(done)/float64(len(pending)))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if len(failures) > 0 {
		indices := make([]int, 0, len(failures))
		for index := range failures {
			indices = append(indices, index)
		}
		sort.Ints(indices)
		first := indices[0]
		return fmt.Errorf("segment %d: %w", first, failures[first])
	}

	return job.SetSegments(segments)
}

func (h *Handler) synthesizeSegment(ctx context.Context, job *queue.Job, ws staging.Workspace, seg *localization.Segment, voice, gender string) error {
	clipPath := ws.ClipPath(seg.Index)

	var clip *speech.Clip
	err := stageexec.Execute(ctx, h.policy, h.breakers.Get("speech"), "synthesize", func(ctx context.Context) error {
		var execErr error
		clip, execErr = h.tts.Synthesize(ctx, speech.Request{
			Text:     seg.TranslatedText,
			Language: job.TargetLanguage,
			Gender:   gender,
			Voice:    voice,
			DestPath: clipPath,
		})
		return execErr
	})
	if err != nil {
		return err
	}

	ref, err := h.objects.PutFile(ctx, objectstore.JobKey(job.ID, "audio", fmt.Sprintf("segment_%04d.mp3", seg.Index)), clipPath)
	if err != nil {
		return err
	}
	seg.AudioRef = ref
	seg.PacingWarning = h.pacingWarning(ctx, clip, clipPath, *seg)

	if clip.UsedFallback {
		h.logger.Warn("fallback voice used",
			logging.Int("segment", seg.Index),
			logging.String("voice", clip.Voice),
		)
	}
	return nil
}

// pacingWarning compares the rendered clip duration to the segment's
// slot on the timeline. An overrun never fails the job; it surfaces to
// the reviewer instead.
func (h *Handler) pacingWarning(ctx context.Context, clip *speech.Clip, clipPath string, seg localization.Segment) string {
	duration := clip.DurationSeconds
	if duration <= 0 {
		result, err := h.probe(ctx, h.cfg.FFprobeBinary(), clipPath)
		if err != nil {
			h.logger.Debug("clip duration probe failed",
				logging.Int("segment", seg.Index),
				logging.Error(err),
			)
			return ""
		}
		duration = result.DurationSeconds()
	}
	if slot := seg.Duration(); duration > slot*pacingSlack {
		return fmt.Sprintf("dubbed audio runs %.1fs in a %.1fs slot", duration, slot)
	}
	return ""
}

// persistProgress writes segment refs and stage progress mid-flight so
// a crash loses at most the clips in progress. Callers hold the mutex.
func (h *Handler) persistProgress(ctx context.Context, job *queue.Job, segments []localization.Segment, fraction float64) {
	if err := job.SetSegments(segments); err != nil {
		h.logger.Warn("failed to encode segment progress", logging.Error(err))
		return
	}
	job.SetStageProgress(queue.StatusGeneratingAudio, fraction)
	if h.store == nil {
		return
	}
	if err := h.store.Update(ctx, job); err != nil {
		h.logger.Warn("failed to persist synthesis progress", logging.Error(err))
	}
}

// HealthCheck pings the speech backend.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.tts.Ping(ctx); err != nil {
		return stage.Unhealthy("synthesis", err.Error())
	}
	return stage.Healthy("synthesis")
}

// resolveVoicePreference splits the job's voice field into an explicit
// voice name or a gender keyword for catalog resolution.
func resolveVoicePreference(value string) (voice, gender string) {
	switch value {
	case "male", "female":
		return "", value
	default:
		return value, ""
	}
}

package workflow

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"log/slog"

	"nativize/internal/logging"
	"nativize/internal/notifications"
	"nativize/internal/queue"
	"nativize/internal/stage"
	"nativize/internal/stageexec"
	"nativize/internal/staging"
)

// staleWorkspaceAge is how long an untouched job workspace survives
// before the maintenance sweep removes it.
const staleWorkspaceAge = 24 * time.Hour

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next job", logging.Error(err))
			m.waitOrShutdown(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if job == nil {
			m.waitOrShutdown(ctx, m.pollInterval)
			continue
		}

		if err := m.runJob(ctx, logger, job); err != nil && errors.Is(err, context.Canceled) {
			if ctx.Err() == nil {
				// Only this job was cancelled (delete); the worker
				// keeps going. The record is already gone, so there
				// is nothing to hand back.
				logger.Info("job cancelled", logging.String(logging.FieldJobID, job.ID))
				continue
			}
			// Shutdown mid-stage: requeue the job at its nearest
			// claimable state so the next daemon run resumes it
			// instead of waiting out the heartbeat.
			requeueCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if requeueErr := m.store.Requeue(requeueCtx, job.ID); requeueErr != nil {
				logger.Warn("failed to requeue job on shutdown", logging.Error(requeueErr))
			}
			cancel()
			return
		}
	}
}

// runJob drives one claimed job through its remaining stages. A job
// claimed at pending starts from upload; a job claimed at
// generating_audio (post-review, finalize, or retry) resumes there.
func (m *Manager) runJob(parent context.Context, logger *slog.Logger, job *queue.Job) error {
	jobLogger := logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldLanguage, job.TargetLanguage),
	)

	ctx, cancel := context.WithCancel(parent)
	m.registerCancel(job.ID, cancel)
	defer func() {
		m.unregisterCancel(job.ID)
		cancel()
	}()

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	m.setLastJob(job.ID)

	if job.Status == queue.StatusPending {
		if err := m.runStage(ctx, jobLogger, job, "uploading", queue.StatusUploading, m.stages.Ingest); err != nil {
			return err
		}
		if err := m.runStage(ctx, jobLogger, job, "analyzing", queue.StatusAnalyzing, m.stages.Analysis); err != nil {
			return err
		}
		if m.cfg.Workflow.ReviewEnabled {
			return m.pauseForReview(ctx, jobLogger, job)
		}
	}

	if err := m.runStage(ctx, jobLogger, job, "generating_audio", queue.StatusGeneratingAudio, m.stages.Synthesis); err != nil {
		return err
	}
	if err := m.runStage(ctx, jobLogger, job, "stitching", queue.StatusStitching, m.stages.Stitching); err != nil {
		return err
	}

	job.SetComplete()
	if err := m.store.Update(ctx, job); err != nil {
		m.setLastError(err)
		jobLogger.Error("failed to persist completion", logging.Error(err))
		return err
	}
	if err := m.store.Release(ctx, job.ID); err != nil {
		jobLogger.Warn("failed to release finished job", logging.Error(err))
	} else {
		job.LastHeartbeat = nil
	}
	jobLogger.Info("job complete",
		logging.String("output_ref", job.OutputRef),
		logging.Int("words_localized", job.WordsLocalized),
	)
	m.publish(ctx, jobLogger, notifications.EventJobComplete, notifications.Payload{
		"title":           job.Title,
		"language":        job.TargetLanguage,
		"words_localized": job.WordsLocalized,
	})
	return nil
}

func (m *Manager) runStage(ctx context.Context, logger *slog.Logger, job *queue.Job, name string, status queue.Status, handler stage.Handler) error {
	err := stageexec.Run(ctx, stageexec.Options{
		Logger:    logger,
		Store:     m.store,
		Notifier:  m.notifier,
		Handler:   handler,
		StageName: name,
		Status:    status,
		Job:       job,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		m.setLastError(err)
	}
	return err
}

// pauseForReview parks the job at the review gate and releases the
// worker's claim; finalize moves it on to audio generation.
func (m *Manager) pauseForReview(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	job.SetStageProgress(queue.StatusNeedsReview, 0)
	if err := m.store.Update(ctx, job); err != nil {
		m.setLastError(err)
		return err
	}
	if err := m.store.Release(ctx, job.ID); err != nil {
		m.setLastError(err)
		return err
	}
	job.LastHeartbeat = nil
	logger.Info("job waiting for review", logging.Int("progress", job.Progress))
	m.publish(ctx, logger, notifications.EventReviewReady, notifications.Payload{
		"title":    job.Title,
		"language": job.TargetLanguage,
	})
	return nil
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

// runMaintenance reclaims jobs from dead workers and prunes abandoned
// staging directories.
func (m *Manager) runMaintenance(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("component", "workflow-maintenance"))

	interval := m.heartbeat.Interval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("stale job reclaim failed", logging.Error(err))
			}
		case <-cleanupTicker.C:
			m.cleanStaleWorkspaces(ctx, logger)
		}
	}
}

func (m *Manager) cleanStaleWorkspaces(ctx context.Context, logger *slog.Logger) {
	active, err := m.store.List(ctx, queue.StatusUploading, queue.StatusAnalyzing,
		queue.StatusNeedsReview, queue.StatusGeneratingAudio, queue.StatusStitching)
	if err != nil {
		logger.Warn("skipping workspace sweep", logging.Error(err))
		return
	}
	// Touch live workspaces so the age-based sweep leaves them alone.
	for _, job := range active {
		ws := staging.NewWorkspace(m.cfg, job.ID)
		now := time.Now()
		_ = touchDir(ws.Root, now)
	}
	result := staging.CleanStale(ctx, m.cfg.Paths.WorkDir, staleWorkspaceAge, logger)
	for _, cleanupErr := range result.Errors {
		logger.Warn("workspace cleanup error",
			logging.String("path", cleanupErr.Path),
			logging.Error(cleanupErr.Error),
		)
	}
}

func touchDir(path string, now time.Time) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return os.Chtimes(path, now, now)
}

func (m *Manager) waitOrShutdown(ctx context.Context, wait time.Duration) {
	if wait <= 0 {
		wait = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

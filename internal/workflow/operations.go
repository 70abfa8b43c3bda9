package workflow

import (
	"context"
	"fmt"
	"strings"

	"nativize/internal/language"
	"nativize/internal/localization"
	"nativize/internal/logging"
	"nativize/internal/notifications"
	"nativize/internal/objectstore"
	"nativize/internal/queue"
	"nativize/internal/services"
	"nativize/internal/staging"
)

// SubmitRequest describes a new localization job.
type SubmitRequest struct {
	SourcePath     string
	SourceRef      string
	Title          string
	TargetLanguage string
	Voice          string
}

// Submit validates the request and records a pending job. The target
// language is checked before anything touches the store so a bad
// request never leaves a record behind.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*queue.Job, error) {
	code := language.Normalize(req.TargetLanguage)
	if code == "" {
		return nil, services.Wrap(services.ErrValidation, "", "submit",
			fmt.Sprintf("unsupported target language %q", req.TargetLanguage), nil)
	}
	if strings.TrimSpace(req.SourcePath) == "" && strings.TrimSpace(req.SourceRef) == "" {
		return nil, services.Wrap(services.ErrValidation, "", "submit",
			"a source path or an uploaded source reference is required", nil)
	}

	job, err := m.store.NewJob(ctx, strings.TrimSpace(req.SourcePath), code, strings.TrimSpace(req.Voice))
	if err != nil {
		return nil, err
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		job.Title = title
	}
	if ref := strings.TrimSpace(req.SourceRef); ref != "" {
		job.SourceRef = ref
	}
	if job.Title != "" || job.SourceRef != "" {
		if err := m.store.Update(ctx, job); err != nil {
			return nil, err
		}
	}

	m.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldLanguage, job.TargetLanguage),
		logging.String("title", job.Title),
	)
	m.publish(ctx, m.logger, notifications.EventJobSubmitted, notifications.Payload{
		"title":    job.Title,
		"language": job.TargetLanguage,
	})
	return job, nil
}

// Status fetches one job by identifier.
func (m *Manager) Status(ctx context.Context, id string) (*queue.Job, error) {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "status",
			fmt.Sprintf("job %s not found", id), nil)
	}
	return job, nil
}

// Finalize applies reviewed segment edits and releases the job into
// audio generation. Edited segments lose their audio references so
// synthesis regenerates only what changed.
func (m *Manager) Finalize(ctx context.Context, id string, edits []localization.SegmentEdit) (*queue.Job, []int, error) {
	job, err := m.Status(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != queue.StatusNeedsReview {
		return nil, nil, services.Wrap(services.ErrValidation, "", "finalize",
			fmt.Sprintf("job %s is %s, not awaiting review", id, job.Status), nil)
	}

	segments, err := job.Segments()
	if err != nil {
		return nil, nil, err
	}
	invalidated, err := localization.ApplyEdits(segments, edits)
	if err != nil {
		return nil, nil, err
	}
	if err := job.SetSegments(segments); err != nil {
		return nil, nil, err
	}

	job.SetStageProgress(queue.StatusGeneratingAudio, 0)
	if err := m.store.Update(ctx, job); err != nil {
		return nil, nil, err
	}
	// Clear any heartbeat left from the worker that parked the job so
	// the claim query sees it.
	if err := m.store.Release(ctx, job.ID); err != nil {
		return nil, nil, err
	}
	job.LastHeartbeat = nil

	m.logger.Info("job finalized",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("edits", len(edits)),
		logging.Int("invalidated_clips", len(invalidated)),
	)
	return job, invalidated, nil
}

// Delete removes a job record along with its stored objects and
// scratch directory. A job still being driven by a worker has its
// stage context cancelled first so in-flight external calls are
// abandoned instead of re-uploading outputs after the sweep.
func (m *Manager) Delete(ctx context.Context, id string) error {
	removed, err := m.store.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return services.Wrap(services.ErrNotFound, "", "delete",
			fmt.Sprintf("job %s not found", id), nil)
	}

	if m.cancelJob(id) {
		m.logger.Info("cancelled in-flight job", logging.String(logging.FieldJobID, id))
	}

	if err := m.objects.DeletePrefix(ctx, objectstore.JobKey(id)); err != nil {
		m.logger.Warn("failed to delete stored objects",
			logging.String(logging.FieldJobID, id),
			logging.Error(err),
		)
	}
	if err := staging.NewWorkspace(m.cfg, id).Remove(); err != nil {
		m.logger.Warn("failed to remove job workspace",
			logging.String(logging.FieldJobID, id),
			logging.Error(err),
		)
	}
	m.logger.Info("job deleted", logging.String(logging.FieldJobID, id))
	return nil
}

// Retry requeues failed jobs; with no ids, every failed job.
func (m *Manager) Retry(ctx context.Context, ids ...string) (int64, error) {
	return m.store.RetryFailed(ctx, ids...)
}

// List returns jobs filtered by status.
func (m *Manager) List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	return m.store.List(ctx, statuses...)
}

// TestNotification publishes a test event through the configured
// notification channel.
func (m *Manager) TestNotification(ctx context.Context) error {
	return m.notifier.Publish(ctx, notifications.EventTest, notifications.Payload{})
}

package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"nativize/internal/logging"
	"nativize/internal/notifications"
	"nativize/internal/queue"
	"nativize/internal/services"
	"nativize/internal/stage"
)

// Handler is the stage contract used by the execution helper.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
}

// Options controls stage execution and job persistence behavior.
type Options struct {
	Logger    *slog.Logger
	Store     *queue.Store
	Notifier  notifications.Service
	Handler   Handler
	StageName string
	Status    queue.Status
	Job       *queue.Job
}

// Run executes one pipeline stage. The job is moved into the stage's
// status band before the handler sees it, each persistence step writes
// status and progress together, and any handler error is classified and
// recorded on the job before being returned.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return fmt.Errorf("job store is required")
	}
	if opts.Job == nil {
		return fmt.Errorf("job is required")
	}

	stageCtx := services.WithStage(services.WithJobID(ctx, opts.Job.ID), opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Info(
		"stage started",
		logging.String("status", string(opts.Status)),
		logging.String(logging.FieldLanguage, opts.Job.TargetLanguage),
		logging.String("title", strings.TrimSpace(opts.Job.Title)),
	)

	if !queue.CanTransition(opts.Job.Status, opts.Status) {
		err := services.Wrap(services.ErrValidation, opts.StageName, "transition",
			fmt.Sprintf("cannot move job from %s to %s", opts.Job.Status, opts.Status), nil)
		return handleFailure(stageCtx, stageLogger, opts, err)
	}
	opts.Job.SetStageProgress(opts.Status, 0)
	opts.Job.ClearError()
	if err := opts.Store.Update(stageCtx, opts.Job); err != nil {
		return fmt.Errorf("persist stage transition: %w", err)
	}

	if err := opts.Handler.Prepare(stageCtx, opts.Job); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, err)
	}
	if err := opts.Store.Update(stageCtx, opts.Job); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}

	if err := opts.Handler.Execute(stageCtx, opts.Job); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, err)
	}

	opts.Job.SetStageProgress(opts.Status, 1)
	if err := opts.Store.Update(stageCtx, opts.Job); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info(
		"stage completed",
		logging.Int("progress", opts.Job.Progress),
	)

	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, stageErr error) error {
	if errors.Is(stageErr, context.Canceled) {
		// Cancellation is not a stage failure: either the daemon is
		// shutting down and the worker will requeue the claim, or the
		// job was deleted and the record is already gone.
		logger.Info("stage interrupted", logging.Error(stageErr))
		return stageErr
	}

	opts.Job.SetFailed(stageErr)

	logger.Error(
		"stage failed",
		logging.String("error_kind", opts.Job.ErrorKind),
		logging.Bool("retriable", opts.Job.ErrorRetriable),
		logging.Error(stageErr),
	)
	if err := opts.Store.Update(ctx, opts.Job); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	if opts.Notifier != nil && stageErr != nil {
		contextLabel := fmt.Sprintf("%s (job %s)", opts.StageName, opts.Job.ID)
		if err := opts.Notifier.Publish(ctx, notifications.EventError, notifications.Payload{
			"error":   stageErr,
			"context": contextLabel,
		}); err != nil {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}

	return stageErr
}

// StageLabel renders a status as a user-facing stage name.
func StageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}

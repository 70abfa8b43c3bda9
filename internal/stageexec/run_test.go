package stageexec

import (
	"context"
	"errors"
	"sync"
	"testing"

	"nativize/internal/logging"
	"nativize/internal/notifications"
	"nativize/internal/queue"
	"nativize/internal/services"
	"nativize/internal/testsupport"
)

type fakeHandler struct {
	prepareErr error
	executeErr error
	prepared   int
	executed   int
	onExecute  func(*queue.Job)
}

func (h *fakeHandler) Prepare(ctx context.Context, job *queue.Job) error {
	h.prepared++
	return h.prepareErr
}

func (h *fakeHandler) Execute(ctx context.Context, job *queue.Job) error {
	h.executed++
	if h.onExecute != nil {
		h.onExecute(job)
	}
	return h.executeErr
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func TestRunPersistsStatusAndProgressTogether(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "/videos/demo.mp4", "hindi")

	handler := &fakeHandler{
		onExecute: func(j *queue.Job) {
			j.SetStageProgress(queue.StatusUploading, 0.5)
		},
	}
	err := Run(context.Background(), Options{
		Logger:    logging.NewNop(),
		Store:     store,
		Handler:   handler,
		StageName: "uploading",
		Status:    queue.StatusUploading,
		Job:       job,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if handler.prepared != 1 || handler.executed != 1 {
		t.Fatalf("expected one prepare and one execute, got %d/%d", handler.prepared, handler.executed)
	}

	persisted, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if persisted.Status != queue.StatusUploading {
		t.Fatalf("expected uploading status, got %s", persisted.Status)
	}
	if persisted.Progress != 10 {
		t.Fatalf("expected stage ceiling progress 10, got %d", persisted.Progress)
	}
}

func TestRunRejectsInvalidTransition(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "/videos/demo.mp4", "hindi")

	handler := &fakeHandler{}
	err := Run(context.Background(), Options{
		Logger:    logging.NewNop(),
		Store:     store,
		Handler:   handler,
		StageName: "stitching",
		Status:    queue.StatusStitching,
		Job:       job,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for pending to stitching, got %v", err)
	}
	if handler.prepared != 0 || handler.executed != 0 {
		t.Fatalf("handler should not run on invalid transition")
	}

	persisted, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if persisted.Status != queue.StatusFailed {
		t.Fatalf("expected failed status, got %s", persisted.Status)
	}
	if persisted.ErrorRetriable {
		t.Fatalf("validation failures must not be retriable")
	}
}

func TestRunRecordsFailureAndNotifies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "/videos/demo.mp4", "hindi")

	notifier := &recordingNotifier{}
	handler := &fakeHandler{
		executeErr: services.Wrap(services.ErrUnavailable, "uploading", "upload", "storage offline", nil),
	}
	err := Run(context.Background(), Options{
		Logger:    logging.NewNop(),
		Store:     store,
		Notifier:  notifier,
		Handler:   handler,
		StageName: "uploading",
		Status:    queue.StatusUploading,
		Job:       job,
	})
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected handler error back, got %v", err)
	}

	persisted, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if persisted.Status != queue.StatusFailed {
		t.Fatalf("expected failed status, got %s", persisted.Status)
	}
	if persisted.ErrorKind != string(services.KindUnavailable) {
		t.Fatalf("expected service_unavailable kind, got %s", persisted.ErrorKind)
	}
	if !persisted.ErrorRetriable {
		t.Fatalf("expected retriable failure")
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventError {
		t.Fatalf("expected one error notification, got %v", notifier.events)
	}
}

func TestRunFailureFreezesProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "/videos/demo.mp4", "hindi")

	handler := &fakeHandler{
		onExecute: func(j *queue.Job) {
			j.SetStageProgress(queue.StatusAnalyzing, 0.5)
		},
		executeErr: services.Wrap(services.ErrTransient, "analyzing", "analyze", "upstream reset", nil),
	}
	job.SetStageProgress(queue.StatusUploading, 1)
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("seed uploading: %v", err)
	}

	if err := Run(context.Background(), Options{
		Logger:    logging.NewNop(),
		Store:     store,
		Handler:   handler,
		StageName: "analyzing",
		Status:    queue.StatusAnalyzing,
		Job:       job,
	}); err == nil {
		t.Fatalf("expected stage failure")
	}

	persisted, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if persisted.Progress != 20 {
		t.Fatalf("expected progress frozen at 20, got %d", persisted.Progress)
	}
}

func TestStageLabel(t *testing.T) {
	cases := map[queue.Status]string{
		queue.StatusPending:         "Pending",
		queue.StatusGeneratingAudio: "Generating Audio",
		queue.StatusNeedsReview:     "Needs Review",
	}
	for status, want := range cases {
		if got := StageLabel(status); got != want {
			t.Fatalf("StageLabel(%s) = %q, want %q", status, got, want)
		}
	}
}

func TestRunDoesNotPersistCancellationAsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "/videos/demo.mp4", "hindi")

	notifier := &recordingNotifier{}
	handler := &fakeHandler{executeErr: context.Canceled}
	err := Run(context.Background(), Options{
		Logger:    logging.NewNop(),
		Store:     store,
		Notifier:  notifier,
		Handler:   handler,
		StageName: "uploading",
		Status:    queue.StatusUploading,
		Job:       job,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to propagate, got %v", err)
	}

	persisted, getErr := store.GetByID(context.Background(), job.ID)
	if getErr != nil {
		t.Fatalf("get job: %v", getErr)
	}
	if persisted.Status == queue.StatusFailed {
		t.Fatal("an interrupted stage must not be recorded as failed")
	}
	if persisted.ErrorKind != "" {
		t.Fatalf("unexpected error kind %q", persisted.ErrorKind)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("no notification expected for cancellation, got %v", notifier.events)
	}
}

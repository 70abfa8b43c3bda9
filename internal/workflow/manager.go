package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"nativize/internal/config"
	"nativize/internal/notifications"
	"nativize/internal/objectstore"
	"nativize/internal/queue"
	"nativize/internal/stage"
)

// Stages bundles the concrete pipeline handlers the manager runs.
type Stages struct {
	Ingest    stage.Handler
	Analysis  stage.Handler
	Synthesis stage.Handler
	Stitching stage.Handler
}

// Manager owns the worker pool and the background maintenance loop.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	objects  objectstore.Store
	logger   *slog.Logger
	notifier notifications.Service
	stages   Stages

	pollInterval time.Duration
	heartbeat    *HeartbeatMonitor

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastErr    error
	lastJobID  string
	jobCancels map[string]context.CancelFunc
}

// NewManager constructs a workflow manager with the default notifier.
func NewManager(cfg *config.Config, store *queue.Store, objects objectstore.Store, logger *slog.Logger, stages Stages) *Manager {
	return NewManagerWithNotifier(cfg, store, objects, logger, stages, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom
// notifier, used in tests.
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, objects objectstore.Store, logger *slog.Logger, stages Stages, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		objects:      objects,
		logger:       logger,
		notifier:     notifier,
		stages:       stages,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// Start launches the worker pool and the maintenance loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.stages.Ingest == nil || m.stages.Analysis == nil || m.stages.Synthesis == nil || m.stages.Stitching == nil {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	m.wg.Add(workers + 1)
	m.mu.Unlock()

	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	go m.runMaintenance(runCtx)
	return nil
}

// Stop terminates background processing and waits for workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the worker pool is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(id string) {
	m.mu.Lock()
	m.lastJobID = id
	m.mu.Unlock()
}

func (m *Manager) registerCancel(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	if m.jobCancels == nil {
		m.jobCancels = make(map[string]context.CancelFunc)
	}
	m.jobCancels[id] = cancel
	m.mu.Unlock()
}

func (m *Manager) unregisterCancel(id string) {
	m.mu.Lock()
	delete(m.jobCancels, id)
	m.mu.Unlock()
}

// cancelJob interrupts the worker currently driving a job, if any.
// Returns true when a cancellation was delivered.
func (m *Manager) cancelJob(id string) bool {
	m.mu.Lock()
	cancel, ok := m.jobCancels[id]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// LastError returns the most recent worker-level failure, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

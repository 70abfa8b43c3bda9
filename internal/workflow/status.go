package workflow

import (
	"context"

	"nativize/internal/queue"
	"nativize/internal/stage"
)

// Snapshot summarizes daemon-side workflow state for status queries.
type Snapshot struct {
	Running     bool
	QueueStats  map[queue.Status]int
	LastError   string
	LastJobID   string
	StageHealth []stage.Health
}

// Health gathers queue counts and per-stage readiness.
func (m *Manager) Health(ctx context.Context) (Snapshot, error) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		Running:    m.Running(),
		QueueStats: stats,
	}

	m.mu.RLock()
	if m.lastErr != nil {
		snapshot.LastError = m.lastErr.Error()
	}
	snapshot.LastJobID = m.lastJobID
	m.mu.RUnlock()

	for _, handler := range []stage.Handler{m.stages.Ingest, m.stages.Analysis, m.stages.Synthesis, m.stages.Stitching} {
		if handler == nil {
			continue
		}
		snapshot.StageHealth = append(snapshot.StageHealth, handler.HealthCheck(ctx))
	}
	return snapshot, nil
}

package stage

import (
	"context"
	"log/slog"

	"nativize/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}

// LoggerAware lets the executor hand a stage a logger already tagged
// with job and stage fields.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

package mux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"log/slog"

	"nativize/internal/logging"
	"nativize/internal/services"
)

// CommandRunner executes an external encoder invocation.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Runner drives ffmpeg for timeline assembly and the final encodes.
type Runner struct {
	binary string
	logger *slog.Logger
	run    CommandRunner
}

// NewRunner constructs a Runner for the given ffmpeg binary.
func NewRunner(binary string, logger *slog.Logger) *Runner {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Runner{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "mux"),
		run:    defaultCommandRunner,
	}
}

// SetLogger updates the runner's logging destination.
func (r *Runner) SetLogger(logger *slog.Logger) {
	if r == nil {
		return
	}
	r.logger = logging.NewComponentLogger(logger, "mux")
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (r *Runner) WithCommandRunner(run CommandRunner) {
	if r != nil && run != nil {
		r.run = run
	}
}

// Execute runs one ffmpeg invocation whose final argument is the output
// path. The output is written to a temporary sibling and renamed into
// place on success.
func (r *Runner) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return services.Wrap(services.ErrValidation, "", "mux", "empty argument list", nil)
	}
	outputPath := args[len(args)-1]
	tmpPath := filepath.Join(filepath.Dir(outputPath), ".encode-"+filepath.Base(outputPath)+".tmp")
	staged := append(append([]string(nil), args[:len(args)-1]...), tmpPath)

	if r.logger != nil {
		r.logger.Debug("executing ffmpeg",
			logging.String("output", outputPath),
			logging.Int("arg_count", len(staged)),
		)
	}

	if err := r.run(ctx, r.binary, staged...); err != nil {
		_ = os.Remove(tmpPath)
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTimeout, "", "mux", "ffmpeg interrupted", err)
		}
		return services.Wrap(services.ErrEncoding, "", "mux", "ffmpeg failed", err)
	}
	if _, err := os.Stat(tmpPath); err != nil {
		return services.Wrap(services.ErrEncoding, "", "mux", "ffmpeg produced no output", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace output file: %w", err)
	}
	return nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, tail(string(output), 512))
	}
	return nil
}

// tail keeps the last n bytes of encoder output, where the error lives.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

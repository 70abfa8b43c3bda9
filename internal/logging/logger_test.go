package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"nativize/internal/services"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	return slog.New(newPrettyHandler(buf, levelVar, false)), buf
}

func TestPrettyHandlerFormatsFields(t *testing.T) {
	logger, buf := newBufferLogger()
	logger = NewComponentLogger(logger, "workflow")
	logger.Info("job claimed", String(FieldJobID, "abc"), Int("attempt", 2))

	line := buf.String()
	if !strings.Contains(line, "INFO workflow: job claimed") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "job_id=abc") || !strings.Contains(line, "attempt=2") {
		t.Fatalf("missing fields: %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	logger, buf := newBufferLogger()
	logger.Warn("synthesis slow", String("reason", "voice service lagging"))
	if !strings.Contains(buf.String(), `reason="voice service lagging"`) {
		t.Fatalf("value not quoted: %q", buf.String())
	}
}

func TestPrettyHandlerFlattensGroups(t *testing.T) {
	logger, buf := newBufferLogger()
	logger.Info("probe done", Group("media", String("codec", "h264"), Int("height", 1080)))
	line := buf.String()
	if !strings.Contains(line, "media.codec=h264") || !strings.Contains(line, "media.height=1080") {
		t.Fatalf("group not flattened: %q", line)
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	logger, buf := newBufferLogger()
	ctx := services.WithJobID(context.Background(), "job-7")
	ctx = services.WithStage(ctx, "stitching")

	WithContext(ctx, logger).Info("stage start")
	line := buf.String()
	if !strings.Contains(line, "job_id=job-7") || !strings.Contains(line, "stage=stitching") {
		t.Fatalf("context fields missing: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Info("ignored")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop logger should report disabled")
	}
}

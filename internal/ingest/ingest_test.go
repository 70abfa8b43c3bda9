package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nativize/internal/config"
	"nativize/internal/ingest"
	"nativize/internal/logging"
	"nativize/internal/media/ffprobe"
	"nativize/internal/objectstore"
	"nativize/internal/queue"
	"nativize/internal/services"
	"nativize/internal/staging"
	"nativize/internal/testsupport"
)

func goodProbe(duration string) ingest.ProbeFunc {
	return func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{
				{Index: 0, CodecType: "video", CodecName: "h264"},
				{Index: 1, CodecType: "audio", CodecName: "aac"},
			},
			Format: ffprobe.Format{Duration: duration, Size: "4096"},
		}, nil
	}
}

func newHandler(t *testing.T, opts ...testsupport.ConfigOption) (*ingest.Handler, *config.Config, objectstore.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	objects, err := objectstore.NewLocal(cfg.Storage.LocalDir)
	require.NoError(t, err)
	handler := ingest.NewHandler(cfg, logging.NewNop(), objects)
	handler.WithProbe(goodProbe("42.5"))
	return handler, cfg, objects
}

func TestExecuteUploadsAndStagesByPath(t *testing.T) {
	handler, cfg, _ := newHandler(t)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "festival.mp4")
	testsupport.WriteFile(t, source, 4096)
	job := &queue.Job{ID: "job-up", SourcePath: source, TargetLanguage: "hindi", Status: queue.StatusUploading}

	require.NoError(t, handler.Prepare(ctx, job))
	require.NoError(t, handler.Execute(ctx, job))

	assert.Equal(t, "local://jobs/job-up/source.mp4", job.SourceRef)
	assert.InDelta(t, 42.5, job.DurationSeconds, 0.001)

	staged := staging.NewWorkspace(cfg, job.ID).SourcePath(".mp4")
	info, err := os.Stat(staged)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size())
}

func TestExecuteFetchesPresignedUpload(t *testing.T) {
	handler, cfg, objects := newHandler(t)
	ctx := context.Background()

	upload := filepath.Join(t.TempDir(), "upload.mkv")
	testsupport.WriteFile(t, upload, 1024)
	ref, err := objects.PutFile(ctx, objectstore.JobKey("job-ref", "source.mkv"), upload)
	require.NoError(t, err)

	job := &queue.Job{ID: "job-ref", SourceRef: ref, TargetLanguage: "tamil", Status: queue.StatusUploading}
	require.NoError(t, handler.Prepare(ctx, job))
	require.NoError(t, handler.Execute(ctx, job))

	assert.Equal(t, ref, job.SourceRef)
	staged := staging.NewWorkspace(cfg, job.ID).SourcePath(".mkv")
	_, err = os.Stat(staged)
	assert.NoError(t, err)
}

func TestPrepareRejectsUnsupportedLanguage(t *testing.T) {
	handler, _, _ := newHandler(t)
	job := &queue.Job{ID: "job-lang", SourcePath: "/somewhere.mp4", TargetLanguage: "klingon"}

	err := handler.Prepare(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, err.Error(), "klingon")
}

func TestPrepareRejectsMissingSource(t *testing.T) {
	handler, _, _ := newHandler(t)
	job := &queue.Job{ID: "job-empty", TargetLanguage: "hindi"}

	err := handler.Prepare(context.Background(), job)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestExecuteRejectsSourceWithoutAudio(t *testing.T) {
	handler, _, _ := newHandler(t)
	handler.WithProbe(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{Index: 0, CodecType: "video"}},
			Format:  ffprobe.Format{Duration: "10"},
		}, nil
	})

	source := filepath.Join(t.TempDir(), "silent.mp4")
	testsupport.WriteFile(t, source, 512)
	job := &queue.Job{ID: "job-silent", SourcePath: source, TargetLanguage: "hindi"}

	require.NoError(t, handler.Prepare(context.Background(), job))
	err := handler.Execute(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrContent)
	assert.False(t, services.Retriable(err))
}

func TestExecuteRejectsOverlongSource(t *testing.T) {
	handler, _, _ := newHandler(t, func(cfg *config.Config) {
		cfg.Analyzer.MaxAnalyzableMinute = 1
	})
	handler.WithProbe(goodProbe("90"))

	source := filepath.Join(t.TempDir(), "long.mp4")
	testsupport.WriteFile(t, source, 512)
	job := &queue.Job{ID: "job-long", SourcePath: source, TargetLanguage: "hindi"}

	require.NoError(t, handler.Prepare(context.Background(), job))
	err := handler.Execute(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrContent)
	assert.Contains(t, err.Error(), "analysis limit")
}

func TestExecuteRejectsOversizeSource(t *testing.T) {
	handler, _, _ := newHandler(t, func(cfg *config.Config) {
		cfg.Analyzer.MaxSourceMB = 1
	})
	handler.WithProbe(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{
				{Index: 0, CodecType: "video", CodecName: "h264"},
				{Index: 1, CodecType: "audio", CodecName: "aac"},
			},
			Format: ffprobe.Format{Duration: "30", Size: "3145728"},
		}, nil
	})

	source := filepath.Join(t.TempDir(), "huge.mp4")
	testsupport.WriteFile(t, source, 512)
	job := &queue.Job{ID: "job-huge", SourcePath: source, TargetLanguage: "hindi"}

	require.NoError(t, handler.Prepare(context.Background(), job))
	err := handler.Execute(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrContent)
	assert.Contains(t, err.Error(), "MB limit")
	assert.False(t, services.Retriable(err))
}

func TestExecuteMissingSourceFile(t *testing.T) {
	handler, _, _ := newHandler(t)
	job := &queue.Job{ID: "job-gone", SourcePath: "/nonexistent/clip.mp4", TargetLanguage: "hindi"}

	require.NoError(t, handler.Prepare(context.Background(), job))
	err := handler.Execute(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrValidation)
}

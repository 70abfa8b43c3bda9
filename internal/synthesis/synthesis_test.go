package synthesis_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nativize/internal/config"
	"nativize/internal/localization"
	"nativize/internal/logging"
	"nativize/internal/objectstore"
	"nativize/internal/queue"
	"nativize/internal/services"
	"nativize/internal/services/speech"
	"nativize/internal/stageexec"
	"nativize/internal/staging"
	"nativize/internal/synthesis"
	"nativize/internal/testsupport"
)

type fakeSpeech struct {
	mu       sync.Mutex
	requests []speech.Request
	failText string
	failErr  error
	duration float64
	pingErr  error
}

func (f *fakeSpeech) Synthesize(ctx context.Context, req speech.Request) (*speech.Clip, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.failErr != nil && req.Text == f.failText {
		return nil, f.failErr
	}
	if err := os.WriteFile(req.DestPath, []byte("mp3"), 0o644); err != nil {
		return nil, err
	}
	return &speech.Clip{Path: req.DestPath, Voice: "hi-IN-SwaraNeural", DurationSeconds: f.duration}, nil
}

func (f *fakeSpeech) Ping(ctx context.Context) error { return f.pingErr }

type fixture struct {
	handler *synthesis.Handler
	tts     *fakeSpeech
	store   *queue.Store
	objects objectstore.Store
	cfg     *config.Config
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Retry.MaxAttempts = 1
		cfg.Workflow.SynthesisConcurrency = 2
	})
	store := testsupport.MustOpenStore(t, cfg)
	objects, err := objectstore.NewLocal(cfg.Storage.LocalDir)
	require.NoError(t, err)
	tts := &fakeSpeech{duration: 3.5}
	breakers := stageexec.NewBreakerSet(5, time.Minute)
	handler := synthesis.NewHandler(cfg, logging.NewNop(), tts, objects, store, breakers)
	return fixture{handler: handler, tts: tts, store: store, objects: objects, cfg: cfg}
}

func newJob(t *testing.T, fx fixture, count int) *queue.Job {
	t.Helper()
	job := testsupport.NewJob(t, fx.store, "/library/fest.mp4", "hindi")
	job.Status = queue.StatusGeneratingAudio
	job.Voice = "female"

	segments := make([]localization.Segment, count)
	for i := range segments {
		segments[i] = localization.Segment{
			Index:          i,
			StartTime:      float64(i * 5),
			EndTime:        float64(i*5 + 4),
			OriginalText:   fmt.Sprintf("line %d", i),
			TranslatedText: fmt.Sprintf("pankti %d", i),
		}
	}
	require.NoError(t, job.SetSegments(segments))
	require.NoError(t, staging.NewWorkspace(fx.cfg, job.ID).Ensure())
	return job
}

func TestExecuteSynthesizesAllSegments(t *testing.T) {
	fx := newFixture(t)
	job := newJob(t, fx, 3)
	ctx := context.Background()

	require.NoError(t, fx.handler.Prepare(ctx, job))
	require.NoError(t, fx.handler.Execute(ctx, job))

	segments, err := job.Segments()
	require.NoError(t, err)
	for i, seg := range segments {
		assert.NotEmpty(t, seg.AudioRef, "segment %d", i)
		assert.Empty(t, seg.PacingWarning)
		require.NoError(t, fx.objects.Fetch(ctx, seg.AudioRef, staging.NewWorkspace(fx.cfg, job.ID).ClipPath(i)))
	}
	assert.Len(t, fx.tts.requests, 3)
	assert.Equal(t, "female", fx.tts.requests[0].Gender)
	assert.Empty(t, fx.tts.requests[0].Voice)
}

func TestExecuteReportsLowestFailedSegment(t *testing.T) {
	fx := newFixture(t)
	fx.tts.failText = "pankti 1"
	fx.tts.failErr = services.Wrap(services.ErrVoice, "generating_audio", "synthesize", "voice hi-IN-SwaraNeural unavailable", nil)
	job := newJob(t, fx, 3)
	ctx := context.Background()

	err := fx.handler.Execute(ctx, job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segment 1")
	assert.ErrorIs(t, err, services.ErrVoice)
	assert.False(t, services.Retriable(err))

	// the other segments finished and their clips were persisted
	stored, getErr := fx.store.GetByID(ctx, job.ID)
	require.NoError(t, getErr)
	segments, segErr := stored.Segments()
	require.NoError(t, segErr)
	assert.NotEmpty(t, segments[0].AudioRef)
	assert.NotEmpty(t, segments[2].AudioRef)
	assert.Empty(t, segments[1].AudioRef)
}

func TestExecuteSkipsSegmentsWithAudio(t *testing.T) {
	fx := newFixture(t)
	job := newJob(t, fx, 2)
	ctx := context.Background()

	segments, err := job.Segments()
	require.NoError(t, err)
	segments[0].AudioRef = "local://jobs/x/audio/segment_0000.mp3"
	require.NoError(t, job.SetSegments(segments))

	require.NoError(t, fx.handler.Execute(ctx, job))
	require.Len(t, fx.tts.requests, 1)
	assert.Equal(t, "pankti 1", fx.tts.requests[0].Text)
}

func TestExecuteRecordsPacingWarning(t *testing.T) {
	fx := newFixture(t)
	fx.tts.duration = 9 // slot is 4s
	job := newJob(t, fx, 1)
	ctx := context.Background()

	require.NoError(t, fx.handler.Execute(ctx, job))
	segments, err := job.Segments()
	require.NoError(t, err)
	assert.Contains(t, segments[0].PacingWarning, "9.0s")
}

func TestExecutePassesExplicitVoice(t *testing.T) {
	fx := newFixture(t)
	job := newJob(t, fx, 1)
	job.Voice = "hi-IN-MadhurNeural"

	require.NoError(t, fx.handler.Execute(context.Background(), job))
	require.Len(t, fx.tts.requests, 1)
	assert.Equal(t, "hi-IN-MadhurNeural", fx.tts.requests[0].Voice)
	assert.Empty(t, fx.tts.requests[0].Gender)
}

func TestPrepareRequiresSegments(t *testing.T) {
	fx := newFixture(t)
	job := testsupport.NewJob(t, fx.store, "/library/fest.mp4", "hindi")

	err := fx.handler.Prepare(context.Background(), job)
	assert.ErrorIs(t, err, services.ErrValidation)
}

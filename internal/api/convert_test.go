package api_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nativize/internal/api"
	"nativize/internal/localization"
	"nativize/internal/queue"
	"nativize/internal/services"
)

func TestFromJobCarriesFailureDetail(t *testing.T) {
	job := &queue.Job{
		ID:             "job-1",
		Title:          "Harvest Festival",
		TargetLanguage: "hindi",
		Status:         queue.StatusFailed,
		Progress:       55,
		ErrorKind:      "service_unavailable",
		ErrorMessage:   "speech backend rate limited",
		ErrorRetriable: true,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	dto := api.FromJob(job)
	assert.Equal(t, "failed", dto.Status)
	assert.Equal(t, "Failed", dto.StageLabel)
	assert.Equal(t, 55, dto.Progress)
	require.NotNil(t, dto.Error)
	assert.Equal(t, "service_unavailable", dto.Error.Kind)
	assert.True(t, dto.Error.Retriable)
	assert.Equal(t, "2026-03-01T12:00:00.000Z", dto.CreatedAt)
}

func TestFromJobDecodesSegmentsAndReport(t *testing.T) {
	job := &queue.Job{ID: "job-2", TargetLanguage: "tamil", Status: queue.StatusNeedsReview}
	require.NoError(t, job.SetSegments([]localization.Segment{
		{Index: 0, StartTime: 0, EndTime: 3, OriginalText: "hi", TranslatedText: "vanakkam", AudioRef: "local://jobs/job-2/audio/segment_0000.mp3"},
		{Index: 1, StartTime: 4, EndTime: 7, OriginalText: "bye", TranslatedText: "poittu varen"},
	}))
	require.NoError(t, job.SetReport(localization.CulturalReport{AdaptationCount: 3, QualityScore: 7}))

	dto := api.FromJob(job)
	require.Len(t, dto.Segments, 2)
	assert.True(t, dto.Segments[0].HasAudio)
	assert.False(t, dto.Segments[1].HasAudio)
	require.NotNil(t, dto.Report)
	assert.Equal(t, 3, dto.Report.AdaptationCount)
	assert.Equal(t, "Needs Review", dto.StageLabel)
}

func TestFromJobCarriesCompletionTime(t *testing.T) {
	finished := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	job := &queue.Job{
		ID:             "job-3",
		TargetLanguage: "hindi",
		Status:         queue.StatusComplete,
		Progress:       100,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		CompletedAt:    &finished,
	}

	dto := api.FromJob(job)
	assert.Equal(t, "2026-03-01T12:30:00.000Z", dto.CompletedAt)

	job.CompletedAt = nil
	assert.Empty(t, api.FromJob(job).CompletedAt)
}

func TestFromErrorSanitizes(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "uploading", "prepare", "unsupported target language", nil)
	wire := api.FromError(err)
	assert.Equal(t, "validation", wire.Kind)
	assert.False(t, wire.Retriable)
	assert.NotContains(t, wire.Message, "validation error: ")
}

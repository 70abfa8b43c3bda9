package api

import (
	"time"

	"nativize/internal/localization"
	"nativize/internal/queue"
	"nativize/internal/services"
	"nativize/internal/stageexec"
)

// timeFormat is used for RFC3339 timestamps in API payloads.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// FromJob converts a queue record into its transport form. Segment or
// report columns that fail to decode are omitted rather than failing
// the whole response.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:              job.ID,
		Title:           job.Title,
		SourcePath:      job.SourcePath,
		SourceRef:       job.SourceRef,
		TargetLanguage:  job.TargetLanguage,
		Voice:           job.Voice,
		Status:          string(job.Status),
		StageLabel:      stageexec.StageLabel(job.Status),
		Progress:        job.Progress,
		OutputRef:       job.OutputRef,
		MobileOutputRef: job.MobileOutputRef,
		WhatsAppRef:     job.WhatsAppRef,
		SubtitlesRef:    job.SubtitlesRef,
		WordsLocalized:  job.WordsLocalized,
		DurationSeconds: job.DurationSeconds,
		CreatedAt:       formatTime(job.CreatedAt),
		UpdatedAt:       formatTime(job.UpdatedAt),
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = formatTime(*job.CompletedAt)
	}

	if job.ErrorMessage != "" || job.ErrorKind != "" {
		dto.Error = &JobError{
			Kind:      job.ErrorKind,
			Message:   job.ErrorMessage,
			Retriable: job.ErrorRetriable,
		}
	}

	if segments, err := job.Segments(); err == nil && len(segments) > 0 {
		dto.Segments = fromSegments(segments)
	}
	if job.ReportJSON != "" {
		if report, err := job.Report(); err == nil {
			dto.Report = fromReport(report)
		}
	}
	return dto
}

// FromJobs converts a slice of queue records.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromError converts any error into the wire error shape.
func FromError(err error) JobError {
	details := services.Details(err)
	return JobError{
		Kind:      string(details.Kind),
		Message:   details.Message,
		Retriable: details.Retriable,
	}
}

// ToEdits converts wire segment edits into the domain form.
func ToEdits(edits []SegmentEdit) []localization.SegmentEdit {
	out := make([]localization.SegmentEdit, 0, len(edits))
	for _, edit := range edits {
		out = append(out, localization.SegmentEdit{
			Index:          edit.Index,
			TranslatedText: edit.TranslatedText,
			Approved:       edit.Approved,
		})
	}
	return out
}

func fromSegments(segments []localization.Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		out = append(out, Segment{
			Index:          seg.Index,
			StartTime:      seg.StartTime,
			EndTime:        seg.EndTime,
			OriginalText:   seg.OriginalText,
			TranslatedText: seg.TranslatedText,
			Approved:       seg.Approved,
			HasAudio:       seg.HasAudio(),
			PacingWarning:  seg.PacingWarning,
		})
	}
	return out
}

func fromReport(report localization.CulturalReport) *Report {
	out := &Report{
		AdaptationCount: report.AdaptationCount,
		QualityScore:    report.QualityScore,
		Notes:           report.Notes,
	}
	for _, s := range report.Sensitivities {
		out.Sensitivities = append(out.Sensitivities, Sensitivity{
			Timestamp:      s.Timestamp,
			Description:    s.Description,
			Recommendation: s.Recommendation,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

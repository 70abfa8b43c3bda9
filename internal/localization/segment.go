package localization

import (
	"fmt"
	"strings"

	"nativize/internal/services"
)

// Segment is one translation/dub unit on the source video timeline.
// Segments are created in bulk by analysis, individually edited during
// review, and consumed read-only by synthesis and stitching.
type Segment struct {
	Index          int     `json:"index"`
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"`
	OriginalText   string  `json:"original_text"`
	TranslatedText string  `json:"translated_text"`
	CulturalNotes  string  `json:"cultural_notes,omitempty"`
	AudioRef       string  `json:"audio_ref,omitempty"`
	Approved       bool    `json:"approved,omitempty"`
	PacingWarning  string  `json:"pacing_warning,omitempty"`
}

// Duration returns the segment's span on the source timeline in seconds.
func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// HasAudio reports whether synthesis has produced a clip for this segment.
func (s Segment) HasAudio() bool {
	return s.AudioRef != ""
}

// SegmentEdit carries one reviewed segment from the finalize call.
type SegmentEdit struct {
	Index          int    `json:"index"`
	TranslatedText string `json:"translated_text"`
	Approved       bool   `json:"approved"`
}

// Sensitivity flags one culturally sensitive moment found during analysis.
type Sensitivity struct {
	Timestamp      float64 `json:"timestamp"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// CulturalReport summarizes the adaptations applied across a job.
type CulturalReport struct {
	AdaptationCount int           `json:"adaptation_count"`
	Sensitivities   []Sensitivity `json:"sensitivities,omitempty"`
	QualityScore    int           `json:"quality_score"`
	Notes           string        `json:"notes,omitempty"`
}

// Quality score bounds enforced at the store boundary.
const (
	MinQualityScore = 0
	MaxQualityScore = 10
)

// ValidateSegments checks the ordering contract the analyzer must
// guarantee: every segment spans a positive duration, segments are
// sorted ascending by start time, non-overlapping, and carry
// translated text. Any violation is a content error.
func ValidateSegments(segments []Segment) error {
	if len(segments) == 0 {
		return services.Wrap(services.ErrContent, "", "validate_segments", "analyzer returned no segments", nil)
	}
	for i, seg := range segments {
		if seg.Index != i {
			return contentErrf("segment %d has index %d, expected %d", i, seg.Index, i)
		}
		if seg.StartTime < 0 {
			return contentErrf("segment %d starts at %.3f, before the timeline", i, seg.StartTime)
		}
		if seg.EndTime <= seg.StartTime {
			return contentErrf("segment %d ends at %.3f, not after start %.3f", i, seg.EndTime, seg.StartTime)
		}
		if strings.TrimSpace(seg.TranslatedText) == "" {
			return contentErrf("segment %d has no translated text", i)
		}
		if i > 0 && seg.StartTime < segments[i-1].EndTime {
			return contentErrf("segment %d starts at %.3f, overlapping previous end %.3f", i, seg.StartTime, segments[i-1].EndTime)
		}
	}
	return nil
}

// ValidateReport checks the cultural report's required fields.
func ValidateReport(report CulturalReport) error {
	if report.AdaptationCount < 0 {
		return contentErrf("adaptation count %d is negative", report.AdaptationCount)
	}
	if report.QualityScore < MinQualityScore || report.QualityScore > MaxQualityScore {
		return contentErrf("quality score %d outside %d..%d", report.QualityScore, MinQualityScore, MaxQualityScore)
	}
	for i, s := range report.Sensitivities {
		if strings.TrimSpace(s.Description) == "" {
			return contentErrf("sensitivity %d has no description", i)
		}
	}
	return nil
}

// ApplyEdits overwrites translated text and approval on matching
// indices and invalidates audio for any segment whose text changed.
// Returns the indices whose audio was invalidated.
func ApplyEdits(segments []Segment, edits []SegmentEdit) ([]int, error) {
	byIndex := make(map[int]*Segment, len(segments))
	for i := range segments {
		byIndex[segments[i].Index] = &segments[i]
	}
	var invalidated []int
	for _, edit := range edits {
		seg, ok := byIndex[edit.Index]
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "", "finalize",
				fmt.Sprintf("edit references unknown segment index %d", edit.Index), nil)
		}
		if strings.TrimSpace(edit.TranslatedText) == "" {
			return nil, services.Wrap(services.ErrValidation, "", "finalize",
				fmt.Sprintf("edit for segment %d has empty translated text", edit.Index), nil)
		}
		if edit.TranslatedText != seg.TranslatedText {
			seg.TranslatedText = edit.TranslatedText
			if seg.AudioRef != "" {
				seg.AudioRef = ""
				invalidated = append(invalidated, edit.Index)
			}
		}
		seg.Approved = edit.Approved
	}
	return invalidated, nil
}

// PendingAudio returns the indices of segments that still need synthesis.
func PendingAudio(segments []Segment) []int {
	var pending []int
	for _, seg := range segments {
		if !seg.HasAudio() {
			pending = append(pending, seg.Index)
		}
	}
	return pending
}

// WordsLocalized counts whitespace-delimited words across all
// translated text, the headline metric reported on completion.
func WordsLocalized(segments []Segment) int {
	total := 0
	for _, seg := range segments {
		total += len(strings.Fields(seg.TranslatedText))
	}
	return total
}

func contentErrf(format string, args ...any) error {
	return services.Wrap(services.ErrContent, "", "validate_segments", fmt.Sprintf(format, args...), nil)
}

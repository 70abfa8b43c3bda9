package analyzer

import (
	"context"

	"nativize/internal/language"
	"nativize/internal/localization"
)

// Result carries everything the analysis stage extracts from a video.
type Result struct {
	Title            string
	ContentType      string
	DetectedLanguage string
	VoiceGender      string
	Segments         []localization.Segment
	Report           localization.CulturalReport
}

// Service analyzes a source video and produces translated, timestamped
// segments plus the cultural adaptation report.
type Service interface {
	Analyze(ctx context.Context, videoPath string, target language.Language) (*Result, error)
	Ping(ctx context.Context) error
}

package analyzer

import (
	"encoding/json"
	"strconv"
	"strings"

	"nativize/internal/localization"
	"nativize/internal/services"
)

type wirePayload struct {
	VideoTitle       string        `json:"video_title"`
	ContentType      string        `json:"content_type"`
	DetectedLanguage string        `json:"detected_language"`
	Segments         []wireSegment `json:"segments"`
	CulturalReport   *wireReport   `json:"cultural_report"`
	TTS              *wireTTS      `json:"tts"`
}

type wireSegment struct {
	Index          int      `json:"index"`
	StartTime      wireTime `json:"start_time"`
	EndTime        wireTime `json:"end_time"`
	OriginalText   string   `json:"original_text"`
	TranslatedText string   `json:"translated_text"`
	CulturalNotes  string   `json:"cultural_notes"`
}

type wireReport struct {
	AdaptationCount int               `json:"adaptation_count"`
	Sensitivities   []wireSensitivity `json:"sensitivities"`
	QualityScore    int               `json:"quality_score"`
	Notes           string            `json:"notes"`
}

type wireSensitivity struct {
	Timestamp      wireTime `json:"timestamp"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

type wireTTS struct {
	RecommendedVoiceGender string `json:"recommended_voice_gender"`
}

// wireTime accepts either decimal seconds or a "MM:SS"/"HH:MM:SS"
// string; models drift between the two.
type wireTime float64

func (t *wireTime) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "" || text == "null" {
		*t = 0
		return nil
	}
	if text[0] != '"' {
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return err
		}
		*t = wireTime(value)
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	seconds, err := parseClock(raw)
	if err != nil {
		return err
	}
	*t = wireTime(seconds)
	return nil
}

func parseClock(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	parts := strings.Split(raw, ":")
	if len(parts) == 1 {
		return strconv.ParseFloat(parts[0], 64)
	}
	total := 0.0
	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, err
		}
		total = total*60 + value
	}
	return total, nil
}

// parseResult decodes the model's JSON payload and validates the
// segment contract before anything is persisted. A payload that fails
// to decode is malformed (the request can be retried); a payload that
// decodes but violates the ordering contract is a content failure.
func parseResult(payload string) (*Result, error) {
	var wire wirePayload
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, services.Wrap(services.ErrMalformed, "analyzing", "parse_analysis", "response is not valid JSON", err)
	}

	segments := make([]localization.Segment, 0, len(wire.Segments))
	for i, seg := range wire.Segments {
		index := seg.Index
		if index == 0 && i != 0 {
			// Some responses omit indices; trust document order then.
			index = i
		}
		segments = append(segments, localization.Segment{
			Index:          index,
			StartTime:      float64(seg.StartTime),
			EndTime:        float64(seg.EndTime),
			OriginalText:   strings.TrimSpace(seg.OriginalText),
			TranslatedText: strings.TrimSpace(seg.TranslatedText),
			CulturalNotes:  strings.TrimSpace(seg.CulturalNotes),
		})
	}
	if err := localization.ValidateSegments(segments); err != nil {
		return nil, err
	}

	result := &Result{
		Title:            strings.TrimSpace(wire.VideoTitle),
		ContentType:      strings.TrimSpace(wire.ContentType),
		DetectedLanguage: strings.TrimSpace(wire.DetectedLanguage),
		Segments:         segments,
	}
	if wire.TTS != nil {
		result.VoiceGender = strings.ToLower(strings.TrimSpace(wire.TTS.RecommendedVoiceGender))
	}
	if wire.CulturalReport != nil {
		report := localization.CulturalReport{
			AdaptationCount: wire.CulturalReport.AdaptationCount,
			QualityScore:    wire.CulturalReport.QualityScore,
			Notes:           strings.TrimSpace(wire.CulturalReport.Notes),
		}
		for _, s := range wire.CulturalReport.Sensitivities {
			report.Sensitivities = append(report.Sensitivities, localization.Sensitivity{
				Timestamp:      float64(s.Timestamp),
				Description:    strings.TrimSpace(s.Description),
				Recommendation: strings.TrimSpace(s.Recommendation),
			})
		}
		if err := localization.ValidateReport(report); err != nil {
			return nil, err
		}
		result.Report = report
	}
	return result, nil
}

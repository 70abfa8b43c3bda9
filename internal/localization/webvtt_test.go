package localization

import (
	"strings"
	"testing"
)

func TestRenderWebVTT(t *testing.T) {
	segments := []Segment{
		{Index: 0, StartTime: 0, EndTime: 4.5, TranslatedText: "नमस्ते"},
		{Index: 1, StartTime: 65.25, EndTime: 70, TranslatedText: "धन्यवाद"},
		{Index: 2, StartTime: 80, EndTime: 85, TranslatedText: "   "},
	}
	doc := RenderWebVTT(segments)

	if !strings.HasPrefix(doc, "WEBVTT\n") {
		t.Fatalf("missing WEBVTT header: %q", doc)
	}
	for _, want := range []string{
		"00:00:00.000 --> 00:00:04.500",
		"00:01:05.250 --> 00:01:10.000",
		"नमस्ते",
		"धन्यवाद",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("expected %q in:\n%s", want, doc)
		}
	}
	if strings.Contains(doc, "00:01:20") {
		t.Fatalf("blank segment should be skipped:\n%s", doc)
	}
}

package localization

import (
	"fmt"
	"strings"
)

// RenderWebVTT formats the translated segments as a WebVTT subtitle
// document aligned to the segment timestamps.
func RenderWebVTT(segments []Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for _, seg := range segments {
		text := strings.TrimSpace(seg.TranslatedText)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%d\n%s --> %s\n%s\n",
			seg.Index+1, vttTimestamp(seg.StartTime), vttTimestamp(seg.EndTime), text)
	}
	return b.String()
}

func vttTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	millis := int((seconds - float64(total)) * 1000.0)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", total/3600, (total%3600)/60, total%60, millis)
}

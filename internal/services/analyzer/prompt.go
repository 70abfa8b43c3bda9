package analyzer

import (
	"fmt"
	"strings"

	"nativize/internal/language"
)

// buildAnalysisPrompt asks for transcreation rather than literal
// translation and pins the response to the JSON shape parseResult
// expects.
func buildAnalysisPrompt(target language.Language) string {
	display := fmt.Sprintf("%s (%s)", target.Display, target.Native)

	var b strings.Builder
	b.WriteString("You are an expert localization agent adapting English video content for Indian audiences.\n\n")
	b.WriteString("Watch this video and respond with a single JSON object of this exact shape:\n\n")
	b.WriteString(`{
  "video_title": "<detected or suggested title>",
  "content_type": "<educational|entertainment|promotional|informational>",
  "detected_language": "<source language>",
  "segments": [
    {
      "index": <0-based segment number>,
      "start_time": <start offset in seconds, decimal>,
      "end_time": <end offset in seconds, decimal>,
      "original_text": "<exact English speech>",
`)
	fmt.Fprintf(&b, "      \"translated_text\": \"<%s translation>\",\n", display)
	b.WriteString(`      "cultural_notes": "<explanation when an idiom or reference was adapted, else empty>"
    }
  ],
  "cultural_report": {
    "adaptation_count": <number of idioms and references adapted>,
    "sensitivities": [
      {
        "timestamp": <offset in seconds>,
        "description": "<what was detected>",
        "recommendation": "<suggestion for Indian audiences>"
      }
    ],
    "quality_score": <1-10 localization quality>,
    "notes": "<overall adaptation notes>"
  },
  "tts": {
    "recommended_voice_gender": "<male|female>"
  }
}

`)
	fmt.Fprintf(&b, `Rules:
1. TRANSCREATE, do not translate literally. Idioms, metaphors, and cultural references must be adapted for %s speakers. Example: "piece of cake" in Hindi becomes a native idiom, never a word-for-word rendering.
2. Segments must cover the spoken content in order: ascending start times, no overlaps, end_time greater than start_time.
3. Keep technical terms in English when a translation would lose meaning.
4. Timestamps must be accurate enough for dubbing alignment.
5. Record every adaptation in cultural_notes and count it in adaptation_count.

Return ONLY the JSON object, no other text.`, display)
	return b.String()
}

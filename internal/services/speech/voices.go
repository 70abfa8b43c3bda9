package speech

import (
	"fmt"
	"strings"

	"nativize/internal/services"
)

// Neural voice catalog per supported language. These are the standard
// Indian-locale voices exposed by edge-tts compatible backends.
var voiceMap = map[string]map[string]string{
	"hindi": {
		"male":   "hi-IN-MadhurNeural",
		"female": "hi-IN-SwaraNeural",
	},
	"tamil": {
		"male":   "ta-IN-ValluvarNeural",
		"female": "ta-IN-PallaviNeural",
	},
	"bengali": {
		"male":   "bn-IN-BashkarNeural",
		"female": "bn-IN-TanishaaNeural",
	},
	"telugu": {
		"male":   "te-IN-MohanNeural",
		"female": "te-IN-ShrutiNeural",
	},
	"marathi": {
		"male":   "mr-IN-ManoharNeural",
		"female": "mr-IN-AarohiNeural",
	},
}

// VoiceFor resolves the voice for a language and gender, applying any
// configured per-language overrides first. Gender defaults to female
// when unset or unknown.
func VoiceFor(languageCode, gender string, overrides map[string]string) (string, error) {
	languageCode = strings.ToLower(strings.TrimSpace(languageCode))
	if voice, ok := overrides[languageCode]; ok && strings.TrimSpace(voice) != "" {
		return strings.TrimSpace(voice), nil
	}

	voices, ok := voiceMap[languageCode]
	if !ok {
		return "", services.Wrap(services.ErrVoice, "generating_audio", "resolve_voice",
			fmt.Sprintf("no voice available for language %q", languageCode), nil)
	}
	gender = strings.ToLower(strings.TrimSpace(gender))
	if voice, ok := voices[gender]; ok {
		return voice, nil
	}
	return voices["female"], nil
}

// Voices lists the catalog for a language, or nil when unsupported.
func Voices(languageCode string) map[string]string {
	voices, ok := voiceMap[strings.ToLower(strings.TrimSpace(languageCode))]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(voices))
	for gender, voice := range voices {
		out[gender] = voice
	}
	return out
}

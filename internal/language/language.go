package language

import (
	"strings"

	"golang.org/x/text/cases"
	xlang "golang.org/x/text/language"
)

// Language describes one supported localization target.
type Language struct {
	Code    string // canonical lowercase name used in job records (e.g. "hindi")
	ISO2    string // ISO 639-1
	Display string // human-readable name
	Native  string // name in the language's own script
	Locale  string // BCP-47 speech locale (e.g. "hi-IN")
}

var languages = []Language{
	{"hindi", "hi", "Hindi", "हिन्दी", "hi-IN"},
	{"tamil", "ta", "Tamil", "தமிழ்", "ta-IN"},
	{"bengali", "bn", "Bengali", "বাংলা", "bn-IN"},
	{"telugu", "te", "Telugu", "తెలుగు", "te-IN"},
	{"marathi", "mr", "Marathi", "मराठी", "mr-IN"},
}

var (
	byCode map[string]*Language
	byISO2 map[string]*Language
)

func init() {
	byCode = make(map[string]*Language, len(languages))
	byISO2 = make(map[string]*Language, len(languages))
	for i := range languages {
		l := &languages[i]
		byCode[l.Code] = l
		byISO2[l.ISO2] = l
	}
}

// Normalize canonicalizes user input ("Hindi", " HI ", "hi-IN") to the
// lowercase language code, or returns empty string when unsupported.
func Normalize(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return ""
	}
	if l, ok := byCode[s]; ok {
		return l.Code
	}
	if idx := strings.IndexAny(s, "-_"); idx > 0 {
		s = s[:idx]
	}
	if l, ok := byISO2[s]; ok {
		return l.Code
	}
	return ""
}

// Supported reports whether the input names a localization target.
func Supported(input string) bool {
	return Normalize(input) != ""
}

// Lookup returns the catalog entry for a language code or ISO prefix.
func Lookup(input string) (Language, bool) {
	code := Normalize(input)
	if code == "" {
		return Language{}, false
	}
	return *byCode[code], true
}

// Locale returns the BCP-47 speech locale for a supported language,
// or empty string when the language is unknown.
func Locale(input string) string {
	l, ok := Lookup(input)
	if !ok {
		return ""
	}
	return l.Locale
}

// DisplayName returns a human-readable name. Unrecognized input is
// title-cased rather than rejected so list output stays readable.
func DisplayName(input string) string {
	if l, ok := Lookup(input); ok {
		return l.Display
	}
	s := strings.TrimSpace(input)
	if s == "" {
		return "Unknown"
	}
	return cases.Title(xlang.Und).String(strings.ToLower(s))
}

// All returns the supported languages in catalog order.
func All() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// Codes returns the canonical codes in catalog order.
func Codes() []string {
	out := make([]string, 0, len(languages))
	for _, l := range languages {
		out = append(out, l.Code)
	}
	return out
}

package speech

import (
	"context"
)

// Request asks for one synthesized clip.
type Request struct {
	Text     string
	Language string // catalog code, e.g. "hindi"
	Gender   string // "male" or "female"; empty means female
	Voice    string // explicit voice, overrides the map
	DestPath string // where the audio file is written
}

// Clip reports a synthesized audio file.
type Clip struct {
	Path            string
	Voice           string
	UsedFallback    bool
	DurationSeconds float64 // 0 when the backend does not report it
}

// Service converts translated text into speech audio.
type Service interface {
	Synthesize(ctx context.Context, req Request) (*Clip, error)
	Ping(ctx context.Context) error
}

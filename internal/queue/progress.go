package queue

import "math"

// band describes the closed progress range a stage occupies. A job's
// progress only ever moves forward through these bands.
type band struct {
	floor float64
	width float64
}

var progressBands = map[Status]band{
	StatusPending:         {0, 0},
	StatusUploading:       {0, 10},
	StatusAnalyzing:       {10, 30},
	StatusNeedsReview:     {40, 0},
	StatusGeneratingAudio: {40, 35},
	StatusStitching:       {75, 20},
	StatusComplete:        {100, 0},
}

// ProgressFor computes the overall percentage for a stage at the given
// completion fraction. Fractions outside [0,1] are clamped. Failed has
// no band: its progress is frozen by the caller.
func ProgressFor(status Status, fraction float64) int {
	b, ok := progressBands[status]
	if !ok {
		return 0
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return int(math.Floor(b.floor + b.width*fraction))
}

// StageCeiling returns the highest percentage a stage can report, the
// value shown once the stage finishes.
func StageCeiling(status Status) int {
	b, ok := progressBands[status]
	if !ok {
		return 0
	}
	return int(b.floor + b.width)
}

package mux

import (
	"fmt"
	"sort"
	"strings"

	"nativize/internal/services"
)

// GapFill selects what plays between dubbed segments.
const (
	GapFillOriginal = "original"
	GapFillSilence  = "silence"
)

// Clip places one synthesized audio file on the output timeline.
type Clip struct {
	Path         string
	StartSeconds float64
	EndSeconds   float64
}

// Timeline describes the dubbed audio track to assemble: each clip is
// delayed to its segment's start offset and mixed into a track that runs
// the full source duration. With GapFillOriginal the source's own audio
// is trimmed into the gaps between segments; with GapFillSilence the
// gaps stay silent.
type Timeline struct {
	Clips           []Clip
	SourcePath      string
	GapFill         string
	DurationSeconds float64
}

// AssembleArgs builds the ffmpeg argument list that renders a timeline
// into an AAC audio file at outputPath.
func AssembleArgs(tl Timeline, outputPath string) ([]string, error) {
	if len(tl.Clips) == 0 {
		return nil, services.Wrap(services.ErrValidation, "", "mux", "timeline has no clips", nil)
	}
	if tl.DurationSeconds <= 0 {
		return nil, services.Wrap(services.ErrValidation, "", "mux", "timeline duration must be positive", nil)
	}
	if tl.GapFill == GapFillOriginal && tl.SourcePath == "" {
		return nil, services.Wrap(services.ErrValidation, "", "mux", "original gap fill needs the source path", nil)
	}

	clips := append([]Clip(nil), tl.Clips...)
	sort.Slice(clips, func(i, j int) bool { return clips[i].StartSeconds < clips[j].StartSeconds })

	args := []string{"-y", "-hide_banner", "-v", "error"}
	for _, clip := range clips {
		args = append(args, "-i", clip.Path)
	}
	sourceIndex := -1
	if tl.GapFill == GapFillOriginal {
		sourceIndex = len(clips)
		args = append(args, "-i", tl.SourcePath)
	}

	var filter strings.Builder
	labels := make([]string, 0, len(clips)+1)
	for i, clip := range clips {
		label := fmt.Sprintf("seg%d", i)
		fmt.Fprintf(&filter, "[%d:a]adelay=%d:all=1[%s];", i, int(clip.StartSeconds*1000), label)
		labels = append(labels, label)
	}

	if sourceIndex >= 0 {
		// Trim the original audio into the gaps around the dubbed
		// segments so background sound survives between lines.
		gapCount := 0
		prevEnd := 0.0
		emitGap := func(from, to float64) {
			if to-from < 0.05 {
				return
			}
			label := fmt.Sprintf("gap%d", gapCount)
			fmt.Fprintf(&filter, "[%d:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS,adelay=%d:all=1[%s];",
				sourceIndex, formatSeconds(from), formatSeconds(to), int(from*1000), label)
			labels = append(labels, label)
			gapCount++
		}
		for _, clip := range clips {
			emitGap(prevEnd, clip.StartSeconds)
			if clip.EndSeconds > prevEnd {
				prevEnd = clip.EndSeconds
			}
		}
		emitGap(prevEnd, tl.DurationSeconds)
	}

	for _, label := range labels {
		fmt.Fprintf(&filter, "[%s]", label)
	}
	fmt.Fprintf(&filter, "amix=inputs=%d:normalize=0,apad=whole_dur=%s[aout]",
		len(labels), formatSeconds(tl.DurationSeconds))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[aout]",
		"-c:a", "aac",
		"-b:a", "128k",
		outputPath,
	)
	return args, nil
}

func formatSeconds(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

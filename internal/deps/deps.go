// Package deps resolves the external media tooling the pipeline shells
// out to. Nativize has exactly two hard binary dependencies, ffmpeg and
// ffprobe, both of which may be overridden to absolute paths in the
// [media] config section.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool is one external binary and the role it plays in the pipeline.
type Tool struct {
	Name    string
	Command string
	Purpose string
}

// Status is the resolution result for one tool.
type Status struct {
	Tool
	Available bool
	Path      string
	Detail    string
}

// MediaTools returns the ffmpeg tooling ingest and stitching require.
// Empty overrides fall back to a bare PATH lookup.
func MediaTools(ffmpeg, ffprobe string) []Tool {
	return []Tool{
		{
			Name:    "ffmpeg",
			Command: orDefault(ffmpeg, "ffmpeg"),
			Purpose: "timeline assembly, muxing, and output encodes",
		},
		{
			Name:    "ffprobe",
			Command: orDefault(ffprobe, "ffprobe"),
			Purpose: "source validation and duration probing",
		},
	}
}

// Check resolves each tool on PATH and reports where it was found.
func Check(tools []Tool) []Status {
	results := make([]Status, 0, len(tools))
	for _, tool := range tools {
		status := Status{Tool: tool}
		resolved, err := exec.LookPath(tool.Command)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", tool.Command)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

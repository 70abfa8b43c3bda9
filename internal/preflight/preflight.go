package preflight

import (
	"context"

	"nativize/internal/config"
	"nativize/internal/objectstore"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for the given config. A nil
// object store skips the storage probe.
func RunAll(ctx context.Context, cfg *config.Config, objects objectstore.Store) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	if objects != nil {
		results = append(results, CheckStorage(ctx, objects))
	}

	results = append(results, CheckAnalyzer(ctx, cfg))
	results = append(results, CheckSpeech(ctx, cfg))

	return results
}

// Passed reports whether every result in the slice passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

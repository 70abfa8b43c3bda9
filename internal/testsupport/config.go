package testsupport

import (
	"path/filepath"
	"testing"

	"nativize/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Storage.Backend = config.StorageBackendLocal
	cfg.Storage.LocalDir = filepath.Join(base, "storage")
	cfg.Analyzer.APIKey = "test"
	cfg.Retry.BaseDelaySeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithReviewDisabled turns off the review gate so jobs run straight through.
func WithReviewDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.ReviewEnabled = false
	}
}

// WithAnalyzerKey sets the analyzer API key on the test config.
func WithAnalyzerKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Analyzer.APIKey = key
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}

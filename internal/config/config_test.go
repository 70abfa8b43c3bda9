package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"nativize/internal/config"
)

func TestLoadDefaultsFromEmptyHome(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "nativize", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7590" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Storage.Backend != config.StorageBackendLocal {
		t.Fatalf("unexpected storage backend: %q", cfg.Storage.Backend)
	}
	if cfg.Analyzer.APIKey != "test-key" {
		t.Fatalf("expected analyzer key from env, got %q", cfg.Analyzer.APIKey)
	}
	if cfg.Analyzer.Model != config.Default().Analyzer.Model {
		t.Fatalf("unexpected analyzer model: %q", cfg.Analyzer.Model)
	}
	if cfg.Retry.MaxAttempts != 10 {
		t.Fatalf("unexpected retry attempts: %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelaySeconds != 5 {
		t.Fatalf("unexpected retry base delay: %d", cfg.Retry.BaseDelaySeconds)
	}
	if !cfg.Workflow.ReviewEnabled {
		t.Fatal("expected review gate enabled by default")
	}
	if cfg.Media.WhatsAppTargetMB != 15 {
		t.Fatalf("unexpected whatsapp target: %d", cfg.Media.WhatsAppTargetMB)
	}
}

func TestLoadParsesFileAndExpandsPaths(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
work_dir = "~/nativize-work"

[storage]
backend = "gcs"
bucket = "nativize-videos"
prefix = "/jobs/"

[analyzer]
api_key = "file-key"

[workflow]
review_enabled = false
synthesis_concurrency = 8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q %v", resolved, exists)
	}
	if cfg.Paths.WorkDir != filepath.Join(tempHome, "nativize-work") {
		t.Fatalf("work dir not expanded: %q", cfg.Paths.WorkDir)
	}
	if cfg.Storage.Bucket != "nativize-videos" {
		t.Fatalf("unexpected bucket: %q", cfg.Storage.Bucket)
	}
	if cfg.Storage.Prefix != "jobs" {
		t.Fatalf("prefix not trimmed: %q", cfg.Storage.Prefix)
	}
	if cfg.Analyzer.APIKey != "file-key" {
		t.Fatalf("unexpected analyzer key: %q", cfg.Analyzer.APIKey)
	}
	if cfg.Workflow.ReviewEnabled {
		t.Fatal("expected review gate disabled")
	}
	if cfg.Workflow.SynthesisConcurrency != 8 {
		t.Fatalf("unexpected synthesis concurrency: %d", cfg.Workflow.SynthesisConcurrency)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing analyzer key", func(c *config.Config) { c.Analyzer.APIKey = "" }},
		{"gcs without bucket", func(c *config.Config) {
			c.Storage.Backend = config.StorageBackendGCS
			c.Storage.Bucket = ""
		}},
		{"unknown backend", func(c *config.Config) { c.Storage.Backend = "s3" }},
		{"bad gap fill", func(c *config.Config) { c.Media.GapFill = "loop" }},
		{"heartbeat timeout too small", func(c *config.Config) {
			c.Workflow.HeartbeatInterval = 30
			c.Workflow.HeartbeatTimeout = 30
		}},
		{"zero workers", func(c *config.Config) { c.Workflow.Workers = 0 }},
		{"crf out of range", func(c *config.Config) { c.Media.MobileCRF = 60 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Analyzer.APIKey = "key"
			cfg.Media.GapFill = "original"
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("sample config is empty")
	}
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateAnalyzer(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendLocal:
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			return errors.New("storage.local_dir must be set when storage.backend is local")
		}
	case StorageBackendGCS:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return errors.New("storage.bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", StorageBackendLocal, StorageBackendGCS, c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateAnalyzer() error {
	if c.Analyzer.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/nativize/config.toml"
		}
		return fmt.Errorf("analyzer.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'nativize config init')", defaultPath)
	}
	if strings.TrimSpace(c.Analyzer.BaseURL) == "" {
		return errors.New("analyzer.base_url must be set")
	}
	if strings.TrimSpace(c.Analyzer.Model) == "" {
		return errors.New("analyzer.model must be set")
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if strings.TrimSpace(c.Speech.BaseURL) == "" {
		return errors.New("speech.base_url must be set")
	}
	for lang, voice := range c.Speech.VoiceOverrides {
		if strings.TrimSpace(voice) == "" {
			return fmt.Errorf("speech.voice_overrides.%s must not be empty", lang)
		}
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.MobileCRF < 0 || c.Media.MobileCRF > 51 {
		return errors.New("media.mobile_crf must be between 0 and 51")
	}
	switch c.Media.GapFill {
	case "original", "silence":
	default:
		return fmt.Errorf("media.gap_fill must be \"original\" or \"silence\", got %q", c.Media.GapFill)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":    c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":   c.Workflow.ErrorRetryInterval,
		"workflow.workers":                c.Workflow.Workers,
		"workflow.synthesis_concurrency":  c.Workflow.SynthesisConcurrency,
		"media.probe_timeout_seconds":     c.Media.ProbeTimeoutSeconds,
		"media.encode_timeout_seconds":    c.Media.EncodeTimeoutSeconds,
		"analyzer.timeout_seconds":        c.Analyzer.TimeoutSeconds,
		"speech.timeout_seconds":          c.Speech.TimeoutSeconds,
		"notifications.request_timeout":   c.Notifications.RequestTimeout,
		"analyzer.upload_poll_seconds":    c.Analyzer.UploadPollSeconds,
		"analyzer.upload_wait_seconds":    c.Analyzer.UploadWaitSeconds,
		"analyzer.max_analyzable_minutes": c.Analyzer.MaxAnalyzableMinute,
		"analyzer.max_source_mb":          c.Analyzer.MaxSourceMB,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateRetry() error {
	return ensurePositiveMap(map[string]int{
		"retry.max_attempts":             c.Retry.MaxAttempts,
		"retry.base_delay_seconds":       c.Retry.BaseDelaySeconds,
		"retry.stage_timeout_seconds":    c.Retry.StageTimeoutSeconds,
		"retry.breaker_threshold":        c.Retry.BreakerThreshold,
		"retry.breaker_cooldown_seconds": c.Retry.BreakerCooldownSeconds,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

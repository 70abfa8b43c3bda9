package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Storage selects where source videos, audio clips, and outputs live.
type Storage struct {
	Backend         string `toml:"backend"` // "local" or "gcs"
	LocalDir        string `toml:"local_dir"`
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	CredentialsFile string `toml:"credentials_file"`
}

// Analyzer contains connection settings for the multimodal analysis backend.
type Analyzer struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	Model               string `toml:"model"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	UploadPollSeconds   int    `toml:"upload_poll_seconds"`
	UploadWaitSeconds   int    `toml:"upload_wait_seconds"`
	MaxAnalyzableMinute int    `toml:"max_analyzable_minutes"`
	MaxSourceMB         int    `toml:"max_source_mb"`
}

// Speech contains connection settings for the text-to-speech backend.
type Speech struct {
	APIKey         string            `toml:"api_key"`
	BaseURL        string            `toml:"base_url"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	FallbackVoice  string            `toml:"fallback_voice"`
	VoiceOverrides map[string]string `toml:"voice_overrides"`
}

// Media contains transcode targets for the stitching stage.
type Media struct {
	MobileCRF             int    `toml:"mobile_crf"`
	MobileScaleHeight     int    `toml:"mobile_scale_height"`
	WhatsAppTargetMB      int    `toml:"whatsapp_target_mb"`
	WhatsAppScaleHeight   int    `toml:"whatsapp_scale_height"`
	MinAudioBitrateKbps   int    `toml:"min_audio_bitrate_kbps"`
	GapFill               string `toml:"gap_fill"` // "original" or "silence"
	ProbeTimeoutSeconds   int    `toml:"probe_timeout_seconds"`
	EncodeTimeoutSeconds  int    `toml:"encode_timeout_seconds"`
	SubtitlesEnabled      bool   `toml:"subtitles_enabled"`
	KeepIntermediateFiles bool   `toml:"keep_intermediate_files"`
	FFmpegPath            string `toml:"ffmpeg_path"`
	FFprobePath           string `toml:"ffprobe_path"`
}

// Retry tunes the stage executor: attempt budget, backoff, and the
// per-service circuit breaker.
type Retry struct {
	MaxAttempts            int `toml:"max_attempts"`
	BaseDelaySeconds       int `toml:"base_delay_seconds"`
	StageTimeoutSeconds    int `toml:"stage_timeout_seconds"`
	BreakerThreshold       int `toml:"breaker_threshold"`
	BreakerCooldownSeconds int `toml:"breaker_cooldown_seconds"`
}

// Workflow contains daemon timing, concurrency, and the review gate.
type Workflow struct {
	QueuePollInterval    int  `toml:"queue_poll_interval"`
	ErrorRetryInterval   int  `toml:"error_retry_interval"`
	HeartbeatInterval    int  `toml:"heartbeat_interval"`
	HeartbeatTimeout     int  `toml:"heartbeat_timeout"`
	Workers              int  `toml:"workers"`
	SynthesisConcurrency int  `toml:"synthesis_concurrency"`
	ReviewEnabled        bool `toml:"review_enabled"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	Submitted          bool   `toml:"submitted"`
	Review             bool   `toml:"review"`
	Completion         bool   `toml:"completion"`
	Errors             bool   `toml:"errors"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Nativize.
//
// Configuration sections by subsystem:
//   - Paths: working directories and API bind address
//   - Storage: object storage backend for videos, clips, and outputs
//   - Analyzer: multimodal analysis service connection
//   - Speech: text-to-speech service connection and voice selection
//   - Media: transcode targets for stitched outputs
//   - Retry: stage executor attempt budget, backoff, circuit breaker
//   - Workflow: daemon polling, concurrency, and the review gate
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Analyzer      Analyzer      `toml:"analyzer"`
	Speech        Speech        `toml:"speech"`
	Media         Media         `toml:"media"`
	Retry         Retry         `toml:"retry"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/nativize/config.toml")
}

// Load locates, parses, and validates a configuration file. A .env file in
// the working directory is read first so API keys can live outside the TOML.
// The returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("nativize.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Storage.Backend == StorageBackendLocal && strings.TrimSpace(c.Storage.LocalDir) != "" {
		if err := os.MkdirAll(c.Storage.LocalDir, 0o755); err != nil {
			return fmt.Errorf("create storage directory %q: %w", c.Storage.LocalDir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for stitching.
func (c *Config) FFmpegBinary() string {
	if binary := strings.TrimSpace(c.Media.FFmpegPath); binary != "" {
		return binary
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if binary := strings.TrimSpace(c.Media.FFprobePath); binary != "" {
		return binary
	}
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

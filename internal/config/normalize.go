package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeAnalyzer()
	c.normalizeSpeech()
	c.normalizeMedia()
	c.normalizeRetry()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("NATIVIZE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	if strings.TrimSpace(c.Storage.LocalDir) == "" {
		c.Storage.LocalDir = defaultStorageLocalDir
	}
	var err error
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
	c.Storage.CredentialsFile = strings.TrimSpace(c.Storage.CredentialsFile)
	if c.Storage.CredentialsFile == "" {
		if value, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok {
			c.Storage.CredentialsFile = strings.TrimSpace(value)
		}
	}
	if c.Storage.CredentialsFile != "" {
		if c.Storage.CredentialsFile, err = expandPath(c.Storage.CredentialsFile); err != nil {
			return fmt.Errorf("storage.credentials_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeAnalyzer() {
	c.Analyzer.APIKey = strings.TrimSpace(c.Analyzer.APIKey)
	if c.Analyzer.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Analyzer.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("NATIVIZE_ANALYZER_API_KEY"); ok {
			c.Analyzer.APIKey = strings.TrimSpace(value)
		}
	}
	c.Analyzer.BaseURL = strings.TrimRight(strings.TrimSpace(c.Analyzer.BaseURL), "/")
	if c.Analyzer.BaseURL == "" {
		c.Analyzer.BaseURL = defaultAnalyzerBaseURL
	}
	c.Analyzer.Model = strings.TrimSpace(c.Analyzer.Model)
	if c.Analyzer.Model == "" {
		c.Analyzer.Model = defaultAnalyzerModel
	}
	if c.Analyzer.TimeoutSeconds <= 0 {
		c.Analyzer.TimeoutSeconds = defaultAnalyzerTimeout
	}
	if c.Analyzer.UploadPollSeconds <= 0 {
		c.Analyzer.UploadPollSeconds = defaultAnalyzerUploadPoll
	}
	if c.Analyzer.UploadWaitSeconds <= 0 {
		c.Analyzer.UploadWaitSeconds = defaultAnalyzerUploadWait
	}
	if c.Analyzer.MaxAnalyzableMinute <= 0 {
		c.Analyzer.MaxAnalyzableMinute = defaultAnalyzableMinutes
	}
	if c.Analyzer.MaxSourceMB <= 0 {
		c.Analyzer.MaxSourceMB = defaultMaxSourceMB
	}
}

func (c *Config) normalizeSpeech() {
	c.Speech.APIKey = strings.TrimSpace(c.Speech.APIKey)
	if c.Speech.APIKey == "" {
		if value, ok := os.LookupEnv("NATIVIZE_SPEECH_API_KEY"); ok {
			c.Speech.APIKey = strings.TrimSpace(value)
		}
	}
	c.Speech.BaseURL = strings.TrimRight(strings.TrimSpace(c.Speech.BaseURL), "/")
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeout
	}
	c.Speech.FallbackVoice = strings.TrimSpace(c.Speech.FallbackVoice)
}

func (c *Config) normalizeMedia() {
	if c.Media.MobileCRF <= 0 {
		c.Media.MobileCRF = defaultMobileCRF
	}
	if c.Media.MobileScaleHeight <= 0 {
		c.Media.MobileScaleHeight = defaultMobileScaleHeight
	}
	if c.Media.WhatsAppTargetMB <= 0 {
		c.Media.WhatsAppTargetMB = defaultWhatsAppTargetMB
	}
	if c.Media.WhatsAppScaleHeight <= 0 {
		c.Media.WhatsAppScaleHeight = defaultWhatsAppScaleHeight
	}
	if c.Media.MinAudioBitrateKbps <= 0 {
		c.Media.MinAudioBitrateKbps = defaultMinAudioBitrateKbps
	}
	c.Media.GapFill = strings.ToLower(strings.TrimSpace(c.Media.GapFill))
	if c.Media.GapFill == "" {
		c.Media.GapFill = defaultGapFill
	}
	if c.Media.ProbeTimeoutSeconds <= 0 {
		c.Media.ProbeTimeoutSeconds = defaultProbeTimeout
	}
	if c.Media.EncodeTimeoutSeconds <= 0 {
		c.Media.EncodeTimeoutSeconds = defaultEncodeTimeout
	}
}

func (c *Config) normalizeRetry() {
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
	if c.Retry.BaseDelaySeconds <= 0 {
		c.Retry.BaseDelaySeconds = defaultRetryBaseDelaySeconds
	}
	if c.Retry.StageTimeoutSeconds <= 0 {
		c.Retry.StageTimeoutSeconds = defaultStageTimeoutSeconds
	}
	if c.Retry.BreakerThreshold <= 0 {
		c.Retry.BreakerThreshold = defaultBreakerThreshold
	}
	if c.Retry.BreakerCooldownSeconds <= 0 {
		c.Retry.BreakerCooldownSeconds = defaultBreakerCooldownSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

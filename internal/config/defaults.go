package config

// Storage backend names accepted in [storage].
const (
	StorageBackendLocal = "local"
	StorageBackendGCS   = "gcs"
)

const (
	defaultWorkDir                = "~/.local/share/nativize/work"
	defaultLogDir                 = "~/.local/share/nativize/logs"
	defaultAPIBind                = "127.0.0.1:7590"
	defaultStorageBackend         = StorageBackendLocal
	defaultStorageLocalDir        = "~/.local/share/nativize/storage"
	defaultAnalyzerBaseURL        = "https://generativelanguage.googleapis.com"
	defaultAnalyzerModel          = "gemini-2.5-flash"
	defaultAnalyzerTimeout        = 300
	defaultAnalyzerUploadPoll     = 5
	defaultAnalyzerUploadWait     = 300
	defaultAnalyzableMinutes      = 60
	defaultMaxSourceMB            = 500
	defaultSpeechBaseURL          = "http://127.0.0.1:7873"
	defaultSpeechTimeout          = 120
	defaultMobileCRF              = 28
	defaultMobileScaleHeight      = 480
	defaultWhatsAppTargetMB       = 15
	defaultWhatsAppScaleHeight    = 360
	defaultMinAudioBitrateKbps    = 200
	defaultGapFill                = "original"
	defaultProbeTimeout           = 60
	defaultEncodeTimeout          = 1800
	defaultRetryMaxAttempts       = 10
	defaultRetryBaseDelaySeconds  = 5
	defaultStageTimeoutSeconds    = 1800
	defaultBreakerThreshold       = 5
	defaultBreakerCooldownSeconds = 60
	defaultWorkers                = 2
	defaultSynthesisConcurrency   = 4
	defaultHeartbeatInterval      = 15
	defaultHeartbeatTimeout       = 120
	defaultNotifyDedupSeconds     = 600
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Storage: Storage{
			Backend:  defaultStorageBackend,
			LocalDir: defaultStorageLocalDir,
		},
		Analyzer: Analyzer{
			BaseURL:             defaultAnalyzerBaseURL,
			Model:               defaultAnalyzerModel,
			TimeoutSeconds:      defaultAnalyzerTimeout,
			UploadPollSeconds:   defaultAnalyzerUploadPoll,
			UploadWaitSeconds:   defaultAnalyzerUploadWait,
			MaxAnalyzableMinute: defaultAnalyzableMinutes,
			MaxSourceMB:         defaultMaxSourceMB,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			TimeoutSeconds: defaultSpeechTimeout,
		},
		Media: Media{
			MobileCRF:            defaultMobileCRF,
			MobileScaleHeight:    defaultMobileScaleHeight,
			WhatsAppTargetMB:     defaultWhatsAppTargetMB,
			WhatsAppScaleHeight:  defaultWhatsAppScaleHeight,
			MinAudioBitrateKbps:  defaultMinAudioBitrateKbps,
			GapFill:              defaultGapFill,
			ProbeTimeoutSeconds:  defaultProbeTimeout,
			EncodeTimeoutSeconds: defaultEncodeTimeout,
			SubtitlesEnabled:     true,
		},
		Retry: Retry{
			MaxAttempts:            defaultRetryMaxAttempts,
			BaseDelaySeconds:       defaultRetryBaseDelaySeconds,
			StageTimeoutSeconds:    defaultStageTimeoutSeconds,
			BreakerThreshold:       defaultBreakerThreshold,
			BreakerCooldownSeconds: defaultBreakerCooldownSeconds,
		},
		Workflow: Workflow{
			QueuePollInterval:    5,
			ErrorRetryInterval:   10,
			HeartbeatInterval:    defaultHeartbeatInterval,
			HeartbeatTimeout:     defaultHeartbeatTimeout,
			Workers:              defaultWorkers,
			SynthesisConcurrency: defaultSynthesisConcurrency,
			ReviewEnabled:        true,
		},
		Notifications: Notifications{
			RequestTimeout:     10,
			Submitted:          true,
			Review:             true,
			Completion:         true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

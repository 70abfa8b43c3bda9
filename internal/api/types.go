// Package api defines the transport-facing job representations shared
// by the daemon's HTTP surface and the CLI renderers, and the request
// payloads clients send.
package api

// Job describes a localization job in a transport-friendly format.
// Internal failure detail never crosses this boundary; errors surface
// as kind, message, and retriability only.
type Job struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourcePath      string    `json:"sourcePath,omitempty"`
	SourceRef       string    `json:"sourceRef,omitempty"`
	TargetLanguage  string    `json:"targetLanguage"`
	Voice           string    `json:"voice,omitempty"`
	Status          string    `json:"status"`
	StageLabel      string    `json:"stageLabel"`
	Progress        int       `json:"progress"`
	Error           *JobError `json:"error,omitempty"`
	Segments        []Segment `json:"segments,omitempty"`
	Report          *Report   `json:"report,omitempty"`
	OutputRef       string    `json:"outputRef,omitempty"`
	MobileOutputRef string    `json:"mobileOutputRef,omitempty"`
	WhatsAppRef     string    `json:"whatsappRef,omitempty"`
	SubtitlesRef    string    `json:"subtitlesRef,omitempty"`
	WordsLocalized  int       `json:"wordsLocalized,omitempty"`
	DurationSeconds float64   `json:"durationSeconds,omitempty"`
	CreatedAt       string    `json:"createdAt,omitempty"`
	UpdatedAt       string    `json:"updatedAt,omitempty"`
	CompletedAt     string    `json:"completedAt,omitempty"`
}

// JobError is the sanitized failure summary exposed to clients.
type JobError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retriable bool   `json:"retriable"`
}

// Segment is one translated span of the source timeline.
type Segment struct {
	Index          int     `json:"index"`
	StartTime      float64 `json:"startTime"`
	EndTime        float64 `json:"endTime"`
	OriginalText   string  `json:"originalText"`
	TranslatedText string  `json:"translatedText"`
	Approved       bool    `json:"approved"`
	HasAudio       bool    `json:"hasAudio"`
	PacingWarning  string  `json:"pacingWarning,omitempty"`
}

// Report summarizes the cultural adaptation work on a job.
type Report struct {
	AdaptationCount int           `json:"adaptationCount"`
	QualityScore    int           `json:"qualityScore"`
	Notes           string        `json:"notes,omitempty"`
	Sensitivities   []Sensitivity `json:"sensitivities,omitempty"`
}

// Sensitivity flags one culturally sensitive moment.
type Sensitivity struct {
	Timestamp      float64 `json:"timestamp"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// SubmitRequest creates a new localization job.
type SubmitRequest struct {
	SourcePath     string `json:"sourcePath,omitempty"`
	SourceRef      string `json:"sourceRef,omitempty"`
	Title          string `json:"title,omitempty"`
	TargetLanguage string `json:"targetLanguage"`
	Voice          string `json:"voice,omitempty"`
}

// SegmentEdit carries one reviewed segment in a finalize call.
type SegmentEdit struct {
	Index          int    `json:"index"`
	TranslatedText string `json:"translatedText"`
	Approved       bool   `json:"approved"`
}

// FinalizeRequest releases a reviewed job into audio generation.
type FinalizeRequest struct {
	Edits []SegmentEdit `json:"edits,omitempty"`
}

// FinalizeResponse reports which clips the edits invalidated.
type FinalizeResponse struct {
	Job                 Job   `json:"job"`
	InvalidatedSegments []int `json:"invalidatedSegments"`
}

// UploadRequest asks for a presigned upload slot for a source file.
type UploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType,omitempty"`
}

// UploadResponse carries the presigned PUT target and the reference to
// submit the job with.
type UploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	SourceRef string `json:"sourceRef"`
	Method    string `json:"method"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// LanguageInfo describes one supported target language.
type LanguageInfo struct {
	Code    string `json:"code"`
	Display string `json:"display"`
	Native  string `json:"native"`
	Locale  string `json:"locale"`
}

// StageHealth mirrors per-stage readiness for status responses.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJobID   string         `json:"lastJobId,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// ErrorResponse is the uniform error payload for every endpoint.
type ErrorResponse struct {
	Error JobError `json:"error"`
}

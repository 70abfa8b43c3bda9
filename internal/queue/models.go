package queue

import (
	"strings"
	"time"

	"nativize/internal/services"
)

// Status represents the lifecycle of a localization job. The status is the
// stage: a job in "analyzing" is being analyzed right now or was when its
// worker last wrote state.
type Status string

const (
	StatusPending         Status = "pending"
	StatusUploading       Status = "uploading"
	StatusAnalyzing       Status = "analyzing"
	StatusNeedsReview     Status = "needs_review"
	StatusGeneratingAudio Status = "generating_audio"
	StatusStitching       Status = "stitching"
	StatusComplete        Status = "complete"
	StatusFailed          Status = "failed"
)

// DaemonStopReason is the error message set when jobs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

// StaleReclaimReason is the error message set when a job's worker stops heartbeating.
const StaleReclaimReason = "Worker heartbeat expired"

var allStatuses = []Status{
	StatusPending,
	StatusUploading,
	StatusAnalyzing,
	StatusNeedsReview,
	StatusGeneratingAudio,
	StatusStitching,
	StatusComplete,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// processingStatuses are stages driven by a worker; jobs in these states
// carry a heartbeat while a worker owns them.
var processingStatuses = map[Status]struct{}{
	StatusUploading:       {},
	StatusAnalyzing:       {},
	StatusGeneratingAudio: {},
	StatusStitching:       {},
}

// claimableStatuses are the states a worker may pick a job up from.
var claimableStatuses = []Status{StatusPending, StatusGeneratingAudio}

// validTransitions is the forward edge set of the job state machine.
// Any non-terminal status may additionally transition to failed.
var validTransitions = map[Status][]Status{
	StatusPending:         {StatusUploading},
	StatusUploading:       {StatusAnalyzing},
	StatusAnalyzing:       {StatusNeedsReview, StatusGeneratingAudio},
	StatusNeedsReview:     {StatusGeneratingAudio},
	StatusGeneratingAudio: {StatusStitching},
	StatusStitching:       {StatusComplete},
}

// CanTransition reports whether moving from one status to another follows
// the state machine. Terminal states have no outgoing edges.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if to == StatusFailed {
		return from != StatusComplete && from != StatusFailed
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status Status) bool {
	return status == StatusComplete || status == StatusFailed
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Review     int
	Failed     int
	Complete   int
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// Job represents a localization job persisted in SQLite.
type Job struct {
	ID              string
	Title           string
	SourcePath      string
	SourceRef       string
	TargetLanguage  string
	Voice           string
	Status          Status
	Progress        int
	SegmentsJSON    string
	ReportJSON      string
	ErrorKind       string
	ErrorMessage    string
	ErrorRetriable  bool
	OutputRef       string
	MobileOutputRef string
	WhatsAppRef     string
	SubtitlesRef    string
	WordsLocalized  int
	DurationSeconds float64
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// SetStageProgress moves the job to the given stage and sets progress
// proportionally within the stage's band. fraction is clamped to [0,1]
// and progress never decreases.
func (j *Job) SetStageProgress(status Status, fraction float64) {
	j.Status = status
	percent := ProgressFor(status, fraction)
	if percent > j.Progress {
		j.Progress = percent
	}
}

// SetFailed marks the job as failed with the classified error details.
// Progress is frozen at its last value so callers can see how far the
// job got.
func (j *Job) SetFailed(err error) {
	details := services.Details(err)
	j.Status = StatusFailed
	j.ErrorKind = string(details.Kind)
	j.ErrorMessage = details.Message
	j.ErrorRetriable = details.Retriable
	j.LastHeartbeat = nil
	j.markTerminal()
}

// SetComplete marks the job complete at full progress and clears any
// stale error details.
func (j *Job) SetComplete() {
	j.Status = StatusComplete
	j.Progress = 100
	j.ErrorKind = ""
	j.ErrorMessage = ""
	j.ErrorRetriable = false
	j.LastHeartbeat = nil
	j.markTerminal()
}

// markTerminal stamps the completion time once. A job that bounces
// between failed states keeps its first terminal timestamp; only a
// retry clears it.
func (j *Job) markTerminal() {
	if j.CompletedAt != nil {
		return
	}
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// ClearError wipes persisted failure details, used when a job is retried.
func (j *Job) ClearError() {
	j.ErrorKind = ""
	j.ErrorMessage = ""
	j.ErrorRetriable = false
	j.CompletedAt = nil
}

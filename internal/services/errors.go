package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify failures from external collaborators.
// Stage code wraps errors with one of these so the executor and the job
// store can decide between retrying, failing fast, and what to persist.
var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrUnavailable   = errors.New("service unavailable")
	ErrContent       = errors.New("content error")
	ErrEncoding      = errors.New("encoding failure")
	ErrMalformed     = errors.New("malformed response")
	ErrVoice         = errors.New("voice unavailable")
	ErrCancelled     = errors.New("cancelled")
	ErrExternalTool  = errors.New("external tool error")
)

// Kind is the stable error classification persisted into job records and
// exposed through the API. It never carries paths or credentials.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindUnavailable   Kind = "service_unavailable"
	KindContent       Kind = "content"
	KindEncoding      Kind = "encoding"
	KindCancelled     Kind = "cancelled"
	KindTransient     Kind = "transient"
	KindUnknown       Kind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retriable reports whether the error is worth retrying. Cancellation is
// never retriable; validation/content/configuration failures are permanent.
func Retriable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return false
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrContent),
		errors.Is(err, ErrVoice):
		return false
	case errors.Is(err, ErrTransient),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrMalformed),
		errors.Is(err, ErrEncoding):
		return true
	default:
		return false
	}
}

// Classify maps an error to its persisted Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrContent), errors.Is(err, ErrVoice):
		return KindContent
	case errors.Is(err, ErrEncoding), errors.Is(err, ErrExternalTool):
		return KindEncoding
	case errors.Is(err, ErrTransient), errors.Is(err, ErrMalformed):
		return KindTransient
	default:
		return KindUnknown
	}
}

// ErrorDetails is the sanitized failure summary written into a job record.
type ErrorDetails struct {
	Kind      Kind
	Message   string
	Retriable bool
}

// Details extracts the persisted representation of a stage error. The message
// is the error text with the sentinel prefix stripped so users see "analyzer:
// upload: ..." rather than the marker noise.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	msg := err.Error()
	for _, marker := range []error{
		ErrValidation, ErrConfiguration, ErrNotFound, ErrTimeout,
		ErrTransient, ErrUnavailable, ErrContent, ErrEncoding,
		ErrMalformed, ErrVoice, ErrCancelled, ErrExternalTool,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			msg = strings.TrimPrefix(msg, prefix)
			break
		}
	}
	return ErrorDetails{
		Kind:      Classify(err),
		Message:   strings.TrimSpace(msg),
		Retriable: Retriable(err),
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nativize/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrEncoding, "stitching", "mux", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"stitching", "mux", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRetriableClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retriable bool
	}{
		{"nil", nil, false},
		{"validation", services.Wrap(services.ErrValidation, "submit", "language", "unsupported", nil), false},
		{"content", services.Wrap(services.ErrContent, "analysis", "segments", "overlap", nil), false},
		{"voice", services.Wrap(services.ErrVoice, "synthesis", "segment 1", "no voice", nil), false},
		{"unavailable", services.Wrap(services.ErrUnavailable, "analysis", "generate", "503", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "synthesis", "segment 0", "deadline", nil), true},
		{"malformed", services.Wrap(services.ErrMalformed, "analysis", "parse", "bad json", nil), true},
		{"encoding", services.Wrap(services.ErrEncoding, "stitching", "mobile", "exit 1", nil), true},
		{"cancelled", context.Canceled, false},
	}
	for _, tc := range cases {
		if got := services.Retriable(tc.err); got != tc.retriable {
			t.Fatalf("%s: Retriable = %v, want %v", tc.name, got, tc.retriable)
		}
	}
}

func TestDetailsStripsMarkerPrefix(t *testing.T) {
	err := services.Wrap(services.ErrUnavailable, "analysis", "generate", "rate limited", nil)
	details := services.Details(err)
	if details.Kind != services.KindUnavailable {
		t.Fatalf("expected service_unavailable kind, got %s", details.Kind)
	}
	if !details.Retriable {
		t.Fatal("expected retriable details")
	}
	if strings.HasPrefix(details.Message, "service unavailable:") {
		t.Fatalf("marker prefix should be stripped, got %q", details.Message)
	}
	if !strings.Contains(details.Message, "rate limited") {
		t.Fatalf("expected message fragment, got %q", details.Message)
	}
}

func TestDetailsCancelled(t *testing.T) {
	details := services.Details(services.Wrap(services.ErrCancelled, "workflow", "run", "job deleted", nil))
	if details.Kind != services.KindCancelled {
		t.Fatalf("expected cancelled kind, got %s", details.Kind)
	}
	if details.Retriable {
		t.Fatal("cancellation must not be retriable")
	}
}

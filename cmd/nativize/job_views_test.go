package main

import (
	"strings"
	"testing"

	"nativize/internal/api"
)

func TestBuildJobRows(t *testing.T) {
	jobs := []api.Job{
		{
			ID:             "0d9c2f1e-aaaa-bbbb-cccc-000000000001",
			Title:          "Harvest Festival",
			TargetLanguage: "hindi",
			StageLabel:     "Generating Audio",
			Progress:       52,
		},
		{
			ID:             "0d9c2f1e-aaaa-bbbb-cccc-000000000002",
			TargetLanguage: "tamil",
			StageLabel:     "Failed",
			Progress:       40,
			Error:          &api.JobError{Kind: "content", Message: "segment 1: voice unavailable"},
		},
	}

	rows := buildJobRows(jobs)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "0d9c2f1e" {
		t.Fatalf("expected short id, got %q", rows[0][0])
	}
	if rows[0][4] != "52%" {
		t.Fatalf("unexpected progress cell: %q", rows[0][4])
	}
	if rows[1][1] != "(untitled)" {
		t.Fatalf("expected placeholder title, got %q", rows[1][1])
	}
	if !strings.Contains(rows[1][5], "segment 1") {
		t.Fatalf("expected error detail in row, got %q", rows[1][5])
	}
}

func TestWriteJobDetailIncludesOutputsAndSegments(t *testing.T) {
	job := api.Job{
		ID:             "job-1",
		Title:          "Harvest Festival",
		TargetLanguage: "hindi",
		StageLabel:     "Complete",
		Progress:       100,
		OutputRef:      "local://jobs/job-1/Harvest_Festival_hindi.mp4",
		WordsLocalized: 42,
		Segments: []api.Segment{
			{Index: 0, StartTime: 0, EndTime: 4.5, TranslatedText: "namaste", HasAudio: true},
			{Index: 1, StartTime: 5, EndTime: 9, TranslatedText: "swagat hai", PacingWarning: "speech 9.0s exceeds 4.0s slot"},
		},
	}

	var out strings.Builder
	writeJobDetail(&out, job)
	text := out.String()

	for _, want := range []string{
		"Harvest Festival",
		"Complete (100%)",
		"42 localized",
		"Harvest_Festival_hindi.mp4",
		"namaste",
		"ready",
		"pending !",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("detail output missing %q:\n%s", want, text)
		}
	}
}

func TestRenderStatusLine(t *testing.T) {
	plain := renderStatusLine("Workers", statusOK, "pid 42", false)
	if !strings.Contains(plain, "[OK] pid 42") {
		t.Fatalf("unexpected status line: %q", plain)
	}
	if strings.Contains(plain, ansiGreen) {
		t.Fatal("expected no color codes without colorize")
	}

	colored := renderStatusLine("Workers", statusError, "down", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected red wrapping, got %q", colored)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected: %q", got)
	}
	long := strings.Repeat("x", 80)
	got := truncate(long, 10)
	if len([]rune(got)) != 10 {
		t.Fatalf("expected 10 runes, got %d", len([]rune(got)))
	}
}

func TestApproveAllEditsSkipsExplicit(t *testing.T) {
	segments := []api.Segment{
		{Index: 0, TranslatedText: "namaste"},
		{Index: 1, TranslatedText: "swagat hai"},
	}
	explicit := []api.SegmentEdit{{Index: 1, TranslatedText: "padhariye", Approved: true}}

	edits := approveAllEdits(segments, explicit)
	if len(edits) != 2 {
		t.Fatalf("expected 2 edits, got %d", len(edits))
	}
	if edits[0].TranslatedText != "padhariye" {
		t.Fatalf("explicit edit should come first, got %q", edits[0].TranslatedText)
	}
	if edits[1].Index != 0 || edits[1].TranslatedText != "namaste" || !edits[1].Approved {
		t.Fatalf("unexpected generated edit: %#v", edits[1])
	}
}

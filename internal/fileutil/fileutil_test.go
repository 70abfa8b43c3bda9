package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	payload := []byte("segment audio payload")
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFileVerified(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatalf("expected error for missing source")
	}
}

func TestSafeBaseName(t *testing.T) {
	cases := map[string]string{
		"/videos/My Demo Reel.mp4":    "My_Demo_Reel",
		"/videos/clip-01_final.mov":   "clip-01_final",
		"/videos/???.mp4":             "media",
		"weird name (v2) [colör].mkv": "weird_name_v2_colr",
	}
	for in, want := range cases {
		if got := SafeBaseName(in); got != want {
			t.Fatalf("SafeBaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

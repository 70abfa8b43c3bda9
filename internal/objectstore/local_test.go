package objectstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nativize/internal/services"
	"nativize/internal/testsupport"
)

func TestLocalPutFetchRoundTrip(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	src := filepath.Join(t.TempDir(), "source.mp4")
	testsupport.WriteFile(t, src, 2048)

	ref, err := store.PutFile(context.Background(), JobKey("job-1", "source.mp4"), src)
	if err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	if !strings.HasPrefix(ref, "local://jobs/job-1/") {
		t.Fatalf("unexpected reference %q", ref)
	}

	dest := filepath.Join(t.TempDir(), "fetched.mp4")
	if err := store.Fetch(context.Background(), ref, dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat fetched file: %v", err)
	}
	if info.Size() != 2048 {
		t.Fatalf("expected 2048 bytes, got %d", info.Size())
	}
}

func TestLocalPutFromReader(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	ref, err := store.Put(context.Background(), JobKey("job-2", "audio", "segment_0.mp3"), strings.NewReader("clip"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	r, err := store.Open(context.Background(), ref)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if string(data) != "clip" {
		t.Fatalf("unexpected contents %q", data)
	}
}

func TestLocalMissingObjectIsNotFound(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	err = store.Fetch(context.Background(), "local://jobs/nope/source.mp4", filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLocalRejectsTraversalKeys(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	for _, key := range []string{"", "..", "jobs/../escape", "jobs//x"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x")); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("key %q: expected validation error, got %v", key, err)
		}
	}
}

func TestLocalRejectsForeignReference(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	err = store.Delete(context.Background(), "gs://bucket/jobs/job-1/out.mp4")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for foreign reference, got %v", err)
	}
}

func TestLocalDeletePrefixRemovesJobArtifacts(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	kept, err := store.Put(ctx, JobKey("job-b", "source.mp4"), strings.NewReader("keep"))
	if err != nil {
		t.Fatalf("Put kept: %v", err)
	}
	removed, err := store.Put(ctx, JobKey("job-a", "output.mp4"), strings.NewReader("drop"))
	if err != nil {
		t.Fatalf("Put removed: %v", err)
	}

	if err := store.DeletePrefix(ctx, JobKey("job-a")); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if _, err := store.Open(ctx, removed); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected job-a artifact gone, got %v", err)
	}
	if r, err := store.Open(ctx, kept); err != nil {
		t.Fatalf("expected job-b artifact intact: %v", err)
	} else {
		r.Close()
	}
}

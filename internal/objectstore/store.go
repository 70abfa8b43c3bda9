package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"nativize/internal/config"
	"nativize/internal/services"
)

// Store persists job artifacts (source videos, synthesized audio clips,
// stitched outputs) and hands back opaque references that the job record
// carries. References are resolvable only by the store that issued them.
type Store interface {
	// PutFile uploads a local file under the given key and returns its reference.
	PutFile(ctx context.Context, key, path string) (string, error)
	// Put uploads from a reader under the given key and returns its reference.
	Put(ctx context.Context, key string, src io.Reader) (string, error)
	// Fetch downloads the referenced object to a local path.
	Fetch(ctx context.Context, ref, destPath string) error
	// Open returns a reader over the referenced object.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Delete removes the referenced object. Missing objects are not an error.
	Delete(ctx context.Context, ref string) error
	// DeletePrefix removes every object stored under the key prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// New selects a backend from the storage config.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendLocal:
		return NewLocal(cfg.Storage.LocalDir)
	case config.StorageBackendGCS:
		return NewGCS(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix, cfg.Storage.CredentialsFile)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "objectstore",
			fmt.Sprintf("unknown storage backend %q", cfg.Storage.Backend), nil)
	}
}

// JobKey builds the canonical object key for a job artifact.
func JobKey(jobID string, parts ...string) string {
	elems := append([]string{"jobs", jobID}, parts...)
	return strings.Join(elems, "/")
}

func cleanKey(key string) (string, error) {
	key = strings.Trim(key, "/")
	if key == "" {
		return "", services.Wrap(services.ErrValidation, "", "objectstore", "object key is empty", nil)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", services.Wrap(services.ErrValidation, "", "objectstore",
				fmt.Sprintf("invalid object key %q", key), nil)
		}
	}
	return key, nil
}

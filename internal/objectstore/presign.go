package objectstore

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/storage"

	"nativize/internal/services"
)

// Presigner is implemented by backends that can hand out time-limited
// URLs for direct client uploads and downloads. The local backend does
// not implement it; the daemon serves those objects itself.
type Presigner interface {
	// PresignUpload returns a PUT URL for the key plus the reference the
	// object will have once uploaded.
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (url, ref string, err error)
	// PresignDownload returns a GET URL for an existing reference.
	PresignDownload(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

func (g *GCS) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, string, error) {
	name, err := g.objectName(key)
	if err != nil {
		return "", "", err
	}
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodPut,
		Expires: time.Now().Add(ttl),
	}
	if contentType != "" {
		opts.ContentType = contentType
	}
	url, err := g.client.Bucket(g.bucket).SignedURL(name, opts)
	if err != nil {
		return "", "", services.Wrap(services.ErrConfiguration, "", "objectstore", "sign upload url", err)
	}
	return url, g.ref(name), nil
}

func (g *GCS) PresignDownload(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	name, err := g.refToObject(ref)
	if err != nil {
		return "", err
	}
	url, err := g.client.Bucket(g.bucket).SignedURL(name, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "", "objectstore", "sign download url", err)
	}
	return url, nil
}

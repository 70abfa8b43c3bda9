package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"nativize/internal/services"
)

const gcsScheme = "gs://"

// GCS stores objects in a Google Cloud Storage bucket under an optional
// key prefix. References look like gs://bucket/prefix/jobs/<id>/out.mp4.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS connects to the bucket using application default credentials,
// or the given service account file when one is configured.
func NewGCS(ctx context.Context, bucket, prefix, credentialsFile string) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "objectstore", "gcs bucket is empty", nil)
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "objectstore", "connect to gcs", err)
	}
	return &GCS{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) objectName(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if g.prefix != "" {
		return g.prefix + "/" + key, nil
	}
	return key, nil
}

func (g *GCS) refToObject(ref string) (string, error) {
	want := gcsScheme + g.bucket + "/"
	if !strings.HasPrefix(ref, want) {
		return "", services.Wrap(services.ErrValidation, "", "objectstore",
			fmt.Sprintf("reference %q does not belong to bucket %s", ref, g.bucket), nil)
	}
	name := strings.TrimPrefix(ref, want)
	if name == "" {
		return "", services.Wrap(services.ErrValidation, "", "objectstore", "reference has no object name", nil)
	}
	return name, nil
}

func (g *GCS) ref(objectName string) string {
	return gcsScheme + g.bucket + "/" + objectName
}

func (g *GCS) PutFile(ctx context.Context, key, path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "", "objectstore",
			fmt.Sprintf("source file not found: %s", path), err)
	}
	defer src.Close()
	return g.Put(ctx, key, src)
}

func (g *GCS) Put(ctx context.Context, key string, src io.Reader) (string, error) {
	name, err := g.objectName(key)
	if err != nil {
		return "", err
	}
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return "", services.Wrap(services.ErrTransient, "", "objectstore", "upload object", err)
	}
	if err := w.Close(); err != nil {
		return "", services.Wrap(services.ErrTransient, "", "objectstore", "finalize upload", err)
	}
	return g.ref(name), nil
}

func (g *GCS) Fetch(ctx context.Context, ref, destPath string) error {
	src, err := g.Open(ctx, ref)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return services.Wrap(services.ErrTransient, "", "objectstore", "create download file", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(destPath)
		return services.Wrap(services.ErrTransient, "", "objectstore", "download object", err)
	}
	return out.Close()
}

func (g *GCS) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	name, err := g.refToObject(ref)
	if err != nil {
		return nil, err
	}
	r, err := g.client.Bucket(g.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "", "objectstore",
				fmt.Sprintf("object not found: %s", ref), err)
		}
		return nil, services.Wrap(services.ErrTransient, "", "objectstore", "open object", err)
	}
	return r, nil
}

func (g *GCS) Delete(ctx context.Context, ref string) error {
	name, err := g.refToObject(ref)
	if err != nil {
		return err
	}
	err = g.client.Bucket(g.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return services.Wrap(services.ErrTransient, "", "objectstore", "delete object", err)
	}
	return nil
}

func (g *GCS) DeletePrefix(ctx context.Context, prefix string) error {
	name, err := g.objectName(prefix)
	if err != nil {
		return err
	}
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: name + "/"})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return services.Wrap(services.ErrTransient, "", "objectstore", "list objects", err)
		}
		if err := g.client.Bucket(g.bucket).Object(attrs.Name).Delete(ctx); err != nil &&
			!errors.Is(err, storage.ErrObjectNotExist) {
			return services.Wrap(services.ErrTransient, "", "objectstore", "delete object", err)
		}
	}
}

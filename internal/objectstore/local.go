package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"nativize/internal/fileutil"
	"nativize/internal/services"
)

const localScheme = "local://"

// Local stores objects as files under a root directory. References look
// like local://jobs/<id>/source.mp4 and resolve relative to the root.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed and returns the store.
func NewLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "objectstore", "local storage dir is empty", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

func (l *Local) refToKey(ref string) (string, error) {
	if !strings.HasPrefix(ref, localScheme) {
		return "", services.Wrap(services.ErrValidation, "", "objectstore",
			fmt.Sprintf("reference %q does not belong to local storage", ref), nil)
	}
	return cleanKey(strings.TrimPrefix(ref, localScheme))
}

func (l *Local) PutFile(ctx context.Context, key, path string) (string, error) {
	dest, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := fileutil.CopyFileVerified(path, dest); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrValidation, "", "objectstore",
				fmt.Sprintf("source file not found: %s", path), err)
		}
		return "", services.Wrap(services.ErrTransient, "", "objectstore", "store object", err)
	}
	return localScheme + key, nil
}

func (l *Local) Put(ctx context.Context, key string, src io.Reader) (string, error) {
	dest, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "", "objectstore", "create object", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return "", services.Wrap(services.ErrTransient, "", "objectstore", "write object", err)
	}
	if err := out.Close(); err != nil {
		return "", services.Wrap(services.ErrTransient, "", "objectstore", "close object", err)
	}
	return localScheme + key, nil
}

func (l *Local) Fetch(ctx context.Context, ref, destPath string) error {
	key, err := l.refToKey(ref)
	if err != nil {
		return err
	}
	src := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}
	if err := fileutil.CopyFileVerified(src, destPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "", "objectstore",
				fmt.Sprintf("object not found: %s", ref), err)
		}
		return services.Wrap(services.ErrTransient, "", "objectstore", "fetch object", err)
	}
	return nil
}

func (l *Local) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	key, err := l.refToKey(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(l.root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "", "objectstore",
				fmt.Sprintf("object not found: %s", ref), err)
		}
		return nil, services.Wrap(services.ErrTransient, "", "objectstore", "open object", err)
	}
	return f, nil
}

func (l *Local) Delete(ctx context.Context, ref string) error {
	key, err := l.refToKey(ref)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(l.root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrTransient, "", "objectstore", "delete object", err)
	}
	return nil
}

func (l *Local) DeletePrefix(ctx context.Context, prefix string) error {
	key, err := cleanKey(prefix)
	if err != nil {
		return err
	}
	err = os.RemoveAll(filepath.Join(l.root, filepath.FromSlash(key)))
	if err != nil {
		return services.Wrap(services.ErrTransient, "", "objectstore", "delete object prefix", err)
	}
	return nil
}

package preflight

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"nativize/internal/config"
	"nativize/internal/deps"
	"nativize/internal/objectstore"
	"nativize/internal/services/analyzer"
	"nativize/internal/services/speech"
)

// CheckAnalyzer verifies the analysis API is reachable and the key is
// accepted. Single attempt, 15-second timeout.
func CheckAnalyzer(ctx context.Context, cfg *config.Config) Result {
	const name = "Analyzer"

	if strings.TrimSpace(cfg.Analyzer.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := analyzer.NewClientFromConfig(cfg).Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckSpeech verifies the synthesis backend is up.
func CheckSpeech(ctx context.Context, cfg *config.Config) Result {
	const name = "Speech"

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := speech.NewClientFromConfig(cfg).Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Backend reachable"}
}

// CheckStorage writes and removes a small probe object to prove the
// configured backend accepts writes.
func CheckStorage(ctx context.Context, objects objectstore.Store) Result {
	const name = "Object storage"

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	key := fmt.Sprintf("preflight/probe-%d", time.Now().UnixNano())
	ref, err := objects.Put(checkCtx, key, bytes.NewReader([]byte("probe")))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("write failed: %v", err)}
	}
	if err := objects.Delete(checkCtx, ref); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("cleanup failed: %v", err)}
	}
	return Result{Name: name, Passed: true, Detail: "Writable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps resolves the external binaries the pipeline shells
// out to, honoring configured override paths.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.Check(deps.MediaTools(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
}

// summarizeNetworkError produces a short summary for connectivity failures.
func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}

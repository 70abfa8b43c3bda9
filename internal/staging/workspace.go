// Package staging lays out the per-job scratch directory used between
// stages and prunes abandoned workspaces.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nativize/internal/config"
)

// Workspace is the on-disk scratch area for one job. Everything under
// Root is disposable; durable artifacts live in the object store.
type Workspace struct {
	Root string
}

// NewWorkspace returns the workspace for a job without touching disk.
func NewWorkspace(cfg *config.Config, jobID string) Workspace {
	return Workspace{Root: filepath.Join(cfg.Paths.WorkDir, jobID)}
}

// Ensure creates the workspace directories.
func (w Workspace) Ensure() error {
	for _, dir := range []string{w.Root, w.ClipsDir(), w.OutputDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create staging dir %s: %w", dir, err)
		}
	}
	return nil
}

// SourcePath is where the fetched source video lands.
func (w Workspace) SourcePath(ext string) string {
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(w.Root, "source"+ext)
}

// SourceExt picks the staged source extension from the submitted path
// or the object reference, defaulting to .mp4.
func SourceExt(sourcePath, sourceRef string) string {
	for _, candidate := range []string{sourcePath, sourceRef} {
		if ext := strings.ToLower(filepath.Ext(candidate)); len(ext) > 1 && len(ext) <= 6 {
			return ext
		}
	}
	return ".mp4"
}

// ClipsDir holds per-segment synthesized audio.
func (w Workspace) ClipsDir() string {
	return filepath.Join(w.Root, "clips")
}

// ClipPath names the audio clip for a segment index.
func (w Workspace) ClipPath(index int) string {
	return filepath.Join(w.ClipsDir(), fmt.Sprintf("segment_%04d.mp3", index))
}

// OutputDir holds the stitched renditions before upload.
func (w Workspace) OutputDir() string {
	return filepath.Join(w.Root, "out")
}

// CombinedAudioPath is the assembled dubbed track.
func (w Workspace) CombinedAudioPath() string {
	return filepath.Join(w.OutputDir(), "dubbed_audio.m4a")
}

// OutputPath is the primary localized video.
func (w Workspace) OutputPath() string {
	return filepath.Join(w.OutputDir(), "localized.mp4")
}

// MobileOutputPath is the mobile-optimized rendition.
func (w Workspace) MobileOutputPath() string {
	return filepath.Join(w.OutputDir(), "localized_mobile.mp4")
}

// WhatsAppOutputPath is the messaging-sized rendition.
func (w Workspace) WhatsAppOutputPath() string {
	return filepath.Join(w.OutputDir(), "localized_whatsapp.mp4")
}

// SubtitlesPath is the rendered WebVTT file.
func (w Workspace) SubtitlesPath() string {
	return filepath.Join(w.OutputDir(), "subtitles.vtt")
}

// Remove deletes the whole workspace.
func (w Workspace) Remove() error {
	return os.RemoveAll(w.Root)
}

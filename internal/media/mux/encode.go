package mux

import (
	"fmt"
)

// MuxArgs replaces a video's audio track with the assembled dubbed
// track. The video stream is copied untouched.
func MuxArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y", "-hide_banner", "-v", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-shortest",
		outputPath,
	}
}

// MobileArgs re-encodes the muxed output for mobile playback: constant
// quality, downscaled, faststart for streaming.
func MobileArgs(inputPath, outputPath string, crf, scaleHeight int) []string {
	return []string{
		"-y", "-hide_banner", "-v", "error",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", fmt.Sprintf("%d", crf),
		"-vf", fmt.Sprintf("scale=-2:%d", scaleHeight),
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outputPath,
	}
}

// WhatsAppBitrateKbps computes the video bitrate that lands a clip of
// the given duration under the target size, reserving 128 kbps for
// audio and never dropping below minKbps.
func WhatsAppBitrateKbps(targetMB int, durationSeconds float64, minKbps int) int {
	if durationSeconds <= 0 {
		return minKbps
	}
	bitrate := int(float64(targetMB)*8192/durationSeconds) - 128
	if bitrate < minKbps {
		return minKbps
	}
	return bitrate
}

// WhatsAppArgs re-encodes the muxed output to fit messaging size limits
// with a computed bitrate and an aggressive downscale.
func WhatsAppArgs(inputPath, outputPath string, bitrateKbps, scaleHeight int) []string {
	return []string{
		"-y", "-hide_banner", "-v", "error",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-b:v", fmt.Sprintf("%dk", bitrateKbps),
		"-vf", fmt.Sprintf("scale=-2:%d", scaleHeight),
		"-c:a", "aac",
		"-b:a", "96k",
		"-movflags", "+faststart",
		outputPath,
	}
}

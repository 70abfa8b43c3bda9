// Package ffprobe wraps the ffprobe CLI for source validation and
// duration measurement.
package ffprobe

// Package mux builds and runs the ffmpeg invocations that assemble the
// dubbed audio timeline, replace the source audio track, and produce
// the mobile and messaging-sized renditions.
package mux

// Package analyzer extracts translated, timestamped segments and a
// cultural adaptation report from a source video using a Gemini-style
// generative language API.
package analyzer

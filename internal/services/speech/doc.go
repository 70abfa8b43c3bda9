// Package speech renders translated segment text to audio clips via an
// edge-tts compatible HTTP backend, with a per-language neural voice
// catalog and a single fallback-voice attempt on rejection.
package speech

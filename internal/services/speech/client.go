package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"nativize/internal/config"
	"nativize/internal/services"
)

const (
	defaultBaseURL     = "http://127.0.0.1:7873"
	defaultHTTPTimeout = 2 * time.Minute
)

// Client talks to an edge-tts compatible HTTP synthesis backend. The
// backend accepts a voice name and text and streams back encoded audio.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	fallbackVoice  string
	voiceOverrides map[string]string
}

// Option customizes the speech client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithFallbackVoice sets the voice tried once when the primary voice is
// rejected by the backend.
func WithFallbackVoice(voice string) Option {
	return func(c *Client) {
		c.fallbackVoice = strings.TrimSpace(voice)
	}
}

// WithVoiceOverrides sets per-language voice overrides.
func WithVoiceOverrides(overrides map[string]string) Option {
	return func(c *Client) {
		c.voiceOverrides = overrides
	}
}

// NewClient constructs a speech client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewClientFromConfig builds a client from the speech config section.
func NewClientFromConfig(cfg *config.Config) *Client {
	opts := []Option{
		WithBaseURL(cfg.Speech.BaseURL),
		WithFallbackVoice(cfg.Speech.FallbackVoice),
		WithVoiceOverrides(cfg.Speech.VoiceOverrides),
	}
	if cfg.Speech.TimeoutSeconds > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Speech.TimeoutSeconds) * time.Second,
		}))
	}
	return NewClient(cfg.Speech.APIKey, opts...)
}

// Synthesize renders the request's text to an audio file. When the
// resolved voice is rejected and a fallback voice is configured, the
// fallback is tried exactly once before the failure surfaces.
func (c *Client) Synthesize(ctx context.Context, req Request) (*Clip, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "generating_audio", "synthesize", "text is empty", nil)
	}
	if strings.TrimSpace(req.DestPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "generating_audio", "synthesize", "destination path is empty", nil)
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		resolved, err := VoiceFor(req.Language, req.Gender, c.voiceOverrides)
		if err != nil {
			return nil, err
		}
		voice = resolved
	}

	clip, err := c.synthesizeVoice(ctx, text, voice, req.DestPath)
	if err == nil {
		return clip, nil
	}
	if !errors.Is(err, services.ErrVoice) {
		return nil, err
	}
	if c.fallbackVoice == "" || c.fallbackVoice == voice {
		return nil, err
	}

	clip, fallbackErr := c.synthesizeVoice(ctx, text, c.fallbackVoice, req.DestPath)
	if fallbackErr != nil {
		// Surface the original voice failure; the fallback detail
		// rides along for the log line.
		return nil, services.Wrap(services.ErrVoice, "generating_audio", "synthesize",
			fmt.Sprintf("voice %s unavailable and fallback %s failed", voice, c.fallbackVoice), fallbackErr)
	}
	clip.UsedFallback = true
	return clip, nil
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	Rate  string `json:"rate,omitempty"`
	Pitch string `json:"pitch,omitempty"`
}

func (c *Client) synthesizeVoice(ctx context.Context, text, voice, destPath string) (*Clip, error) {
	encoded, err := json.Marshal(synthesizeRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("speech synthesize: encode request: %w", err)
	}
	endpoint, err := url.JoinPath(c.baseURL, "/api/tts")
	if err != nil {
		return nil, fmt.Errorf("speech synthesize: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("speech synthesize: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "generating_audio", "synthesize", "speech backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, classifyStatus(resp.StatusCode, voice, strings.TrimSpace(string(body)))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, fmt.Errorf("speech synthesize: create clip dir: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("speech synthesize: create clip file: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(destPath)
		return nil, services.Wrap(services.ErrTransient, "generating_audio", "synthesize", "write clip", err)
	}
	if written == 0 {
		_ = os.Remove(destPath)
		return nil, services.Wrap(services.ErrMalformed, "generating_audio", "synthesize", "backend returned empty audio", nil)
	}

	clip := &Clip{Path: destPath, Voice: voice}
	if header := resp.Header.Get("X-Audio-Duration"); header != "" {
		if seconds, err := strconv.ParseFloat(header, 64); err == nil && seconds > 0 {
			clip.DurationSeconds = seconds
		}
	}
	return clip, nil
}

// Ping verifies the backend is up.
func (c *Client) Ping(ctx context.Context) error {
	endpoint, err := url.JoinPath(c.baseURL, "/api/voices")
	if err != nil {
		return fmt.Errorf("speech ping: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("speech ping: request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "", "speech_ping", "speech backend unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return classifyStatus(resp.StatusCode, "", strings.TrimSpace(string(body)))
	}
	return nil
}

func classifyStatus(status int, voice, detail string) error {
	message := fmt.Sprintf("http %d", status)
	if detail != "" {
		message += ": " + detail
	}
	switch {
	case status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		if voice != "" {
			message = fmt.Sprintf("voice %s rejected: %s", voice, message)
		}
		return services.Wrap(services.ErrVoice, "generating_audio", "synthesize", message, nil)
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return services.Wrap(services.ErrUnavailable, "generating_audio", "synthesize", message, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "generating_audio", "synthesize", message, nil)
	case status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "generating_audio", "synthesize", message, nil)
	default:
		return services.Wrap(services.ErrContent, "generating_audio", "synthesize", message, nil)
	}
}

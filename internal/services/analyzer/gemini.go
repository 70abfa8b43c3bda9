package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nativize/internal/config"
	"nativize/internal/language"
	"nativize/internal/services"
)

const (
	defaultBaseURL      = "https://generativelanguage.googleapis.com"
	defaultModel        = "gemini-2.5-flash"
	defaultPollInterval = 2 * time.Second
	defaultPollBudget   = 5 * time.Minute
)

// Client talks to a Gemini-style generative language API: it uploads
// the video, waits for server-side processing, then asks for the
// localization payload in JSON mode.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	httpClient   *http.Client
	pollInterval time.Duration
	pollBudget   time.Duration
}

// Option customizes the analyzer client.
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

// WithModel overrides the default model name.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// WithPollInterval overrides the upload processing poll cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient constructs an analyzer client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      defaultBaseURL,
		model:        defaultModel,
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		pollInterval: defaultPollInterval,
		pollBudget:   defaultPollBudget,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewClientFromConfig builds a client from the analyzer config section.
func NewClientFromConfig(cfg *config.Config) *Client {
	opts := []Option{
		WithBaseURL(cfg.Analyzer.BaseURL),
		WithModel(cfg.Analyzer.Model),
	}
	if cfg.Analyzer.TimeoutSeconds > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Analyzer.TimeoutSeconds) * time.Second,
		}))
	}
	if cfg.Analyzer.UploadPollSeconds > 0 {
		opts = append(opts, WithPollInterval(time.Duration(cfg.Analyzer.UploadPollSeconds)*time.Second))
	}
	client := NewClient(cfg.Analyzer.APIKey, opts...)
	if cfg.Analyzer.UploadWaitSeconds > 0 {
		client.pollBudget = time.Duration(cfg.Analyzer.UploadWaitSeconds) * time.Second
	}
	return client
}

// Analyze uploads the video, waits until the backend has processed it,
// and requests the localization payload for the target language.
func (c *Client) Analyze(ctx context.Context, videoPath string, target language.Language) (*Result, error) {
	if c.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "analyzing", "analyze", "analyzer api key is not set", nil)
	}

	file, err := c.uploadFile(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	file, err = c.waitForProcessing(ctx, file)
	if err != nil {
		return nil, err
	}

	payload, err := c.generate(ctx, file, buildAnalysisPrompt(target))
	if err != nil {
		return nil, err
	}
	return parseResult(payload)
}

// Ping verifies the API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	endpoint, err := url.JoinPath(c.baseURL, "/v1beta/models")
	if err != nil {
		return fmt.Errorf("analyzer ping: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?pageSize=1&key="+url.QueryEscape(c.apiKey), nil)
	if err != nil {
		return fmt.Errorf("analyzer ping: request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "", "analyzer_ping", "analyzer unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return classifyStatus(resp.StatusCode, "analyzer_ping", readBodySnippet(resp.Body))
	}
	return nil
}

type uploadedFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	State    string `json:"state"`
	MimeType string `json:"mimeType"`
}

func (c *Client) uploadFile(ctx context.Context, path string) (uploadedFile, error) {
	var empty uploadedFile

	f, err := os.Open(path)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, "analyzing", "upload_video",
			fmt.Sprintf("video file not found: %s", path), err)
	}
	defer f.Close()

	endpoint, err := url.JoinPath(c.baseURL, "/upload/v1beta/files")
	if err != nil {
		return empty, fmt.Errorf("analyzer upload: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(c.apiKey), f)
	if err != nil {
		return empty, fmt.Errorf("analyzer upload: request: %w", err)
	}
	req.Header.Set("Content-Type", mimeTypeFor(path))
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrUnavailable, "analyzing", "upload_video", "upload request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "analyzing", "upload_video", "read upload response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, classifyStatus(resp.StatusCode, "upload_video", string(body))
	}

	var decoded struct {
		File uploadedFile `json:"file"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, services.Wrap(services.ErrMalformed, "analyzing", "upload_video", "decode upload response", err)
	}
	if decoded.File.URI == "" {
		return empty, services.Wrap(services.ErrMalformed, "analyzing", "upload_video", "upload response has no file uri", nil)
	}
	if decoded.File.MimeType == "" {
		decoded.File.MimeType = mimeTypeFor(path)
	}
	return decoded.File, nil
}

// waitForProcessing polls the uploaded file until the backend reports
// it ready. Processing that fails server-side is fatal for the job.
func (c *Client) waitForProcessing(ctx context.Context, file uploadedFile) (uploadedFile, error) {
	deadline := time.Now().Add(c.pollBudget)
	for {
		switch strings.ToUpper(file.State) {
		case "ACTIVE", "SUCCEEDED", "":
			return file, nil
		case "FAILED":
			return file, services.Wrap(services.ErrContent, "analyzing", "process_video",
				"backend could not process the video", nil)
		}
		if time.Now().After(deadline) {
			return file, services.Wrap(services.ErrTimeout, "analyzing", "process_video",
				"video processing did not finish in time", nil)
		}

		select {
		case <-ctx.Done():
			return file, services.Wrap(services.ErrCancelled, "analyzing", "process_video", "cancelled", ctx.Err())
		case <-time.After(c.pollInterval):
		}

		refreshed, err := c.getFile(ctx, file.Name)
		if err != nil {
			return file, err
		}
		file = refreshed
	}
}

func (c *Client) getFile(ctx context.Context, name string) (uploadedFile, error) {
	var empty uploadedFile
	endpoint, err := url.JoinPath(c.baseURL, "/v1beta/", name)
	if err != nil {
		return empty, fmt.Errorf("analyzer poll: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?key="+url.QueryEscape(c.apiKey), nil)
	if err != nil {
		return empty, fmt.Errorf("analyzer poll: request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrUnavailable, "analyzing", "process_video", "poll request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "analyzing", "process_video", "read poll response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, classifyStatus(resp.StatusCode, "process_video", string(body))
	}
	var file uploadedFile
	if err := json.Unmarshal(body, &file); err != nil {
		return empty, services.Wrap(services.ErrMalformed, "analyzing", "process_video", "decode poll response", err)
	}
	return file, nil
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
}

type fileData struct {
	FileURI  string `json:"fileUri"`
	MimeType string `json:"mimeType,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) generate(ctx context.Context, file uploadedFile, prompt string) (string, error) {
	request := generateRequest{
		Contents: []content{{
			Parts: []part{
				{FileData: &fileData{FileURI: file.URI, MimeType: file.MimeType}},
				{Text: prompt},
			},
		}},
		GenerationConfig: &generationConfig{ResponseMimeType: "application/json"},
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("analyzer generate: encode request: %w", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, "/v1beta/models", c.model+":generateContent")
	if err != nil {
		return "", fmt.Errorf("analyzer generate: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(c.apiKey), bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("analyzer generate: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrUnavailable, "analyzing", "generate", "analyzer unreachable", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "analyzing", "generate", "read response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", classifyStatus(resp.StatusCode, "generate", string(body))
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrMalformed, "analyzing", "generate", "decode response", err)
	}
	if decoded.Error != nil {
		return "", classifyStatus(decoded.Error.Code, "generate", decoded.Error.Message)
	}
	for _, candidate := range decoded.Candidates {
		for _, p := range candidate.Content.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", services.Wrap(services.ErrMalformed, "analyzing", "generate", "response carries no text", nil)
}

// classifyStatus maps HTTP status codes onto the error taxonomy: quota
// and availability problems retry, everything else in the 4xx range is
// fatal for the request that produced it.
func classifyStatus(status int, operation, detail string) error {
	detail = strings.TrimSpace(detail)
	message := fmt.Sprintf("http %d", status)
	if detail != "" {
		message = fmt.Sprintf("http %d: %s", status, truncate(detail, 512))
	}
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return services.Wrap(services.ErrUnavailable, "analyzing", operation, message, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "analyzing", operation, message, nil)
	case status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "analyzing", operation, message, nil)
	default:
		return services.Wrap(services.ErrContent, "analyzing", operation, message, nil)
	}
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}

func readBodySnippet(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

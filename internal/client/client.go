// Package client provides HTTP access to a running nativize daemon.
// The CLI uses it for every command that needs live daemon state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"nativize/internal/api"
)

// Client talks to the daemon's HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// APIError carries the sanitized failure payload the daemon returned.
type APIError struct {
	Status    int
	Kind      string
	Message   string
	Retriable bool
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("daemon returned http %d", e.Status)
}

// New builds a client for the given daemon address. The address may be
// a bare host:port or a full URL.
func New(address, token string) *Client {
	base := strings.TrimSpace(address)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit creates a new localization job.
func (c *Client) Submit(ctx context.Context, req api.SubmitRequest) (*api.Job, error) {
	var job api.Job
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns jobs, optionally filtered by status.
func (c *Client) List(ctx context.Context, statuses ...string) ([]api.Job, error) {
	path := "/api/jobs"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, s := range statuses {
			values.Add("status", s)
		}
		path += "?" + values.Encode()
	}
	var resp api.JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Get fetches one job by id.
func (c *Client) Get(ctx context.Context, id string) (*api.Job, error) {
	var job api.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Finalize releases a reviewed job back into audio generation.
func (c *Client) Finalize(ctx context.Context, id string, edits []api.SegmentEdit) (*api.FinalizeResponse, error) {
	var resp api.FinalizeResponse
	req := api.FinalizeRequest{Edits: edits}
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/finalize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry requeues a failed job.
func (c *Client) Retry(ctx context.Context, id string) (*api.Job, error) {
	var job api.Job
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/retry", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Delete removes a job, its stored objects, and its workspace.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil)
}

// Languages lists the supported target languages.
func (c *Client) Languages(ctx context.Context) ([]api.LanguageInfo, error) {
	var resp map[string][]api.LanguageInfo
	if err := c.do(ctx, http.MethodGet, "/api/languages", nil, &resp); err != nil {
		return nil, err
	}
	return resp["languages"], nil
}

// Status retrieves the daemon runtime snapshot.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var status api.DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TestNotification asks the daemon to publish a test event.
func (c *Client) TestNotification(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/test", nil, nil)
}

// RequestUpload asks for an upload slot for a source file.
func (c *Client) RequestUpload(ctx context.Context, fileName, contentType string) (*api.UploadResponse, error) {
	var resp api.UploadResponse
	req := api.UploadRequest{FileName: fileName, ContentType: contentType}
	if err := c.do(ctx, http.MethodPost, "/api/uploads", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadFile streams the file at path to the slot's upload URL.
// Relative URLs resolve against the daemon address.
func (c *Client) UploadFile(ctx context.Context, slot *api.UploadResponse, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat source file: %w", err)
	}

	target := slot.UploadURL
	if strings.HasPrefix(target, "/") {
		target = c.baseURL + target
	}
	req, err := http.NewRequestWithContext(ctx, slot.Method, target, file)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload source file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("daemon address is not configured; set api_bind in the config or pass --address")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w (is nativized running?)", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var wire api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&wire); err == nil {
		apiErr.Kind = wire.Error.Kind
		apiErr.Message = wire.Error.Message
		apiErr.Retriable = wire.Error.Retriable
	}
	return apiErr
}

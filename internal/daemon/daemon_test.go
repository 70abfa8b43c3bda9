package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nativize/internal/api"
	"nativize/internal/config"
	"nativize/internal/logging"
	"nativize/internal/notifications"
	"nativize/internal/objectstore"
	"nativize/internal/queue"
	"nativize/internal/stage"
	"nativize/internal/testsupport"
	"nativize/internal/workflow"
)

type stubStage struct {
	name string
}

func (s stubStage) Prepare(context.Context, *queue.Job) error { return nil }
func (s stubStage) Execute(context.Context, *queue.Job) error { return nil }
func (s stubStage) HealthCheck(context.Context) stage.Health  { return stage.Healthy(s.name) }

type harness struct {
	daemon  *Daemon
	store   *queue.Store
	objects objectstore.Store
	base    string
	token   string
	source  string
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	// Keep workers idle during tests so submitted jobs stay pending.
	cfg.Workflow.QueuePollInterval = 3600
	cfg.Workflow.HeartbeatTimeout = 0

	store := testsupport.MustOpenStore(t, cfg)
	objects, err := objectstore.New(context.Background(), cfg)
	require.NoError(t, err)

	stages := workflow.Stages{
		Ingest:    stubStage{name: "ingest"},
		Analysis:  stubStage{name: "analysis"},
		Synthesis: stubStage{name: "synthesis"},
		Stitching: stubStage{name: "stitching"},
	}
	wf := workflow.NewManagerWithNotifier(cfg, store, objects, logging.NewNop(), stages, notifications.NewNop())

	d, err := New(cfg, store, objects, logging.NewNop(), wf)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)

	source := filepath.Join(testsupport.BaseDir(cfg), "festival.mp4")
	testsupport.WriteFile(t, source, 2048)

	return &harness{
		daemon:  d,
		store:   store,
		objects: objects,
		base:    "http://" + d.Addr(),
		token:   cfg.Paths.APIToken,
		source:  source,
	}
}

func (h *harness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	switch payload := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(payload)
	default:
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, h.base+path, reader)
	require.NoError(t, err)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (h *harness) submit(t *testing.T, lang string) api.Job {
	t.Helper()

	resp := h.do(t, http.MethodPost, "/api/jobs", api.SubmitRequest{
		SourcePath:     h.source,
		Title:          "Harvest Festival",
		TargetLanguage: lang,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var job api.Job
	decodeInto(t, resp, &job)
	return job
}

func TestSubmitAndFetchJob(t *testing.T) {
	h := newHarness(t)

	job := h.submit(t, "hindi")
	require.NotEmpty(t, job.ID)
	require.Equal(t, "pending", job.Status)
	require.Equal(t, 0, job.Progress)
	require.Equal(t, "hindi", job.TargetLanguage)
	require.Equal(t, "Harvest Festival", job.Title)

	resp := h.do(t, http.MethodGet, "/api/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched api.Job
	decodeInto(t, resp, &fetched)
	require.Equal(t, job.ID, fetched.ID)

	resp = h.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list api.JobListResponse
	decodeInto(t, resp, &list)
	require.Len(t, list.Jobs, 1)
}

func TestSubmitUnsupportedLanguageLeavesNoRecord(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/jobs", api.SubmitRequest{
		SourcePath:     h.source,
		TargetLanguage: "klingon",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var wire api.ErrorResponse
	decodeInto(t, resp, &wire)
	require.Equal(t, "validation", wire.Error.Kind)

	resp = h.do(t, http.MethodGet, "/api/jobs", nil)
	var list api.JobListResponse
	decodeInto(t, resp, &list)
	require.Empty(t, list.Jobs)
}

func TestUnknownJobReturnsNotFound(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/jobs/no-such-job", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var wire api.ErrorResponse
	decodeInto(t, resp, &wire)
	require.Equal(t, "not_found", wire.Error.Kind)
}

func TestFinalizeRequiresReviewState(t *testing.T) {
	h := newHarness(t)

	job := h.submit(t, "tamil")
	resp := h.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/finalize", api.FinalizeRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var wire api.ErrorResponse
	decodeInto(t, resp, &wire)
	require.Equal(t, "validation", wire.Error.Kind)
}

func TestDeleteJob(t *testing.T) {
	h := newHarness(t)

	job := h.submit(t, "bengali")

	resp := h.do(t, http.MethodDelete, "/api/jobs/"+job.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/jobs/"+job.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(t, http.MethodDelete, "/api/jobs/"+job.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLocalUploadRoundTrip(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/uploads", api.UploadRequest{FileName: "My Movie.mp4"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var slot api.UploadResponse
	decodeInto(t, resp, &slot)
	require.Equal(t, http.MethodPut, slot.Method)
	require.Contains(t, slot.UploadURL, "/api/objects/uploads/")
	require.Contains(t, slot.SourceRef, "local://uploads/")
	require.Contains(t, slot.UploadURL, "My_Movie.mp4")

	payload := []byte("pretend this is video")
	resp = h.do(t, http.MethodPut, slot.UploadURL, payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]string
	decodeInto(t, resp, &created)
	require.Equal(t, slot.SourceRef, created["sourceRef"])

	resp = h.do(t, http.MethodGet, slot.UploadURL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, payload, fetched)
}

func TestPutObjectOutsideUploadsIsForbidden(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPut, "/api/objects/jobs/some-job/output.mp4", []byte("nope"))
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLanguagesEndpoint(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/languages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var wire map[string][]api.LanguageInfo
	decodeInto(t, resp, &wire)

	codes := make([]string, 0, len(wire["languages"]))
	for _, l := range wire["languages"] {
		codes = append(codes, l.Code)
	}
	require.Contains(t, codes, "hindi")
	require.Contains(t, codes, "tamil")
	require.NotContains(t, codes, "english")
}

func TestStatusEndpoint(t *testing.T) {
	h := newHarness(t)
	h.submit(t, "telugu")

	resp := h.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status api.DaemonStatus
	decodeInto(t, resp, &status)
	require.True(t, status.Running)
	require.Positive(t, status.PID)
	require.Equal(t, 1, status.QueueStats["pending"])
	require.Len(t, status.StageHealth, 4)
	for _, health := range status.StageHealth {
		require.True(t, health.Ready, health.Name)
	}
}

func TestBearerTokenIsEnforced(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Paths.APIToken = "sekrit"
	})

	req, err := http.NewRequest(http.MethodGet, h.base+"/api/status", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/status", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSecondInstanceIsRejected(t *testing.T) {
	h := newHarness(t)

	cfg := testsupport.NewConfig(t)
	cfg.Paths.LogDir = filepath.Dir(h.daemon.lockPath)

	store := testsupport.MustOpenStore(t, cfg)
	objects, err := objectstore.New(context.Background(), cfg)
	require.NoError(t, err)
	wf := workflow.NewManagerWithNotifier(cfg, store, objects, logging.NewNop(), workflow.Stages{
		Ingest:    stubStage{name: "ingest"},
		Analysis:  stubStage{name: "analysis"},
		Synthesis: stubStage{name: "synthesis"},
		Stitching: stubStage{name: "stitching"},
	}, notifications.NewNop())

	second, err := New(cfg, store, objects, logging.NewNop(), wf)
	require.NoError(t, err)
	err = second.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "already running")
}

func TestRetryRejectsNonFailedJob(t *testing.T) {
	h := newHarness(t)

	job := h.submit(t, "marathi")
	resp := h.do(t, http.MethodPost, fmt.Sprintf("/api/jobs/%s/retry", job.ID), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

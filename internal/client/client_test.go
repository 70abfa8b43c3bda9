package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nativize/internal/api"
)

func TestSubmitSendsTokenAndDecodesJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/jobs", r.URL.Path)

		var req api.SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "hindi", req.TargetLanguage)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(api.Job{ID: "job-1", Status: "pending", TargetLanguage: "hindi"})
	}))
	defer srv.Close()

	c := New(srv.URL, "sekrit")
	job, err := c.Submit(context.Background(), api.SubmitRequest{TargetLanguage: "hindi"})
	require.NoError(t, err)
	require.Equal(t, "job-1", job.ID)
	require.Equal(t, "pending", job.Status)
}

func TestErrorPayloadBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: api.JobError{
			Kind:    "validation",
			Message: "unsupported target language",
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Submit(context.Background(), api.SubmitRequest{TargetLanguage: "klingon"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "validation", apiErr.Kind)
	require.Equal(t, "unsupported target language", apiErr.Message)
}

func TestListEncodesStatusFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.ElementsMatch(t, []string{"failed", "complete"}, r.URL.Query()["status"])
		json.NewEncoder(w).Encode(api.JobListResponse{Jobs: []api.Job{{ID: "a"}, {ID: "b"}}})
	}))
	defer srv.Close()

	jobs, err := New(srv.URL, "").List(context.Background(), "failed", "complete")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
}

func TestUploadFileResolvesRelativeURL(t *testing.T) {
	var uploaded []byte
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/objects/uploads/abc/movie.mp4", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		uploaded = body
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	source := filepath.Join(t.TempDir(), "movie.mp4")
	require.NoError(t, os.WriteFile(source, []byte("video bytes"), 0o644))

	c := New(srv.URL, "")
	slot := &api.UploadResponse{
		UploadURL: "/api/objects/uploads/abc/movie.mp4",
		SourceRef: "local://uploads/abc/movie.mp4",
		Method:    http.MethodPut,
	}
	require.NoError(t, c.UploadFile(context.Background(), slot, source))
	require.Equal(t, []byte("video bytes"), uploaded)
}

func TestMissingAddressFailsFast(t *testing.T) {
	c := New("", "")
	_, err := c.Status(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "--address")
}

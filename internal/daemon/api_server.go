package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"nativize/internal/api"
	"nativize/internal/config"
	"nativize/internal/fileutil"
	"nativize/internal/language"
	"nativize/internal/logging"
	"nativize/internal/objectstore"
	"nativize/internal/queue"
	"nativize/internal/services"
	"nativize/internal/workflow"
)

// presignTTL bounds how long a presigned upload or download URL stays
// valid.
const presignTTL = 15 * time.Minute

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", srv.auth(srv.handleSubmit))
	mux.HandleFunc("GET /api/jobs", srv.auth(srv.handleList))
	mux.HandleFunc("GET /api/jobs/{id}", srv.auth(srv.handleGet))
	mux.HandleFunc("DELETE /api/jobs/{id}", srv.auth(srv.handleDelete))
	mux.HandleFunc("POST /api/jobs/{id}/finalize", srv.auth(srv.handleFinalize))
	mux.HandleFunc("POST /api/jobs/{id}/retry", srv.auth(srv.handleRetry))
	mux.HandleFunc("POST /api/uploads", srv.auth(srv.handleUpload))
	mux.HandleFunc("PUT /api/objects/{key...}", srv.auth(srv.handlePutObject))
	mux.HandleFunc("GET /api/objects/{key...}", srv.auth(srv.handleGetObject))
	mux.HandleFunc("GET /api/languages", srv.auth(srv.handleLanguages))
	mux.HandleFunc("GET /api/status", srv.auth(srv.handleStatus))
	mux.HandleFunc("POST /api/notifications/test", srv.auth(srv.handleTestNotification))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// auth validates bearer tokens. An empty configured token disables
// authentication.
func (s *apiServer) auth(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != s.token {
			s.writeError(w, http.StatusUnauthorized, api.JobError{Kind: "unauthorized", Message: "invalid or missing token"})
			return
		}
		next(w, r)
	}
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, api.JobError{Kind: "validation", Message: "malformed request body"})
		return
	}
	job, err := s.daemon.workflow.Submit(r.Context(), workflow.SubmitRequest{
		SourcePath:     req.SourcePath,
		SourceRef:      req.SourceRef,
		Title:          req.Title,
		TargetLanguage: req.TargetLanguage,
		Voice:          req.Voice,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromJob(job))
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, raw := range r.URL.Query()["status"] {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, api.JobError{Kind: "validation", Message: fmt.Sprintf("unknown status %q", raw)})
			return
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.daemon.workflow.List(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(jobs)})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.workflow.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.workflow.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req api.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, api.JobError{Kind: "validation", Message: "malformed request body"})
		return
	}
	job, invalidated, err := s.daemon.workflow.Finalize(r.Context(), r.PathValue("id"), api.ToEdits(req.Edits))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if invalidated == nil {
		invalidated = []int{}
	}
	s.writeJSON(w, http.StatusOK, api.FinalizeResponse{Job: api.FromJob(job), InvalidatedSegments: invalidated})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	count, err := s.daemon.workflow.Retry(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if count == 0 {
		s.writeError(w, http.StatusConflict, api.JobError{Kind: "validation", Message: fmt.Sprintf("job %s is not in a failed state", id)})
		return
	}
	job, err := s.daemon.workflow.Status(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

// handleUpload hands out an upload slot for a source file. Backends
// that can presign return a direct URL; the local backend points the
// client at the daemon's own object endpoint.
func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req api.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, api.JobError{Kind: "validation", Message: "malformed request body"})
		return
	}
	name := strings.TrimSpace(req.FileName)
	if name == "" {
		s.writeError(w, http.StatusBadRequest, api.JobError{Kind: "validation", Message: "fileName is required"})
		return
	}
	ext := strings.ToLower(path.Ext(name))
	key := fmt.Sprintf("uploads/%s/%s%s", uuid.NewString(), fileutil.SafeBaseName(name), ext)

	if presigner, ok := s.daemon.objects.(objectstore.Presigner); ok {
		url, ref, err := presigner.PresignUpload(r.Context(), key, req.ContentType, presignTTL)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.UploadResponse{UploadURL: url, SourceRef: ref, Method: http.MethodPut})
		return
	}
	s.writeJSON(w, http.StatusOK, api.UploadResponse{
		UploadURL: "/api/objects/" + key,
		SourceRef: "local://" + key,
		Method:    http.MethodPut,
	})
}

func (s *apiServer) handlePutObject(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !strings.HasPrefix(key, "uploads/") {
		s.writeError(w, http.StatusForbidden, api.JobError{Kind: "validation", Message: "direct writes are limited to the uploads area"})
		return
	}
	ref, err := s.daemon.objects.Put(r.Context(), key, r.Body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"sourceRef": ref})
}

func (s *apiServer) handleGetObject(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	ref := "local://" + key
	reader, err := s.daemon.objects.Open(r.Context(), ref)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer reader.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Debug("object stream interrupted", logging.Error(err))
	}
}

func (s *apiServer) handleLanguages(w http.ResponseWriter, r *http.Request) {
	all := language.All()
	out := make([]api.LanguageInfo, 0, len(all))
	for _, l := range all {
		out = append(out, api.LanguageInfo{Code: l.Code, Display: l.Display, Native: l.Native, Locale: l.Locale})
	}
	s.writeJSON(w, http.StatusOK, map[string][]api.LanguageInfo{"languages": out})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.daemon.workflow.Health(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	stats := make(map[string]int, len(snapshot.QueueStats))
	for status, count := range snapshot.QueueStats {
		stats[string(status)] = count
	}
	health := make([]api.StageHealth, 0, len(snapshot.StageHealth))
	for _, h := range snapshot.StageHealth {
		health = append(health, api.StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:     snapshot.Running,
		PID:         os.Getpid(),
		QueueStats:  stats,
		LastError:   snapshot.LastError,
		LastJobID:   snapshot.LastJobID,
		StageHealth: health,
	})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.workflow.TestNotification(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	s.writeError(w, httpStatusFor(err), api.FromError(err))
}

func httpStatusFor(err error) int {
	switch services.Classify(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindContent:
		return http.StatusUnprocessableEntity
	case services.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("failed to encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, wire api.JobError) {
	s.writeJSON(w, status, api.ErrorResponse{Error: wire})
}

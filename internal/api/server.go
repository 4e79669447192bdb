// Package api exposes the full-pipeline HTTP endpoints: uploads land in
// object storage, rows in Postgres, and analysis jobs on the queue.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/omni-inspector/photoproof/internal/config"
	"github.com/omni-inspector/photoproof/internal/model"
	"github.com/omni-inspector/photoproof/internal/queue"
	"github.com/omni-inspector/photoproof/internal/repository"
	"github.com/omni-inspector/photoproof/internal/s3storage"
)

// Server exposes HTTP endpoints for evidence submission and visibility.
type Server struct {
	cfg    *config.Config
	repo   *repository.EvidenceRepository
	store  *s3storage.Storage
	queue  *asynq.Client
	server *http.Server
	once   sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, repo *repository.EvidenceRepository, store *s3storage.Storage, queueClient *asynq.Client) *Server {
	return &Server{
		cfg:   cfg,
		repo:  repo,
		store: store,
		queue: queueClient,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", s.handleHealth)
		mux.HandleFunc("/evidence", s.handleEvidence)
		mux.HandleFunc("/evidence/", s.handleEvidenceRoute)
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: corsMiddleware(loggingMiddleware(mux)),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	slog.Info("api listening", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvidence(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleEvidenceRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/evidence/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleEvidenceInfo(w, r, id)
		return
	}
	switch parts[1] {
	case "result":
		s.handleResult(w, r, id)
	case "report-url":
		s.handleReportURL(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleEvidenceInfo(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ev, err := s.repo.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "evidence not found", http.StatusNotFound)
		return
	}
	// The full result document has its own endpoint.
	ev.Result = nil
	respondJSON(w, http.StatusOK, ev)
}

// handleResult returns the forensic result document. Both verdicts are 200s;
// callers branch on is_authentic, never on the HTTP status.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ev, err := s.repo.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "evidence not found", http.StatusNotFound)
		return
	}
	if ev.Result == nil {
		http.Error(w, "analysis not finished", http.StatusAccepted)
		return
	}
	respondJSON(w, http.StatusOK, ev.Result)
}

func (s *Server) handleReportURL(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ev, err := s.repo.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "evidence not found", http.StatusNotFound)
		return
	}
	if ev.ReportKey == nil {
		http.Error(w, "report unavailable", http.StatusNotFound)
		return
	}
	url, err := s.store.PresignReportURL(r.Context(), *ev.ReportKey, s.cfg.SignedURLTTL)
	if err != nil {
		http.Error(w, "failed to generate url", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	form, err := readUploadForm(mr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer form.cleanup()
	if !s.allowedType(form.contentType) {
		http.Error(w, fmt.Sprintf("content type %s not allowed", form.contentType), http.StatusBadRequest)
		return
	}
	if form.size > s.cfg.MaxFileSize {
		http.Error(w, fmt.Sprintf("file exceeds limit (%d bytes)", s.cfg.MaxFileSize), http.StatusBadRequest)
		return
	}

	evidenceID := uuid.NewString()
	caseID := form.caseID
	if caseID == "" {
		caseID = evidenceID
	}
	objectKey := s3storage.EvidenceKey(caseID, form.filename, time.Now())
	if err := s.uploadToStorage(ctx, objectKey, form); err != nil {
		slog.Error("upload to storage failed", "error", err)
		http.Error(w, "failed to store evidence", http.StatusInternalServerError)
		return
	}
	ev := &repository.Evidence{
		ID:          evidenceID,
		FileName:    form.filename,
		ObjectKey:   objectKey,
		CaseID:      caseID,
		InspectorID: form.inspectorID,
	}
	if err := s.repo.Create(ctx, ev); err != nil {
		http.Error(w, "failed to store metadata", http.StatusInternalServerError)
		return
	}
	payload := queue.AnalyzePayload{
		EvidenceID: evidenceID,
		ObjectKey:  objectKey,
		FileName:   form.filename,
	}
	if err := queue.EnqueueAnalyze(ctx, s.queue, payload); err != nil {
		http.Error(w, "failed to queue analysis", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":      evidenceID,
		"case_id": caseID,
		"status":  string(model.StatusQueued),
	})
}

// uploadForm is the parsed multipart submission: the image spooled to a temp
// file plus the optional case/inspector identity fields.
type uploadForm struct {
	f           *os.File
	path        string
	size        int64
	contentType string
	filename    string
	caseID      string
	inspectorID string
}

func (u *uploadForm) cleanup() {
	u.f.Close()
	os.Remove(u.path)
}

func readUploadForm(mr *multipart.Reader) (*uploadForm, error) {
	form := &uploadForm{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read form: %w", err)
		}
		switch part.FormName() {
		case "file":
			if form.f != nil {
				part.Close()
				continue
			}
			if err := form.spoolFile(part); err != nil {
				part.Close()
				return nil, err
			}
		case "case_id":
			form.caseID = readFormValue(part)
		case "inspector_id":
			form.inspectorID = readFormValue(part)
		}
		part.Close()
	}
	if form.f == nil {
		return nil, errors.New("missing file part")
	}
	return form, nil
}

func (u *uploadForm) spoolFile(part *multipart.Part) error {
	tmp, err := os.CreateTemp("", "photoproof-*.img")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	var sniff []byte
	buf := make([]byte, 32*1024)
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			u.size += int64(n)
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmp.Write(buf[:n]); err != nil {
				tmp.Close()
				os.Remove(tmp.Name())
				return fmt.Errorf("write temp file: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("read file: %w", readErr)
		}
	}
	if u.size == 0 {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.New("empty file")
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("rewind temp file: %w", err)
	}
	u.f = tmp
	u.path = tmp.Name()
	u.contentType = http.DetectContentType(sniff)
	u.filename = part.FileName()
	if u.filename == "" {
		u.filename = "upload.jpg"
	}
	return nil
}

func readFormValue(part *multipart.Part) string {
	data, err := io.ReadAll(io.LimitReader(part, 1024))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Server) uploadToStorage(ctx context.Context, objectKey string, form *uploadForm) error {
	if _, err := form.f.Seek(0, 0); err != nil {
		return err
	}
	return s.store.UploadEvidence(ctx, objectKey, form.f, form.size, form.contentType)
}

func (s *Server) allowedType(contentType string) bool {
	for _, allowed := range s.cfg.AllowedTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode json response", "error", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

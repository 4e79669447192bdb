// Package server is the standalone single-binary mode: uploads land on local
// disk, records live in the in-memory store, analyses run on the in-process
// pool, and finished reports are served through HMAC-signed links. No
// Postgres, Redis or object storage required.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/omni-inspector/photoproof/internal/config"
	"github.com/omni-inspector/photoproof/internal/model"
	"github.com/omni-inspector/photoproof/internal/processing"
	"github.com/omni-inspector/photoproof/internal/signing"
	"github.com/omni-inspector/photoproof/internal/storage"
)

// Server stitches together configuration, the evidence store, the analysis
// pool and the signing helper.
type Server struct {
	cfg       *config.Config
	store     *storage.MemoryStore
	processor *processing.Processor
	signer    *signing.Signer
	uploadDir string
	once      sync.Once
}

// New creates a configured server and its upload directory.
func New(cfg *config.Config, store *storage.MemoryStore, processor *processing.Processor, signer *signing.Signer) (*Server, error) {
	dir := filepath.Join(os.TempDir(), "photoproof")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return &Server{
		cfg:       cfg,
		store:     store,
		processor: processor,
		signer:    signer,
		uploadDir: dir,
	}, nil
}

// Serve launches the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.once.Do(func() {
		s.processor.Start(ctx)
	})
	httpServer := &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/report", s.handleReport)
	mux.HandleFunc("/evidence/", s.handleEvidenceRoute)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	var saved *model.EvidenceRecord
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			http.Error(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		record, err := s.persistPart(part)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		saved = record
		break
	}
	if saved == nil {
		http.Error(w, "missing file part", http.StatusBadRequest)
		return
	}
	_ = s.store.UpdateStatus(saved.ID, model.StatusQueued, "queued for analysis")
	s.processor.Submit(processing.Job{EvidenceID: saved.ID, Path: saved.Path})
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     saved.ID,
		"status": string(model.StatusQueued),
	})
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
	if parts[1] == "report-link" {
		s.handleReportLink(w, r, id)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleEvidenceInfo(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	record, err := s.store.Get(id)
	if err != nil {
		http.Error(w, "evidence not found", http.StatusNotFound)
		return
	}
	record.Path = ""
	respondJSON(w, http.StatusOK, record)
}

// handleReportLink issues a short-lived signed link to the forensic report.
func (s *Server) handleReportLink(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	record, err := s.store.Get(id)
	if err != nil {
		http.Error(w, "evidence not found", http.StatusNotFound)
		return
	}
	if record.Result == nil {
		http.Error(w, "analysis not finished", http.StatusAccepted)
		return
	}
	expiry := time.Now().Add(s.cfg.SignedURLTTL).Unix()
	signature := s.signer.Sign(id, expiry)
	link := &urlBuilder{
		base: "/report",
		params: map[string]string{
			"evidence":  id,
			"expires":   strconv.FormatInt(expiry, 10),
			"signature": signature,
		},
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"url":     link.String(),
		"expires": strconv.FormatInt(expiry, 10),
	})
}

// handleReport serves the forensic report JSON after verifying the link.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("evidence")
	expires := r.URL.Query().Get("expires")
	signature := r.URL.Query().Get("signature")
	if id == "" || expires == "" || signature == "" {
		http.Error(w, "missing parameters", http.StatusBadRequest)
		return
	}
	expiryUnix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		http.Error(w, "invalid expires", http.StatusBadRequest)
		return
	}
	if time.Unix(expiryUnix, 0).Before(time.Now()) {
		http.Error(w, "url expired", http.StatusUnauthorized)
		return
	}
	if !s.signer.Validate(id, expires, signature) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	record, err := s.store.Get(id)
	if err != nil {
		http.Error(w, "evidence not found", http.StatusNotFound)
		return
	}
	if record.Result == nil {
		http.Error(w, "analysis not finished", http.StatusAccepted)
		return
	}
	respondJSON(w, http.StatusOK, record.Result)
}

func (s *Server) persistPart(part *multipart.Part) (*model.EvidenceRecord, error) {
	defer part.Close()
	evidenceID := randomID()
	path := filepath.Join(s.uploadDir, evidenceID)
	dst, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer dst.Close()
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.cfg.MaxFileSize {
				os.Remove(path)
				return nil, errors.New("file exceeds limit")
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				os.Remove(path)
				return nil, err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			os.Remove(path)
			return nil, readErr
		}
	}
	if written == 0 {
		os.Remove(path)
		return nil, errors.New("empty file")
	}
	contentType := http.DetectContentType(sniff)
	if !s.allowedType(contentType) {
		os.Remove(path)
		return nil, errors.New("file type not allowed")
	}
	name := part.FileName()
	if name == "" {
		name = "upload-" + evidenceID
	}
	record := &model.EvidenceRecord{
		ID:          evidenceID,
		Name:        name,
		Size:        written,
		ContentType: contentType,
		Path:        path,
		Status:      model.StatusUploaded,
	}
	s.store.Save(record)
	return record, nil
}

func (s *Server) allowedType(contentType string) bool {
	for _, allowed := range s.cfg.AllowedTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

func randomID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}

type urlBuilder struct {
	base   string
	params map[string]string
}

func (u *urlBuilder) String() string {
	q := make([]string, 0, len(u.params))
	for k, v := range u.params {
		q = append(q, k+"="+url.QueryEscape(v))
	}
	return u.base + "?" + strings.Join(q, "&")
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		slog.Error("encode json response", "error", err)
	}
}

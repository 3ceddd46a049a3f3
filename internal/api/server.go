// Package api exposes the HTTP endpoints for document intake, address
// verification and status tracking.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/taxlakay/taxdrop/internal/address"
	"github.com/taxlakay/taxdrop/internal/config"
	"github.com/taxlakay/taxdrop/internal/drive"
	"github.com/taxlakay/taxdrop/internal/ledger"
	"github.com/taxlakay/taxdrop/internal/queue"
	"github.com/taxlakay/taxdrop/internal/repository"
)

// Server wires the intake routes to their collaborators.
type Server struct {
	cfg        *config.Config
	reconciler *address.Reconciler
	ledger     *ledger.Ledger
	repo       *repository.SubmissionRepository
	drive      *drive.Drive
	queue      *asynq.Client
	log        *logrus.Logger
	server     *http.Server
	once       sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, rec *address.Reconciler, led *ledger.Ledger, repo *repository.SubmissionRepository, dr *drive.Drive, queueClient *asynq.Client, log *logrus.Logger) *Server {
	return &Server{
		cfg:        cfg,
		reconciler: rec,
		ledger:     led,
		repo:       repo,
		drive:      dr,
		queue:      queueClient,
		log:        log,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/health", s.handleHealth)
		mux.HandleFunc("/api/upload", s.handleUpload)
		mux.HandleFunc("/api/verify-address", s.handleVerifyAddress)
		mux.HandleFunc("/api/progress", s.handleProgress)
		mux.HandleFunc("/api/admin/progress", s.handleAdminProgress)
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: corsMiddleware(s.cfg.AllowOrigin, loggingMiddleware(s.log, mux)),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.WithField("addr", s.cfg.Address).Info("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"email":    s.cfg.EmailConfigured(),
		"provider": s.cfg.ProviderConfigured(),
		"receipt":  s.cfg.SendClientReceipt,
	})
}

// handleVerifyAddress reconciles a free-text address against the
// verification provider. The response always carries the popup fields;
// failures inside verification are domain outcomes, not HTTP errors.
func (s *Server) handleVerifyAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, address.Result{ShowBox: true, Message: "Missing address"})
		return
	}
	entered := strings.TrimSpace(body.Address)
	if entered == "" {
		respondJSON(w, http.StatusBadRequest, address.Result{ShowBox: true, Message: "Missing address"})
		return
	}
	respondJSON(w, http.StatusOK, s.reconciler.Verify(r.Context(), entered))
}

// handleProgress is the public, unauthenticated status lookup.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ref := ledger.CanonicalRef(r.URL.Query().Get("ref"))
	if ref == "" {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "missing ref"})
		return
	}
	rec, err := s.ledger.Get(r.Context(), ref)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "ref": ref, "found": false})
			return
		}
		s.log.WithError(err).WithField("ref", ref).Error("status lookup failed")
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": "status lookup failed"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"ref":       ref,
		"found":     true,
		"status":    rec.Stage,
		"note":      rec.Note,
		"updatedAt": rec.UpdatedAt,
	})
}

// handleAdminProgress is the privileged status write. The bearer token is
// checked by the ledger itself so no mutation can precede authorization.
func (s *Server) handleAdminProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := bearerToken(r)
	var body struct {
		Ref   string `json:"ref"`
		Stage string `json:"stage"`
		Note  string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "invalid body"})
		return
	}
	rec, err := s.ledger.Upsert(r.Context(), body.Ref, ledger.Stage(body.Stage), body.Note, token)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrUnauthorized):
			respondJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "unauthorized"})
		case errors.Is(err, ledger.ErrInvalidArgument):
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": err.Error()})
		default:
			s.log.WithError(err).WithField("ref", body.Ref).Error("status write failed")
			respondJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": "status write failed"})
		}
		return
	}

	ref := ledger.CanonicalRef(body.Ref)
	// Post-condition hook: tell the client their status moved. Best-effort;
	// the write already succeeded.
	if s.queue != nil {
		payload := queue.StatusPayload{Ref: ref, Stage: string(rec.Stage), Note: rec.Note}
		if err := queue.EnqueueStatusEmail(r.Context(), s.queue, payload); err != nil {
			s.log.WithError(err).WithField("ref", ref).Warn("status notification enqueue failed")
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"ref":       ref,
		"status":    rec.Stage,
		"note":      rec.Note,
		"updatedAt": rec.UpdatedAt,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxTotalSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "expecting multipart form"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	files := r.MultipartForm.File["documents"]
	if len(files) == 0 {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "No files received."})
		return
	}
	if len(files) > s.cfg.MaxFiles {
		respondJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{"ok": false, "error": "Too many files."})
		return
	}

	ref := ledger.CanonicalRef(uuid.NewString())
	var (
		manifest []repository.StoredFile
		total    int64
	)
	for _, fh := range files {
		if fh.Size > s.cfg.MaxFileSize {
			respondJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{"ok": false, "error": fh.Filename + " is too large."})
			return
		}
		total += fh.Size
		if total > s.cfg.MaxTotalSize {
			respondJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{"ok": false, "error": "Total upload size too large."})
			return
		}
		contentType, err := s.storeFile(ctx, ref, fh)
		if err != nil {
			s.log.WithError(err).WithField("ref", ref).Error("store upload failed")
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": err.Error()})
			return
		}
		manifest = append(manifest, repository.StoredFile{
			Name:        filepath.Base(fh.Filename),
			ObjectKey:   drive.ObjectKey(ref, filepath.Base(fh.Filename)),
			Size:        fh.Size,
			ContentType: contentType,
		})
	}

	sub := &repository.Submission{
		Ref:           ref,
		ClientName:    strings.TrimSpace(r.FormValue("clientName")),
		ClientEmail:   strings.ToLower(strings.TrimSpace(r.FormValue("clientEmail"))),
		ClientPhone:   strings.TrimSpace(r.FormValue("clientPhone")),
		ReturnType:    strings.TrimSpace(r.FormValue("returnType")),
		Dependents:    strings.TrimSpace(r.FormValue("dependents")),
		ClientMessage: strings.TrimSpace(r.FormValue("clientMessage")),
		Files:         manifest,
	}
	if sub.Dependents == "" {
		sub.Dependents = "0"
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		s.log.WithError(err).WithField("ref", ref).Error("persist submission failed")
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": "failed to store submission"})
		return
	}
	if _, err := s.ledger.Initialize(ctx, ref); err != nil {
		s.log.WithError(err).WithField("ref", ref).Error("initialize status failed")
	}

	s.enqueueFollowups(ctx, sub, r.FormValue("wantsReceipt"))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"ref":         ref,
		"clientName":  sub.ClientName,
		"clientEmail": sub.ClientEmail,
		"files":       fileNames(manifest),
	})
}

// storeFile sniffs the real content type and streams one upload into the
// drive folder for ref.
func (s *Server) storeFile(ctx context.Context, ref string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", errors.New("could not read " + fh.Filename)
	}
	defer f.Close()

	sniff := make([]byte, 512)
	n, err := io.ReadFull(f, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", errors.New("could not read " + fh.Filename)
	}
	if n == 0 {
		return "", errors.New(fh.Filename + " is empty")
	}
	contentType := http.DetectContentType(sniff[:n])
	if !s.typeAllowed(contentType) {
		return "", errors.New("Disallowed type: " + contentType + ". Allowed: PDF, JPG, PNG")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", errors.New("could not rewind " + fh.Filename)
	}
	key := drive.ObjectKey(ref, filepath.Base(fh.Filename))
	if err := s.drive.Upload(ctx, key, f, fh.Size, contentType); err != nil {
		return "", errors.New("failed to store " + fh.Filename)
	}
	return contentType, nil
}

func (s *Server) typeAllowed(contentType string) bool {
	for _, t := range s.cfg.AllowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

// enqueueFollowups schedules the owner email, optional client receipt and
// the submission log entry. Enqueue failures are logged, not fatal: the
// documents are already stored and the status record exists.
func (s *Server) enqueueFollowups(ctx context.Context, sub *repository.Submission, wantsReceipt string) {
	if s.queue == nil {
		return
	}
	if err := queue.EnqueueSubmission(ctx, s.queue, queue.OwnerEmailTask, sub.Ref); err != nil {
		s.log.WithError(err).WithField("ref", sub.Ref).Warn("owner email enqueue failed")
	}
	receipt := s.cfg.SendClientReceipt && sub.ClientEmail != "" && !strings.EqualFold(wantsReceipt, "false")
	if receipt {
		if err := queue.EnqueueSubmission(ctx, s.queue, queue.ReceiptEmailTask, sub.Ref); err != nil {
			s.log.WithError(err).WithField("ref", sub.Ref).Warn("receipt enqueue failed")
		}
	}
	if err := queue.EnqueueSubmission(ctx, s.queue, queue.LogSubmissionTask, sub.Ref); err != nil {
		s.log.WithError(err).WithField("ref", sub.Ref).Warn("submission log enqueue failed")
	}
}

func fileNames(files []repository.StoredFile) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Warn("encode response")
	}
}

func corsMiddleware(allowOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(log *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"examcal/internal/apperr"
	"examcal/internal/config"
	"examcal/internal/ics"
	appLog "examcal/internal/log"
	"examcal/internal/sheet"
	"examcal/internal/store"
)

// Server exposes the exam search and calendar export API.
type Server struct {
	cfg       *config.Config
	repo      *sheet.Repository
	extractor *sheet.Extractor
	store     store.Store
	builder   ics.Builder
	encoder   *ics.Encoder
	router    chi.Router
}

// embeddedStatic holds the single-page UI served at /.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer wires handlers over the given repository and download store.
// st may be nil, in which case generated files are never persisted.
func NewServer(cfg *config.Config, repo *sheet.Repository, ex *sheet.Extractor, st store.Store) *Server {
	s := &Server{
		cfg:       cfg,
		repo:      repo,
		extractor: ex,
		store:     st,
		builder: ics.Builder{
			AlarmLead: cfg.AlarmLead(),
			Category:  cfg.Calendar.Category,
		},
		encoder: &ics.Encoder{
			ProductID:    cfg.Calendar.ProductID,
			IOSProductID: cfg.Calendar.IOSProductID,
			UIDDomain:    cfg.Calendar.UIDDomain,
		},
		router: chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server on cfg.Listen until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors)

	r.Get("/health", s.handleHealth)
	r.Post("/search-by-class-id", s.handleSearch)
	r.Post("/generate-ics", s.handleGenerate)
	r.Get("/download-ics/{fileId}", s.handleDownload)
	r.With(s.basicAuth).Post("/upload-excel", s.handleUpload)

	r.Get("/*", s.staticFileServer().ServeHTTP)
}

// cors opens every endpoint to any origin. Preflight requests are answered
// here, before routing.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-File-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		appLog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond).String(),
		)
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuth guards administrative endpoints when credentials are configured.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	if !s.basicAuthEnabled() {
		return next
	}
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="examcal", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "未授权")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}
	return http.FileServer(http.FS(sub))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// writeAppError maps a classified error to its status code. Unexpected
// errors are logged and answered with fallback only.
func writeAppError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "path", r.URL.Path, "kind", kind)
	} else {
		appLog.Debug("request rejected", "path", r.URL.Path, "kind", kind, "reason", err.Error())
	}

	msg := apperr.PublicMessage(err, fallback)
	var mte *ics.MalformedTimeError
	if errors.As(err, &mte) {
		msg = fmt.Sprintf("第 %d 条考试的%s不完整或格式错误", mte.Index+1, fieldLabel(mte.Field))
	}
	writeError(w, status, msg)
}

func fieldLabel(field string) string {
	switch field {
	case "date":
		return "日期"
	case "startTime":
		return "开始时间"
	case "endTime":
		return "结束时间"
	}
	return field
}

// writeCalendar sends ICS bytes with exact framing.
func writeCalendar(w http.ResponseWriter, body []byte, inline bool, fileID string) {
	h := w.Header()
	h.Set("Content-Type", "text/calendar; charset=utf-8")
	if inline {
		h.Set("Content-Disposition", "inline; filename=exams.ics")
	} else {
		h.Set("Content-Disposition", "attachment; filename=exams.ics")
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	if fileID != "" {
		h.Set("X-File-Id", fileID)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

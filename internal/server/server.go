// Package server exposes extraction over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ppiankov/nesach/internal/model"
	"github.com/ppiankov/nesach/internal/pipeline"
	"github.com/ppiankov/nesach/internal/storage"
	"github.com/ppiankov/nesach/internal/validate"
	"github.com/ppiankov/nesach/internal/worker"
)

// maxUpload caps PDF bodies posted directly to the API
const maxUpload = 64 << 20

// Server serves the extraction API
type Server struct {
	cfg       model.ServerConfig
	processor worker.Processor
	logger    *zap.Logger
	version   string
	http      *http.Server
}

// New creates a server. processor handles each extraction request.
func New(cfg model.ServerConfig, processor worker.Processor, logger *zap.Logger, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, processor: processor, logger: logger, version: version}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Group(func(api chi.Router) {
		if s.cfg.JWTSecret != "" {
			api.Use(BearerAuth([]byte(s.cfg.JWTSecret)))
		}
		api.Post("/v1/extract", s.handleExtract)
	})
	return r
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("shutting down http server")
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

type extractRequest struct {
	Source string `json:"source"`
}

// handleExtract accepts either {"source": "s3://bucket/key"} or a raw
// application/pdf body, which is spooled to a temp file first. Local paths
// in JSON bodies are refused.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var source string
	switch mediaType {
	case "application/pdf":
		path, cleanup, err := spool(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
		defer cleanup()
		source = path
	default:
		var req extractRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", "")
			return
		}
		if req.Source == "" {
			writeError(w, http.StatusBadRequest, "source is required", "")
			return
		}
		ref, err := storage.ParseRef(req.Source)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "input")
			return
		}
		// Server-side files are reachable only through an upload
		if ref.IsLocal() {
			writeError(w, http.StatusBadRequest, "source must be an s3:// reference or an application/pdf upload", "input")
			return
		}
		source = ref.String()
	}

	rec, err := s.processor.Process(r.Context(), source)
	if err != nil {
		status, kind := classify(err)
		s.logger.Warn("extraction failed",
			zap.String("source", source),
			zap.String("subject", Subject(r.Context())),
			zap.Error(err))
		writeError(w, status, err.Error(), kind)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// classify maps pipeline errors to an HTTP status and rejection kind
func classify(err error) (int, string) {
	if rej, ok := validate.IsRejection(err); ok {
		return http.StatusUnprocessableEntity, string(rej.Kind)
	}
	switch {
	case errors.Is(err, pipeline.ErrLoad):
		return http.StatusBadRequest, "load"
	case errors.Is(err, pipeline.ErrParse):
		return http.StatusUnprocessableEntity, "parse"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ""
	default:
		return http.StatusInternalServerError, ""
	}
}

func spool(body io.Reader) (string, func(), error) {
	dir, err := os.MkdirTemp("", "nesach-upload-")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, "upload.pdf")
	f, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(body, maxUpload+1))
	_ = f.Close()
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("read body: %w", err)
	}
	if n > maxUpload {
		cleanup()
		return "", nil, fmt.Errorf("body exceeds %d bytes", maxUpload)
	}
	return path, cleanup, nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

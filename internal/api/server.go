// Package api exposes the pipeline over HTTP for scanner integrations that
// push recognizer output instead of dropping files.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/fetcher"
	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/pipeline"
	"github.com/sells-group/intake-cli/internal/store"
)

// Server is the HTTP surface over the intake pipeline.
type Server struct {
	router chi.Router
	pipe   *pipeline.Pipeline
	store  store.Store
}

// NewServer creates and configures the server.
func NewServer(pipe *pipeline.Pipeline, st store.Store) *Server {
	s := &Server{pipe: pipe, store: st}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/api/ingest", s.handleIngest)
	r.Get("/api/results", s.handleListResults)
	r.Get("/api/results/{resultID}", s.handleGetResult)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	file, err := fetcher.Decode(r.Body, "upload")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := s.pipe.ProcessFile(r.Context(), *file)
	if err != nil {
		zap.L().Error("api: ingest failed", zap.String("file_id", file.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	// HTTP responses stay bounded by default; explicit limit=0 means all.
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			limit = v
		}
	}
	filter := store.ResultFilter{
		Action: model.PolicyAction(r.URL.Query().Get("action")),
		FileID: r.URL.Query().Get("file_id"),
		Limit:  limit,
	}
	results, err := s.store.ListResults(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list results failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	if results == nil {
		results = []model.BlockResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "resultID")
	result, err := s.store.GetResult(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

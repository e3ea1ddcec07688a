package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"

	"github.com/pep299/news-analyzer/internal/analysis"
	"github.com/pep299/news-analyzer/internal/config"
	"github.com/pep299/news-analyzer/internal/history"
	"github.com/pep299/news-analyzer/internal/logging"
	"github.com/pep299/news-analyzer/internal/model"
	"github.com/pep299/news-analyzer/internal/models"
)

// Version is reported by the health endpoint and the CLIs
var Version = "v1.0.0"

// Analyzer runs the analysis pipeline for one URL
type Analyzer interface {
	Run(ctx context.Context, rawURL string, opts analysis.Options, extra ...analysis.Observer) (*model.AnalysisResult, error)
}

// HistoryStore remembers recent analyses
type HistoryStore interface {
	Add(ctx context.Context, result model.AnalysisResult) error
	Get(ctx context.Context, id string) (*history.Entry, error)
	Recent(ctx context.Context) []history.Entry
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*history.Stats, error)
}

// Notifier shares an analysis outside the service
type Notifier interface {
	SendAnalysis(ctx context.Context, result model.AnalysisResult) error
}

// ModelRegistry reports the configured models
type ModelRegistry interface {
	Info() []models.Info
}

// Server holds the HTTP handlers and their dependencies
type Server struct {
	config    *config.Config
	analyzer  Analyzer
	history   HistoryStore
	models    ModelRegistry
	notifier  Notifier
	logger    *slog.Logger
	templates *template.Template
	started   time.Time
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, analyzer Analyzer, store HistoryStore, registry ModelRegistry, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	return &Server{
		config:    cfg,
		analyzer:  analyzer,
		history:   store,
		models:    registry,
		logger:    logger,
		templates: templates,
		started:   time.Now(),
	}, nil
}

// SetNotifier enables sharing analyses through n
func (s *Server) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	// Web UI
	r.HandleFunc("/", s.indexHandler).Methods("GET")
	r.HandleFunc("/analyze", s.analyzeFormHandler).Methods("POST")

	// API routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.corsMiddleware)

	// Health check
	api.HandleFunc("/health", s.healthHandler).Methods("GET")

	// Analysis
	api.HandleFunc("/analyze", s.analyzeHandler).Methods("POST", "OPTIONS")

	// History operations
	api.HandleFunc("/history", s.historyHandler).Methods("GET")
	api.HandleFunc("/history", s.historyClearHandler).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/history/{id}", s.historyEntryHandler).Methods("GET")
	api.HandleFunc("/history/{id}", s.historyDeleteHandler).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/history/{id}/share", s.shareHandler).Methods("POST", "OPTIONS")

	// Status and configuration
	api.HandleFunc("/models", s.modelsHandler).Methods("GET")
	api.HandleFunc("/config", s.configHandler).Methods("GET")

	return r
}

// Middleware functions

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start))
	})
}

// recoverMiddleware turns a handler panic into a 500 response
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				s.logger.Error("handler panicked",
					"path", r.URL.Path,
					"error", err,
					"stack", string(debug.Stack()))
				logging.Capture(r.Context(), err, map[string]string{"path": r.URL.Path})
				WriteInternalError(w, "내부 서버 오류가 발생했습니다.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

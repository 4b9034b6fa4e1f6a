package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/analysis"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/storage"
)

const serviceName = "safetymonkey-inspector"

// AnalysisService is what the HTTP API needs from analysis.Service.
type AnalysisService interface {
	AnalyzeImage(ctx context.Context, upload analysis.Upload) (*models.Analysis, error)
	Get(ctx context.Context, id string) (*models.Analysis, error)
	List(ctx context.Context, limit int) ([]models.Analysis, error)
}

type Options struct {
	MaxUploadBytes  int64
	UploadRateLimit int // uploads per minute per client IP; 0 disables
}

type Server struct {
	service    AnalysisService
	live       http.Handler
	opts       Options
	logger     *zap.SugaredLogger
	started    time.Time
	httpServer *http.Server // Store server instance for graceful shutdown
}

// NewServer builds the API. live may be nil when streaming is disabled.
func NewServer(service AnalysisService, live http.Handler, opts Options, logger *zap.SugaredLogger) *Server {
	return &Server{
		service: service,
		live:    live,
		opts:    opts,
		logger:  logger,
		started: time.Now(),
	}
}

// Handler returns the routed API wrapped in CORS.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()

	upload := httprouter.Handle(s.handleAnalyze)
	if s.opts.UploadRateLimit > 0 {
		limited := httprate.Limit(s.opts.UploadRateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
		upload = func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				s.handleAnalyze(w, r, params)
			})).ServeHTTP(w, r)
		}
	}

	router.GET("/", s.handleStatus)
	router.POST("/api/v1/image-analysis/analyze", upload)
	router.GET("/api/v1/image-analysis", s.handleList)
	router.GET("/api/v1/image-analysis/:id", s.handleGet)
	if s.live != nil {
		router.Handler(http.MethodGet, "/api/v1/live", s.live)
	}

	return s.enableCORS(s.logRequests(router))
}

func (s *Server) Start(addr string) error {
	// Store server instance for graceful shutdown
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("HTTP Server listening on: %s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with a timeout.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	s.logger.Info("HTTP server stopped successfully")
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": serviceName,
		"status":  "running",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	result, err := s.service.Get(r.Context(), params.ByName("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := s.service.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if results == nil {
		results = []models.Analysis{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": results,
		"count":    len(results),
	})
}

// writeServiceError maps service errors onto status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analysis.ErrDetection):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, analysis.ErrDetectorsUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, models.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.logger.Errorw("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugw("Handled request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

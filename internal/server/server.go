package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"stationcast/internal/dataset"
	"stationcast/internal/pipeline"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	source      dataset.Source
	modelPath   string
	windowHours float64
	logger      *zap.Logger
	mux         *http.ServeMux
	httpServer  *http.Server

	mu      sync.Mutex
	bundle  *pipeline.Bundle
	modTime time.Time
}

// NewServer creates a new HTTP server reading from src and serving the
// bundle at modelPath. windowHours is the default loading window.
func NewServer(src dataset.Source, modelPath string, windowHours float64, logger *zap.Logger) *Server {
	s := &Server{
		source:      src,
		modelPath:   modelPath,
		windowHours: windowHours,
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	// Register routes
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/predictions/latest", s.handleLatestPrediction)
	s.mux.HandleFunc("/model/metrics", s.handleModelMetrics)
	s.mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler exposes the routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// currentBundle reloads the bundle whenever the file on disk changes.
func (s *Server) currentBundle() (*pipeline.Bundle, error) {
	info, err := os.Stat(s.modelPath)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bundle != nil && info.ModTime().Equal(s.modTime) {
		return s.bundle, nil
	}
	b, err := pipeline.LoadBundle(s.modelPath)
	if err != nil {
		return nil, err
	}
	s.bundle, s.modTime = b, info.ModTime()
	s.logger.Info("Loaded model bundle",
		zap.String("path", s.modelPath),
		zap.String("run_id", b.RunID),
		zap.Int("models", b.ModelCount()))
	return b, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to encode response", zap.Error(err))
	}
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().String(),
	})
}

// handleLatestPrediction runs a prediction over the current data. The
// optional hours parameter overrides the loading window.
func (s *Server) handleLatestPrediction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hours := s.windowHours
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		h, err := strconv.ParseFloat(hoursStr, 64)
		if err != nil {
			http.Error(w, "hours must be a number", http.StatusBadRequest)
			return
		}
		hours = h
	}

	b, err := s.currentBundle()
	if err != nil {
		s.logger.Warn("Model bundle unavailable", zap.String("path", s.modelPath), zap.Error(err))
		http.Error(w, "model bundle unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	ds, err := dataset.Load(r.Context(), s.source, pipeline.Window(hours, time.Now()), s.logger)
	if err != nil {
		s.logger.Error("Failed to load data", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	pred := (&pipeline.Predictor{Bundle: b, ModelPath: s.modelPath}).Predict(ds)
	s.writeJSON(w, http.StatusOK, pred)
}

// handleModelMetrics returns the training metrics of the current bundle
func (s *Server) handleModelMetrics(w http.ResponseWriter, r *http.Request) {
	b, err := s.currentBundle()
	if err != nil {
		http.Error(w, "model bundle unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runId":       b.RunID,
		"trainedAtMs": b.TrainedAtMs,
		"horizons":    b.Horizons.Keys(),
		"models":      b.ModelCount(),
		"metrics":     b.Metrics,
		"skipped":     b.Skipped,
	})
}

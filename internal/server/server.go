// Package server exposes the churn predictor over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/churn-features/internal/dataset"
	"github.com/rcliao/churn-features/internal/encode"
	"github.com/rcliao/churn-features/internal/pipeline"
	"github.com/rcliao/churn-features/internal/schema"
	"github.com/rcliao/churn-features/internal/validate"
)

// maxBodyBytes caps /predict request bodies.
const maxBodyBytes = 10 << 20

// Config holds configuration for the server.
type Config struct {
	Predictor       *pipeline.Predictor
	Schemas         *schema.Holder
	Addr            string
	Watch           bool // reload the schema and model when either changes
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server serves /health, /predict, /schema and /metrics.
type Server struct {
	predictor       *pipeline.Predictor
	schemas         *schema.Holder
	addr            string
	watch           bool
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewServer creates a new server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Server{
		predictor:       cfg.Predictor,
		schemas:         cfg.Schemas,
		addr:            cfg.Addr,
		watch:           cfg.Watch,
		shutdownTimeout: timeout,
		logger:          logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", s.handleHealth)
	r.Post("/predict", s.handlePredict)
	r.Get("/schema", s.handleSchema)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.observeSchema()
	if s.watch {
		eg.Go(func() error {
			return s.schemas.Watch(egctx)
		})
	}

	eg.Go(func() error {
		s.logger.Info("starting server", "addr", s.addr, "schema", s.schemas.Path())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type predictResponse struct {
	RequestID   string    `json:"request_id"`
	Predictions []float64 `json:"predictions"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)
	defer func() { PredictLatency.Observe(time.Since(start).Seconds()) }()

	records, err := dataset.DecodeRecords(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		PredictRequests.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.observeSchema()
	proba, err := s.predictor.Predict(r.Context(), records)
	var (
		verr *pipeline.ValidationError
		uerr *encode.UnencodableColumnError
	)
	switch {
	case errors.As(err, &verr):
		PredictRequests.WithLabelValues("invalid").Inc()
		logger.Info("payload rejected", "problems", len(verr.Result.Problems))
		writeJSON(w, http.StatusUnprocessableEntity, verr.Result)
		return
	case errors.As(err, &uerr):
		PredictRequests.WithLabelValues("invalid").Inc()
		logger.Info("payload rejected", "column", uerr.Column, "error", uerr)
		writeJSON(w, http.StatusUnprocessableEntity, validate.Result{Problems: []string{uerr.Error()}})
		return
	case err != nil:
		PredictRequests.WithLabelValues("error").Inc()
		logger.Error("predict failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "prediction failed"})
		return
	}

	PredictRequests.WithLabelValues("ok").Inc()
	ScoredRecords.Add(float64(len(proba)))
	logger.Debug("scored", "records", len(proba), "took", time.Since(start))
	writeJSON(w, http.StatusOK, predictResponse{RequestID: requestID, Predictions: proba})
}

type schemaResponse struct {
	Path    string   `json:"path"`
	Columns []string `json:"columns"`
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	cur := s.observeSchema()
	writeJSON(w, http.StatusOK, schemaResponse{Path: s.schemas.Path(), Columns: cur.Columns()})
}

// observeSchema reads the schema the predictor serves with and keeps the
// width gauge in step with reloads.
func (s *Server) observeSchema() *schema.Schema {
	cur := s.predictor.Schema()
	if cur != nil {
		SchemaColumns.Set(float64(cur.Len()))
	}
	return cur
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

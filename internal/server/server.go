// Package server exposes the reconciliation HTTP surface: the service
// manifest, the batch endpoint, health checks and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vocab-reconciler/internal/common/config"
	"vocab-reconciler/internal/common/database"
	"vocab-reconciler/internal/common/logger"
	"vocab-reconciler/internal/common/validation"
	"vocab-reconciler/internal/models"
)

// Reconciler is the capability the server needs from the batch layer.
type Reconciler interface {
	Reconcile(ctx context.Context, batch *models.Batch) *models.BatchResponse
}

// Server handles the reconciliation protocol endpoints.
type Server struct {
	coordinator Reconciler
	manifest    models.Manifest
	pg          *database.PostgresClient
	redis       *database.RedisClient
	logger      logger.Logger
}

// New creates a Server. redis may be nil when the candidate cache is
// disabled; the readiness probe then only checks Postgres.
func New(coordinator Reconciler, manifest models.Manifest, pg *database.PostgresClient, redis *database.RedisClient, log logger.Logger) *Server {
	return &Server{
		coordinator: coordinator,
		manifest:    manifest,
		pg:          pg,
		redis:       redis,
		logger:      log,
	}
}

// BuildManifest assembles the service descriptor from configuration and the
// registered entity types.
func BuildManifest(app config.AppConfig, defaultTypes []models.TypeRef) models.Manifest {
	return models.Manifest{
		Versions:        []string{"0.1", "0.2"},
		Name:            app.Name,
		IdentifierSpace: "https://vocab.example.org/id/",
		SchemaSpace:     "https://vocab.example.org/schema/",
		DefaultTypes:    defaultTypes,
	}
}

// Routes returns the service mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/reconcile", s.handleReconcile)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// handleReconcile serves the manifest on GET and runs a batch on POST. The
// batch payload arrives either as the form field "queries" or as the raw
// request body; consuming curation tools use both.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.manifest)
	case http.MethodPost:
		s.runBatch(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) runBatch(w http.ResponseWriter, r *http.Request) {
	raw, err := batchPayload(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := validation.ValidateBatch(raw); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	batch, err := models.ParseBatch(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := s.coordinator.Reconcile(r.Context(), batch)
	s.writeJSON(w, http.StatusOK, resp)
}

// batchPayload extracts the batch JSON from the request. A form-encoded
// "queries" field wins over the raw body.
func batchPayload(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		if queries := r.PostFormValue("queries"); queries != "" {
			return []byte(queries), nil
		}
		return nil, fmt.Errorf("missing queries form field")
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return raw, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleReady checks the backing stores. A service that cannot reach
// Postgres cannot reconcile anything; Redis only matters when wired.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pg.Ping(ctx); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "postgres unreachable",
		})
		return
	}

	if s.redis != nil {
		if err := s.redis.Ping(ctx); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": "redis unreachable",
			})
			return
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("response encoding failed", nil)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.WithError(err).Warn("request rejected", map[string]interface{}{
		"status": status,
	})
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Package health provides the liveness and readiness HTTP endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is the interface the readiness check needs from the storage layer.
// This avoids a direct dependency on internal/store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP health check endpoints.
type Handler struct {
	db            Pinger
	version       string
	livenessPath  string
	readinessPath string
}

// NewHandler creates a health check handler.
func NewHandler(db Pinger, version, livenessPath, readinessPath string) *Handler {
	return &Handler{
		db:            db,
		version:       version,
		livenessPath:  livenessPath,
		readinessPath: readinessPath,
	}
}

// Paths returns the configured liveness and readiness paths.
func (h *Handler) Paths() (liveness, readiness string) {
	return h.livenessPath, h.readinessPath
}

// ServeHTTP routes to the appropriate health endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case h.livenessPath:
		h.handleLiveness(w, r)
	case h.readinessPath:
		h.handleReadiness(w, r)
	default:
		http.NotFound(w, r)
	}
}

// LivenessResponse is the JSON response for the liveness endpoint.
type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadinessResponse is the JSON response for the readiness endpoint.
type ReadinessResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h *Handler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LivenessResponse{
		Status:  "ok",
		Version: h.version,
	})
}

func (h *Handler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := ReadinessResponse{Status: "ready", Database: "ok"}
	code := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "not_ready"
		resp.Database = "unreachable"
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

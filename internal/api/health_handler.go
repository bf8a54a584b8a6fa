package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sectorwatch/sectorwatch/internal/api/common"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	deps *common.Dependencies
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(deps *common.Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Health handles GET /health (liveness probe)
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	common.SendJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready handles GET /ready. The service is ready once the store answers and
// the first snapshot has been committed.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"store":    "ok",
		"snapshot": "ok",
	}
	ready := true

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.deps.Store.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		ready = false
	}
	if !h.deps.Snapshots.Ready() {
		checks["snapshot"] = "pending"
		ready = false
	}

	response := ReadinessResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Checks:    checks,
	}
	status := http.StatusOK
	if !ready {
		response.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	common.SendJSON(w, status, response)
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sectorwatch/sectorwatch/internal/api/common"
	"github.com/sectorwatch/sectorwatch/internal/poller"
)

// StatusHandler serves the committed snapshot and on-demand refreshes.
type StatusHandler struct {
	Deps *common.Dependencies
}

func NewStatusHandler(deps *common.Dependencies) *StatusHandler {
	return &StatusHandler{Deps: deps}
}

// Current handles GET /api/v1/status
func (h *StatusHandler) Current(w http.ResponseWriter, r *http.Request) {
	snap := h.Deps.Snapshots.Current()
	if snap == nil {
		common.SendError(w, r, http.StatusServiceUnavailable, "NO_SNAPSHOT", "No cycle has completed yet", nil)
		return
	}
	common.SendJSON(w, http.StatusOK, snap)
}

// Get handles GET /api/v1/status/{sectorID}
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.Deps.Snapshots.Ready() {
		common.SendError(w, r, http.StatusServiceUnavailable, "NO_SNAPSHOT", "No cycle has completed yet", nil)
		return
	}

	sectorID := chi.URLParam(r, "sectorID")
	status, ok := h.Deps.Snapshots.Lookup(sectorID)
	if !ok {
		common.SendError(w, r, http.StatusNotFound, "NOT_FOUND", "Sector not found", map[string]string{"sector_id": sectorID})
		return
	}
	common.SendJSON(w, http.StatusOK, status)
}

// Refresh handles POST /api/v1/status/refresh
func (h *StatusHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.Deps.Scheduler.Trigger()
	switch {
	case err == nil:
		common.SendJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case errors.Is(err, poller.ErrCycleInProgress):
		common.SendError(w, r, http.StatusConflict, "CYCLE_IN_PROGRESS", "A cycle is already running", nil)
	case errors.Is(err, poller.ErrNotRunning):
		common.SendError(w, r, http.StatusServiceUnavailable, "SCHEDULER_STOPPED", "Scheduler is not running", nil)
	default:
		h.Deps.Logger.Error("refresh failed", "error", err)
		common.SendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Refresh failed", nil)
	}
}

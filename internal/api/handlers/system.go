package handlers

import (
	"net/http"

	"github.com/sectorwatch/sectorwatch/internal/api/common"
	"github.com/sectorwatch/sectorwatch/internal/auth"
)

type SystemHandler struct {
	Deps *common.Dependencies
}

func NewSystemHandler(deps *common.Dependencies) *SystemHandler {
	return &SystemHandler{Deps: deps}
}

// Login handles POST /api/v1/login
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Deps.Auth == nil {
		common.SendError(w, r, http.StatusNotFound, "AUTH_DISABLED", "Authentication is disabled", nil)
		return
	}

	req, ok := common.DecodeJSON[auth.LoginRequest](w, r)
	if !ok {
		return
	}

	if req.Username == "" || req.Password == "" {
		common.SendError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Username and password are required", nil)
		return
	}

	response, err := h.Deps.Auth.Login(req.Username, req.Password)
	if err != nil {
		common.SendError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
		return
	}

	common.SendJSON(w, http.StatusOK, response)
}

// SchedulerStats handles GET /api/v1/scheduler/stats
func (h *SystemHandler) SchedulerStats(w http.ResponseWriter, r *http.Request) {
	if h.Deps.Scheduler == nil {
		common.SendError(w, r, http.StatusServiceUnavailable, "SCHEDULER_UNAVAILABLE", "Scheduler not initialized", nil)
		return
	}
	common.SendJSON(w, http.StatusOK, h.Deps.Scheduler.Stats())
}

package handlers

import (
	"net/http"

	"github.com/sectorwatch/sectorwatch/internal/api/common"
	"github.com/sectorwatch/sectorwatch/internal/models"
	"github.com/sectorwatch/sectorwatch/internal/store"
)

type HistoryHandler struct {
	Deps *common.Dependencies
}

func NewHistoryHandler(deps *common.Dependencies) *HistoryHandler {
	return &HistoryHandler{Deps: deps}
}

// List handles GET /api/v1/history[?limit=N]
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	def := h.Deps.HistoryLimit
	if def <= 0 {
		def = store.DefaultHistoryLimit
	}
	limit, ok := common.QueryInt(w, r, "limit", def)
	if !ok {
		return
	}

	events, err := h.Deps.Store.ListHistory(r.Context(), store.ClampLimit(limit))
	if common.HandleStoreError(w, r, err, "history") {
		return
	}
	if events == nil {
		events = []models.HistoryEvent{}
	}
	common.SendListResponse(w, events, len(events))
}

// Clear handles DELETE /api/v1/history
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Deps.Store.ClearHistory(r.Context()); common.HandleStoreError(w, r, err, "history") {
		return
	}
	h.Deps.Logger.Info("history cleared")
	w.WriteHeader(http.StatusNoContent)
}

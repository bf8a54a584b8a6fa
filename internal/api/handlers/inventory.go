package handlers

import (
	"net/http"

	"github.com/sectorwatch/sectorwatch/internal/api/common"
	"github.com/sectorwatch/sectorwatch/internal/models"
)

// InventoryHandler serves the read-only inventory contract.
type InventoryHandler struct {
	Deps *common.Dependencies
}

func NewInventoryHandler(deps *common.Dependencies) *InventoryHandler {
	return &InventoryHandler{Deps: deps}
}

// ListSectors handles GET /api/v1/sectors
func (h *InventoryHandler) ListSectors(w http.ResponseWriter, r *http.Request) {
	sectors, err := h.Deps.Store.ListSectors(r.Context())
	if common.HandleStoreError(w, r, err, "sectors") {
		return
	}
	if sectors == nil {
		sectors = []models.Sector{}
	}
	common.SendListResponse(w, sectors, len(sectors))
}

// ListDevices handles GET /api/v1/devices[?sector_id=]
func (h *InventoryHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.Deps.Store.ListDevices(r.Context(), r.URL.Query().Get("sector_id"))
	if common.HandleStoreError(w, r, err, "devices") {
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	common.SendListResponse(w, devices, len(devices))
}

// ListLinks handles GET /api/v1/links
func (h *InventoryHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.Deps.Store.ListLinks(r.Context())
	if common.HandleStoreError(w, r, err, "links") {
		return
	}
	if links == nil {
		links = []models.Link{}
	}
	common.SendListResponse(w, links, len(links))
}

package handlers

import (
	"net/http"

	"github.com/sectorwatch/sectorwatch/internal/api/common"
)

type TopologyHandler struct {
	Deps *common.Dependencies
}

func NewTopologyHandler(deps *common.Dependencies) *TopologyHandler {
	return &TopologyHandler{Deps: deps}
}

// Notify handles POST /api/v1/topology/notify. It broadcasts the full link
// list after an external layout change. Delivery failures are logged only.
func (h *TopologyHandler) Notify(w http.ResponseWriter, r *http.Request) {
	links, err := h.Deps.Store.ListLinks(r.Context())
	if common.HandleStoreError(w, r, err, "links") {
		return
	}

	delivered := true
	if err := h.Deps.Publisher.PublishTopologyChange(r.Context(), links); err != nil {
		delivered = false
		h.Deps.Logger.Warn("topology change not delivered", "error", err, "links", len(links))
	}

	common.SendJSON(w, http.StatusAccepted, map[string]interface{}{
		"links":     len(links),
		"delivered": delivered,
	})
}

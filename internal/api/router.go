package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sectorwatch/sectorwatch/internal/api/common"
	"github.com/sectorwatch/sectorwatch/internal/api/handlers"
	"github.com/sectorwatch/sectorwatch/internal/config"
	"github.com/sectorwatch/sectorwatch/internal/middleware"
)

// NewRouter creates and configures the API router
func NewRouter(cfg *config.Config, deps *common.Dependencies) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	if cfg.CORS.Enabled {
		r.Use(middleware.CORS(
			cfg.CORS.AllowedOrigins,
			cfg.CORS.AllowedMethods,
			cfg.CORS.AllowedHeaders,
			cfg.CORS.MaxAgeSeconds,
		))
	}

	healthHandler := NewHealthHandler(deps)
	systemHandler := handlers.NewSystemHandler(deps)
	inventoryHandler := handlers.NewInventoryHandler(deps)
	historyHandler := handlers.NewHistoryHandler(deps)
	statusHandler := handlers.NewStatusHandler(deps)
	topologyHandler := handlers.NewTopologyHandler(deps)

	// Public routes (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", systemHandler.Login)

		r.Get("/sectors", inventoryHandler.ListSectors)
		r.Get("/devices", inventoryHandler.ListDevices)
		r.Get("/links", inventoryHandler.ListLinks)
		r.Get("/history", historyHandler.List)
		r.Get("/status", statusHandler.Current)
		r.Get("/status/{sectorID}", statusHandler.Get)
		r.Get("/scheduler/stats", systemHandler.SchedulerStats)

		if deps.WebSocket != nil {
			r.Get("/ws", deps.WebSocket)
		}

		// Mutating routes require a JWT when auth is enabled
		r.Group(func(r chi.Router) {
			if deps.Auth != nil {
				r.Use(middleware.JWTAuth(deps.Auth))
			}

			r.Delete("/history", historyHandler.Clear)
			r.Post("/status/refresh", statusHandler.Refresh)
			r.Post("/topology/notify", topologyHandler.Notify)
		})
	})

	return r
}

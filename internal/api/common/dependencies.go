package common

import (
	"log/slog"
	"net/http"

	"github.com/sectorwatch/sectorwatch/internal/auth"
	"github.com/sectorwatch/sectorwatch/internal/models"
	"github.com/sectorwatch/sectorwatch/internal/poller"
	"github.com/sectorwatch/sectorwatch/internal/publish"
	"github.com/sectorwatch/sectorwatch/internal/store"
)

// CycleController is the part of the scheduler exposed over HTTP.
type CycleController interface {
	Trigger() error
	Stats() poller.Stats
}

// SnapshotReader is the read side of the snapshot cache.
type SnapshotReader interface {
	Current() *models.Snapshot
	Lookup(sectorID string) (models.SectorStatus, bool)
	Ready() bool
}

// Dependencies holds common dependencies for API handlers
type Dependencies struct {
	Store     store.Store
	Auth      *auth.Service // nil when auth is disabled
	Snapshots SnapshotReader
	Scheduler CycleController
	Publisher publish.Publisher
	WebSocket http.HandlerFunc // nil when push is disabled
	Logger    *slog.Logger

	// HistoryLimit is the page size used when ?limit is absent.
	HistoryLimit int
}

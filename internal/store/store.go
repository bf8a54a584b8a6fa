// Package store defines the data-access contracts consumed by the monitoring
// core and ships the postgres, sqlite and in-memory implementations.
package store

import (
	"context"
	"errors"

	"github.com/sectorwatch/sectorwatch/internal/models"
)

var (
	// ErrUnavailable is returned when the backing store cannot serve a request.
	ErrUnavailable = errors.New("store unavailable")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// DefaultHistoryLimit and MaxHistoryLimit bound ListHistory.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// InventoryReader lists the monitored inventory. Sectors are ordered by name.
// An empty sectorID lists every device.
type InventoryReader interface {
	ListSectors(ctx context.Context) ([]models.Sector, error)
	ListDevices(ctx context.Context, sectorID string) ([]models.Device, error)
}

// HistoryStore persists transition events. ListHistory returns newest first.
type HistoryStore interface {
	AppendHistory(ctx context.Context, event models.HistoryEvent) (models.HistoryEvent, error)
	ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error)
	ClearHistory(ctx context.Context) error
}

// LinkReader lists topology links.
type LinkReader interface {
	ListLinks(ctx context.Context) ([]models.Link, error)
}

// Store is the complete contract implemented by every driver.
type Store interface {
	InventoryReader
	HistoryStore
	LinkReader
	Ping(ctx context.Context) error
	Close() error
}

// ClampLimit normalises a requested history limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}

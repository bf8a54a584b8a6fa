// Package memory is an in-process store seeded from a YAML file. It backs the
// check command and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sectorwatch/sectorwatch/internal/models"
	"github.com/sectorwatch/sectorwatch/internal/store"
)

// retained caps the number of history events kept in memory.
const retained = 1000

// Seed is the on-disk inventory format.
type Seed struct {
	Sectors []models.Sector `yaml:"sectors"`
	Devices []models.Device `yaml:"devices"`
	Links   []models.Link   `yaml:"links"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (Seed, error) {
	var seed Seed
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, fmt.Errorf("failed to read seed file: %w", err)
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return seed, nil
}

// Store holds all data in memory.
type Store struct {
	mu      sync.RWMutex
	sectors []models.Sector
	devices []models.Device
	links   []models.Link
	history []models.HistoryEvent
	nextID  int64
	closed  bool
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{nextID: 1}
}

// NewFromSeed creates a store populated from a seed file. An empty path
// yields an empty store.
func NewFromSeed(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	seed, err := LoadSeed(path)
	if err != nil {
		return nil, err
	}
	s.Load(seed)
	return s, nil
}

// Load replaces the inventory and links.
func (s *Store) Load(seed Seed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sectors = slices.Clone(seed.Sectors)
	s.devices = slices.Clone(seed.Devices)
	s.links = slices.Clone(seed.Links)
}

func (s *Store) ListSectors(ctx context.Context) ([]models.Sector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	sectors := slices.Clone(s.sectors)
	slices.SortStableFunc(sectors, func(a, b models.Sector) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return sectors, nil
}

func (s *Store) ListDevices(ctx context.Context, sectorID string) ([]models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	devices := make([]models.Device, 0, len(s.devices))
	for _, d := range s.devices {
		if sectorID == "" || d.SectorID == sectorID {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

func (s *Store) ListLinks(ctx context.Context) ([]models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return slices.Clone(s.links), nil
}

func (s *Store) AppendHistory(ctx context.Context, event models.HistoryEvent) (models.HistoryEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return event, store.ErrClosed
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.ID = s.nextID
	s.nextID++
	s.history = append(s.history, event)
	if len(s.history) > retained {
		s.history = slices.Clone(s.history[len(s.history)-retained:])
	}
	return event, nil
}

// ListHistory returns the latest events, newest first.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	limit = store.ClampLimit(limit)
	out := make([]models.HistoryEvent, 0, min(limit, len(s.history)))
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.history[i])
	}
	return out, nil
}

func (s *Store) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.history = nil
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

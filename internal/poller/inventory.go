package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sectorwatch/sectorwatch/internal/models"
	"github.com/sectorwatch/sectorwatch/internal/store"
)

// ErrInventoryFetch wraps failures reading the inventory store.
var ErrInventoryFetch = errors.New("inventory fetch failed")

// Inventory is one cycle's view of the monitored sectors and their devices.
type Inventory struct {
	Sectors   []models.Sector
	Devices   map[string][]models.Device
	FetchedAt time.Time
	// Stale is set when the fetch failed and the inventory is a fallback
	// (or empty, with no prior success).
	Stale bool
	// invalid holds trimmed addresses that are neither an IP nor a hostname.
	invalid map[string]struct{}
}

// InvalidAddress reports whether address failed validation at load time.
func (inv Inventory) InvalidAddress(address string) bool {
	_, bad := inv.invalid[address]
	return bad
}

// DevicesOf returns the devices of one sector in store order.
func (inv Inventory) DevicesOf(sectorID string) []models.Device {
	return inv.Devices[sectorID]
}

// DeviceCount returns the number of devices across all sectors.
func (inv Inventory) DeviceCount() int {
	n := 0
	for _, d := range inv.Devices {
		n += len(d)
	}
	return n
}

// InventoryProvider reads and validates the inventory, keeping the last good
// result for use when the store is unavailable.
type InventoryProvider struct {
	reader   store.InventoryReader
	validate *validator.Validate
	fallback bool
	logger   *slog.Logger

	mu       sync.Mutex
	lastGood *Inventory
}

func NewInventoryProvider(reader store.InventoryReader, fallback bool, logger *slog.Logger) *InventoryProvider {
	return &InventoryProvider{
		reader:   reader,
		validate: validator.New(),
		fallback: fallback,
		logger:   logger.With("component", "inventory"),
	}
}

// Fetch always returns a usable inventory. On a store failure it returns the
// last good inventory marked stale, or an empty stale inventory when there is
// none (a monitoring blackout).
func (p *InventoryProvider) Fetch(ctx context.Context) Inventory {
	inv, err := p.load(ctx)
	if err == nil {
		p.mu.Lock()
		p.lastGood = &inv
		p.mu.Unlock()
		return inv
	}

	if ctx.Err() != nil {
		return Inventory{Stale: true, FetchedAt: time.Now()}
	}

	p.mu.Lock()
	last := p.lastGood
	p.mu.Unlock()

	if p.fallback && last != nil {
		p.logger.Warn("using last good inventory",
			"error", err,
			"fetched_at", last.FetchedAt,
			"sectors", len(last.Sectors),
		)
		stale := *last
		stale.Stale = true
		return stale
	}

	p.logger.Warn("no inventory available, monitoring blackout for this cycle",
		"error", err,
		"fallback_enabled", p.fallback,
	)
	return Inventory{Devices: map[string][]models.Device{}, FetchedAt: time.Now(), Stale: true}
}

func (p *InventoryProvider) load(ctx context.Context) (Inventory, error) {
	sectors, err := p.reader.ListSectors(ctx)
	if err != nil {
		return Inventory{}, fmt.Errorf("%w: list sectors: %w", ErrInventoryFetch, err)
	}
	devices, err := p.reader.ListDevices(ctx, "")
	if err != nil {
		return Inventory{}, fmt.Errorf("%w: list devices: %w", ErrInventoryFetch, err)
	}

	inv := Inventory{
		Sectors:   make([]models.Sector, 0, len(sectors)),
		Devices:   make(map[string][]models.Device, len(sectors)),
		FetchedAt: time.Now(),
	}

	known := make(map[string]struct{}, len(sectors))
	for _, s := range sectors {
		if err := p.validate.StructExcept(s, "IP"); err != nil {
			p.logger.Warn("dropping invalid sector", "sector_id", s.ID, "error", err)
			continue
		}
		if _, dup := known[s.ID]; dup {
			p.logger.Warn("dropping duplicate sector", "sector_id", s.ID)
			continue
		}
		if s.Name == "" {
			s.Name = s.ID
		}
		s.IP = p.checkAddress(&inv, strings.TrimSpace(s.IP), "sector_id", s.ID)
		known[s.ID] = struct{}{}
		inv.Sectors = append(inv.Sectors, s)
	}

	for _, d := range devices {
		if err := p.validate.StructExcept(d, "IP"); err != nil {
			p.logger.Warn("dropping invalid device", "device_id", d.ID, "error", err)
			continue
		}
		if _, ok := known[d.SectorID]; !ok {
			p.logger.Debug("dropping device of unknown sector", "device_id", d.ID, "sector_id", d.SectorID)
			continue
		}
		d.IP = p.checkAddress(&inv, strings.TrimSpace(d.IP), "device_id", d.ID)
		inv.Devices[d.SectorID] = append(inv.Devices[d.SectorID], d)
	}

	return inv, nil
}

// checkAddress records a malformed address on inv. The record is kept so its
// sector still reports; the cycle turns the address into a failed outcome.
func (p *InventoryProvider) checkAddress(inv *Inventory, address, idKey, id string) string {
	if address == "" {
		return address
	}
	if err := p.validate.Var(address, "ip|hostname_rfc1123"); err != nil {
		p.logger.Warn("invalid address", idKey, id, "address", address)
		if inv.invalid == nil {
			inv.invalid = make(map[string]struct{})
		}
		inv.invalid[address] = struct{}{}
	}
	return address
}

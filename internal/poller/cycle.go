package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sectorwatch/sectorwatch/internal/models"
	"github.com/sectorwatch/sectorwatch/internal/probe"
)

// ErrCycleAborted is returned when a cycle is cancelled before commit.
var ErrCycleAborted = errors.New("cycle aborted")

// SnapshotPublisher receives every committed snapshot.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap *models.Snapshot) error
}

// CycleConfig holds the tunables of one monitoring cycle.
type CycleConfig struct {
	ProbeTimeout time.Duration
	// MaxConcurrentProbes bounds in-flight probes; 0 means unbounded.
	MaxConcurrentProbes int
}

// Cycle runs one complete monitoring pass: inventory, probes, aggregation,
// transition history, commit and publish.
type Cycle struct {
	inventory *InventoryProvider
	prober    probe.Prober
	tracker   *Tracker
	cache     *SnapshotCache
	publisher SnapshotPublisher
	cfg       CycleConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewCycle(
	inventory *InventoryProvider,
	prober probe.Prober,
	tracker *Tracker,
	cache *SnapshotCache,
	publisher SnapshotPublisher,
	cfg CycleConfig,
	logger *slog.Logger,
) *Cycle {
	return &Cycle{
		inventory: inventory,
		prober:    prober,
		tracker:   tracker,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "cycle"),
		now:       time.Now,
	}
}

type sectorProbes struct {
	host    *models.ProbeOutcome
	devices []models.ProbeOutcome
}

// Run executes one cycle. A cancelled cycle commits nothing and records no
// history.
func (c *Cycle) Run(ctx context.Context) (*models.Snapshot, error) {
	cycleID := uuid.New()
	startedAt := c.now()
	logger := c.logger.With("cycle_id", cycleID)

	previous := c.cache.BeginCycle()
	inv := c.inventory.Fetch(ctx)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCycleAborted, err)
	}

	results := c.probeAll(ctx, inv)
	if err := ctx.Err(); err != nil {
		logger.Info("cycle cancelled, discarding results")
		return nil, fmt.Errorf("%w: %w", ErrCycleAborted, err)
	}

	completedAt := c.now()
	statuses := make([]models.SectorStatus, len(inv.Sectors))
	var events []models.HistoryEvent
	var critical, warning int

	for i, sector := range inv.Sectors {
		devices := inv.DevicesOf(sector.ID)
		st := BuildStatus(sector, results[i].host, devices, results[i].devices, completedAt)
		statuses[i] = st

		switch st.State {
		case models.StateCritical:
			critical++
		case models.StateWarning:
			warning++
		}

		if ev, ok := Evaluate(sector.ID, st.State, previous.StateOf(sector.ID), completedAt); ok {
			events = append(events, ev)
		}
	}

	recorded := c.tracker.Record(ctx, events)

	snap := models.NewSnapshot(cycleID, startedAt, completedAt, inv.Stale, statuses)
	c.cache.Commit(snap)

	if c.publisher != nil {
		if err := c.publisher.PublishSnapshot(ctx, snap); err != nil {
			logger.Warn("failed to publish snapshot", "error", err)
		}
	}

	logger.Info("cycle completed",
		"sectors", len(statuses),
		"devices", inv.DeviceCount(),
		"critical", critical,
		"warning", warning,
		"history_events", recorded,
		"inventory_stale", inv.Stale,
		"duration", completedAt.Sub(startedAt),
	)

	return snap, nil
}

// probeAll fans out one probe per addressed host and one per device and
// waits for all of them.
func (c *Cycle) probeAll(ctx context.Context, inv Inventory) []sectorProbes {
	results := make([]sectorProbes, len(inv.Sectors))

	var g errgroup.Group
	if c.cfg.MaxConcurrentProbes > 0 {
		g.SetLimit(c.cfg.MaxConcurrentProbes)
	}

	for i, sector := range inv.Sectors {
		switch {
		case inv.InvalidAddress(sector.IP):
			results[i].host = &models.ProbeOutcome{Target: sector.IP, ErrorKind: models.ErrorKindInvalidAddress}
		case sector.HasAddress():
			results[i].host = &models.ProbeOutcome{}
			g.Go(func() error {
				*results[i].host = c.prober.Probe(ctx, sector.IP, c.cfg.ProbeTimeout)
				return nil
			})
		}

		devices := inv.DevicesOf(sector.ID)
		results[i].devices = make([]models.ProbeOutcome, len(devices))
		for j, d := range devices {
			switch {
			case d.IP == "":
				results[i].devices[j] = models.ProbeOutcome{ErrorKind: models.ErrorKindNoAddress}
				continue
			case inv.InvalidAddress(d.IP):
				results[i].devices[j] = models.ProbeOutcome{Target: d.IP, ErrorKind: models.ErrorKindInvalidAddress}
				continue
			}
			g.Go(func() error {
				results[i].devices[j] = c.prober.Probe(ctx, d.IP, c.cfg.ProbeTimeout)
				return nil
			})
		}
	}

	_ = g.Wait()
	return results
}

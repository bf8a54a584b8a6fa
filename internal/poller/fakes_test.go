package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sectorwatch/sectorwatch/internal/models"
	"github.com/sectorwatch/sectorwatch/internal/probe"
	"github.com/sectorwatch/sectorwatch/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProber answers from a reachability table. Unknown addresses are
// unreachable.
type fakeProber struct {
	mu    sync.Mutex
	up    map[string]bool
	calls map[string]int
	delay time.Duration
}

func newFakeProber(up map[string]bool) *fakeProber {
	return &fakeProber{up: up, calls: make(map[string]int)}
}

func (f *fakeProber) set(address string, reachable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.up[address] = reachable
}

func (f *fakeProber) callCount(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[address]
}

func (f *fakeProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProbeOutcome {
	f.mu.Lock()
	f.calls[address]++
	reachable := f.up[address]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return models.ProbeOutcome{Target: address, ErrorKind: models.ErrorKindCanceled}
		}
	}

	if !reachable {
		return models.ProbeOutcome{Target: address}
	}
	ms := 1.0
	return models.ProbeOutcome{Target: address, Reachable: true, LatencyMS: &ms}
}

var errStoreDown = errors.New("store down")

// flakyInventory wraps a reader and fails while failing is set.
type flakyInventory struct {
	*memory.Store
	mu      sync.Mutex
	failing bool
}

func (f *flakyInventory) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *flakyInventory) ListSectors(ctx context.Context) ([]models.Sector, error) {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return nil, errStoreDown
	}
	return f.Store.ListSectors(ctx)
}

// failingHistory rejects every append.
type failingHistory struct {
	*memory.Store
}

func (failingHistory) AppendHistory(context.Context, models.HistoryEvent) (models.HistoryEvent, error) {
	return models.HistoryEvent{}, errStoreDown
}

// recordingPublisher captures published snapshots.
type recordingPublisher struct {
	mu    sync.Mutex
	snaps []*models.Snapshot
	err   error
}

func (p *recordingPublisher) PublishSnapshot(_ context.Context, snap *models.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snaps)
}

type cycleFixture struct {
	store     *memory.Store
	inventory *flakyInventory
	prober    *fakeProber
	cache     *SnapshotCache
	publisher *recordingPublisher
	cycle     *Cycle
}

func newCycleFixture(seed memory.Seed, up map[string]bool) *cycleFixture {
	logger := discardLogger()
	st := memory.New()
	st.Load(seed)

	fx := &cycleFixture{
		store:     st,
		inventory: &flakyInventory{Store: st},
		prober:    newFakeProber(up),
		cache:     NewSnapshotCache(),
		publisher: &recordingPublisher{},
	}

	exec := probe.NewExecutor(fx.prober, "fake", 100*time.Millisecond, logger)
	fx.cycle = NewCycle(
		NewInventoryProvider(fx.inventory, true, logger),
		exec,
		NewTracker(st, logger),
		fx.cache,
		fx.publisher,
		CycleConfig{ProbeTimeout: 100 * time.Millisecond, MaxConcurrentProbes: 4},
		logger,
	)
	return fx
}

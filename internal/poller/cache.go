package poller

import (
	"sync/atomic"

	"github.com/sectorwatch/sectorwatch/internal/models"
)

type generation struct {
	current  *models.Snapshot
	previous *models.Snapshot
}

// SnapshotCache holds the last two committed snapshots. The cycle is the
// single writer; readers never block and always see a complete snapshot.
type SnapshotCache struct {
	gen atomic.Pointer[generation]
}

func NewSnapshotCache() *SnapshotCache {
	c := &SnapshotCache{}
	c.gen.Store(&generation{})
	return c
}

// BeginCycle returns the snapshot the next cycle compares against. It is nil
// before the first commit.
func (c *SnapshotCache) BeginCycle() *models.Snapshot {
	return c.gen.Load().current
}

// Commit publishes next as current. The previous generation is dropped.
func (c *SnapshotCache) Commit(next *models.Snapshot) {
	old := c.gen.Load()
	c.gen.Store(&generation{current: next, previous: old.current})
}

// Current returns the latest committed snapshot, or nil.
func (c *SnapshotCache) Current() *models.Snapshot {
	return c.gen.Load().current
}

// Previous returns the snapshot committed before Current, or nil.
func (c *SnapshotCache) Previous() *models.Snapshot {
	return c.gen.Load().previous
}

// Lookup returns one sector's status from the current snapshot.
func (c *SnapshotCache) Lookup(sectorID string) (models.SectorStatus, bool) {
	return c.Current().Lookup(sectorID)
}

// Ready reports whether a snapshot has been committed.
func (c *SnapshotCache) Ready() bool {
	return c.Current() != nil
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sectorwatch/sectorwatch/internal/models"
)

// newTestRepo creates a file-backed repository in a temp dir.
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(context.Background(), filepath.Join(t.TempDir(), "sectorwatch.db"))
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRepository_Inventory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	assertNoError(t, repo.Seed(ctx,
		[]models.Sector{
			{ID: "s2", Name: "Warehouse", IP: "10.0.0.2"},
			{ID: "s1", Name: "Admin", IP: "10.0.0.1"},
			{ID: "s3", Name: "Lobby"},
		},
		[]models.Device{
			{ID: "d1", SectorID: "s1", Name: "printer", IP: "10.0.1.1"},
			{ID: "d2", SectorID: "s2", Name: "camera"},
		},
		[]models.Link{{ID: "l1", SourceID: "s1", TargetID: "s2"}},
	))

	sectors, err := repo.ListSectors(ctx)
	assertNoError(t, err)
	if len(sectors) != 3 {
		t.Fatalf("got %d sectors, want 3", len(sectors))
	}
	if sectors[0].Name != "Admin" || sectors[2].Name != "Warehouse" {
		t.Errorf("sectors not ordered by name: %+v", sectors)
	}
	if sectors[1].IP != "" {
		t.Errorf("Lobby ip = %q, want empty", sectors[1].IP)
	}

	devices, err := repo.ListDevices(ctx, "s2")
	assertNoError(t, err)
	if len(devices) != 1 || devices[0].IP != "" {
		t.Errorf("ListDevices(s2) = %+v", devices)
	}

	all, err := repo.ListDevices(ctx, "")
	assertNoError(t, err)
	if len(all) != 2 {
		t.Errorf("got %d devices, want 2", len(all))
	}

	links, err := repo.ListLinks(ctx)
	assertNoError(t, err)
	if len(links) != 1 || links[0].TargetID != "s2" {
		t.Errorf("ListLinks() = %+v", links)
	}
}

func TestRepository_History(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, reason := range []string{models.ReasonSwitchOffline, models.ReasonEquipmentFailure, models.ReasonSwitchOffline} {
		ev, err := repo.AppendHistory(ctx, models.HistoryEvent{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			SectorID:  "s1",
			Reason:    reason,
		})
		assertNoError(t, err)
		if ev.ID == 0 {
			t.Error("expected store-assigned id")
		}
	}

	events, err := repo.ListHistory(ctx, 2)
	assertNoError(t, err)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if !events[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("newest event timestamp = %v", events[0].Timestamp)
	}
	if events[1].Reason != models.ReasonEquipmentFailure {
		t.Errorf("second event reason = %q", events[1].Reason)
	}

	assertNoError(t, repo.ClearHistory(ctx))
	events, err = repo.ListHistory(ctx, 0)
	assertNoError(t, err)
	if len(events) != 0 {
		t.Errorf("history after clear = %+v", events)
	}
}

func TestRepository_Ping(t *testing.T) {
	repo := newTestRepo(t)
	assertNoError(t, repo.Ping(context.Background()))
}

package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/sectorwatch/sectorwatch/internal/models"
	"github.com/sectorwatch/sectorwatch/internal/store"
)

// ReasonFor returns the history reason recorded on entering state.
func ReasonFor(state models.State) string {
	switch state {
	case models.StateCritical:
		return models.ReasonSwitchOffline
	case models.StateWarning:
		return models.ReasonEquipmentFailure
	}
	return ""
}

// Evaluate decides whether moving from prev to next is a qualifying
// transition. Events are edge-triggered: only entries into a different
// non-OK state qualify, recoveries never do.
func Evaluate(sectorID string, next, prev models.State, at time.Time) (models.HistoryEvent, bool) {
	if next == models.StateOK || next == prev {
		return models.HistoryEvent{}, false
	}
	return models.HistoryEvent{
		Timestamp: at,
		SectorID:  sectorID,
		Reason:    ReasonFor(next),
	}, true
}

// Tracker persists transition events. Store failures are logged and never
// interrupt the cycle.
type Tracker struct {
	history store.HistoryStore
	logger  *slog.Logger
}

func NewTracker(history store.HistoryStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		history: history,
		logger:  logger.With("component", "transition_tracker"),
	}
}

// Record appends each event and returns how many were stored.
func (t *Tracker) Record(ctx context.Context, events []models.HistoryEvent) int {
	stored := 0
	for _, ev := range events {
		saved, err := t.history.AppendHistory(ctx, ev)
		if err != nil {
			t.logger.Error("failed to persist history event",
				"sector_id", ev.SectorID,
				"reason", ev.Reason,
				"error", err,
			)
			continue
		}
		stored++
		t.logger.Info("sector state transition recorded",
			"history_id", saved.ID,
			"sector_id", saved.SectorID,
			"reason", saved.Reason,
		)
	}
	return stored
}

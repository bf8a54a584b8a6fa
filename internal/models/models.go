package models

import (
	"time"

	"github.com/google/uuid"
)

// State is the tri-state health signal computed for a sector each cycle.
type State string

const (
	StateOK       State = "OK"
	StateWarning  State = "WARNING"
	StateCritical State = "CRITICAL"
)

// History reasons recorded when a sector enters or changes between non-OK states.
const (
	ReasonSwitchOffline    = "Switch Offline"
	ReasonEquipmentFailure = "Equipment Failure"
)

// Probe error kinds. An outcome carrying one of these failed for a reason
// unrelated to the target's liveness.
const (
	ErrorKindNoAddress      = "no_address"
	ErrorKindInvalidAddress = "invalid_address"
	ErrorKindResolve        = "resolve"
	ErrorKindPermission     = "permission"
	ErrorKindSocket         = "socket"
	ErrorKindCanceled       = "canceled"
	ErrorKindInternal       = "internal"
)

// Sector is a monitored site: one primary switch-like host plus its devices.
// An empty IP marks a visual-only sector whose host is never probed.
type Sector struct {
	ID   string `json:"id" yaml:"id" validate:"required,max=128"`
	Name string `json:"name" yaml:"name" validate:"max=256"`
	IP   string `json:"ip,omitempty" yaml:"ip" validate:"omitempty,ip|hostname_rfc1123"`
}

// HasAddress reports whether the sector host is monitored.
func (s Sector) HasAddress() bool {
	return s.IP != ""
}

// Device is a subordinate endpoint belonging to a sector.
type Device struct {
	ID       string `json:"id" yaml:"id" validate:"required,max=128"`
	SectorID string `json:"sector_id" yaml:"sector_id" validate:"required,max=128"`
	Name     string `json:"name" yaml:"name" validate:"max=256"`
	IP       string `json:"ip" yaml:"ip" validate:"omitempty,ip|hostname_rfc1123"`
}

// Link is a topology edge between two sectors.
type Link struct {
	ID       string `json:"id" yaml:"id"`
	SourceID string `json:"source_id" yaml:"source_id"`
	TargetID string `json:"target_id" yaml:"target_id"`
}

// ProbeOutcome is the result of one reachability probe. It is created fresh
// every cycle and never persisted.
type ProbeOutcome struct {
	Target    string   `json:"target"`
	Reachable bool     `json:"reachable"`
	LatencyMS *float64 `json:"latency_ms,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

// Failed reports whether the probe mechanism itself failed.
func (o ProbeOutcome) Failed() bool {
	return o.ErrorKind != ""
}

// DeviceStatus pairs a device with its outcome for the cycle.
type DeviceStatus struct {
	DeviceID string       `json:"device_id"`
	Name     string       `json:"name"`
	IP       string       `json:"ip"`
	Online   bool         `json:"online"`
	Outcome  ProbeOutcome `json:"outcome"`
}

// SectorStatus is the per-sector result of one cycle.
type SectorStatus struct {
	SectorID      string         `json:"sector_id"`
	Name          string         `json:"name"`
	IP            string         `json:"ip,omitempty"`
	State         State          `json:"state"`
	Monitored     bool           `json:"monitored"`
	HostReachable bool           `json:"host_reachable"`
	Host          *ProbeOutcome  `json:"host,omitempty"`
	Devices       []DeviceStatus `json:"devices"`
	LatencyMS     *float64       `json:"latency_ms,omitempty"`
	CheckedAt     time.Time      `json:"checked_at"`
}

// Snapshot is the complete set of statuses computed in one cycle. A committed
// snapshot is never mutated.
type Snapshot struct {
	CycleID        uuid.UUID      `json:"cycle_id"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    time.Time      `json:"completed_at"`
	InventoryStale bool           `json:"inventory_stale"`
	Statuses       []SectorStatus `json:"statuses"`

	index map[string]int
}

// NewSnapshot builds a snapshot and its sector index.
func NewSnapshot(cycleID uuid.UUID, startedAt, completedAt time.Time, stale bool, statuses []SectorStatus) *Snapshot {
	if statuses == nil {
		statuses = []SectorStatus{}
	}
	index := make(map[string]int, len(statuses))
	for i, st := range statuses {
		index[st.SectorID] = i
	}
	return &Snapshot{
		CycleID:        cycleID,
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
		InventoryStale: stale,
		Statuses:       statuses,
		index:          index,
	}
}

// Lookup returns the status of one sector.
func (s *Snapshot) Lookup(sectorID string) (SectorStatus, bool) {
	if s == nil {
		return SectorStatus{}, false
	}
	i, ok := s.index[sectorID]
	if !ok {
		return SectorStatus{}, false
	}
	return s.Statuses[i], true
}

// StateOf returns the recorded state for a sector, or OK when the sector is
// not part of the snapshot.
func (s *Snapshot) StateOf(sectorID string) State {
	if st, ok := s.Lookup(sectorID); ok {
		return st.State
	}
	return StateOK
}

// Len returns the number of sectors in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Statuses)
}

// HistoryEvent records a qualifying state transition. ID is assigned by the store.
type HistoryEvent struct {
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	SectorID  string    `json:"sector_id"`
	Reason    string    `json:"reason"`
}

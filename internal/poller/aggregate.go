package poller

import (
	"time"

	"github.com/sectorwatch/sectorwatch/internal/models"
)

// DeriveState computes a sector's state from this cycle's outcomes alone.
// A sector without a host address is never CRITICAL.
func DeriveState(hostIP string, host models.ProbeOutcome, devices []models.ProbeOutcome) models.State {
	if hostIP != "" && !host.Reachable {
		return models.StateCritical
	}
	for _, d := range devices {
		if !d.Reachable {
			return models.StateWarning
		}
	}
	return models.StateOK
}

// BuildStatus assembles the status of one sector. host is nil for sectors
// that are not monitored. outcomes must be index-aligned with devices.
func BuildStatus(
	sector models.Sector,
	host *models.ProbeOutcome,
	devices []models.Device,
	outcomes []models.ProbeOutcome,
	checkedAt time.Time,
) models.SectorStatus {
	var hostOutcome models.ProbeOutcome
	if host != nil {
		hostOutcome = *host
	}

	st := models.SectorStatus{
		SectorID:  sector.ID,
		Name:      sector.Name,
		IP:        sector.IP,
		State:     DeriveState(sector.IP, hostOutcome, outcomes),
		Monitored: sector.HasAddress(),
		Devices:   make([]models.DeviceStatus, len(devices)),
		CheckedAt: checkedAt,
	}

	if st.Monitored && host != nil {
		h := hostOutcome
		st.Host = &h
		st.HostReachable = h.Reachable
		st.LatencyMS = h.LatencyMS
	}

	for i, d := range devices {
		st.Devices[i] = models.DeviceStatus{
			DeviceID: d.ID,
			Name:     d.Name,
			IP:       d.IP,
			Online:   outcomes[i].Reachable,
			Outcome:  outcomes[i],
		}
	}

	return st
}

package poller

import (
	"testing"
	"time"

	"github.com/sectorwatch/sectorwatch/internal/models"
)

func up() models.ProbeOutcome {
	ms := 1.0
	return models.ProbeOutcome{Reachable: true, LatencyMS: &ms}
}

func down() models.ProbeOutcome {
	return models.ProbeOutcome{}
}

func broken(kind string) models.ProbeOutcome {
	return models.ProbeOutcome{ErrorKind: kind}
}

func TestDeriveState(t *testing.T) {
	tests := []struct {
		name    string
		hostIP  string
		host    models.ProbeOutcome
		devices []models.ProbeOutcome
		want    models.State
	}{
		{"all up", "10.0.0.1", up(), []models.ProbeOutcome{up(), up()}, models.StateOK},
		{"no devices", "10.0.0.1", up(), nil, models.StateOK},
		{"host down", "10.0.0.1", down(), []models.ProbeOutcome{up()}, models.StateCritical},
		{"host down devices down", "10.0.0.1", down(), []models.ProbeOutcome{down()}, models.StateCritical},
		{"host probe failed", "10.0.0.1", broken(models.ErrorKindPermission), nil, models.StateCritical},
		{"device down", "10.0.0.1", up(), []models.ProbeOutcome{up(), down()}, models.StateWarning},
		{"device probe failed", "10.0.0.1", up(), []models.ProbeOutcome{broken(models.ErrorKindResolve)}, models.StateWarning},
		{"device without address", "10.0.0.1", up(), []models.ProbeOutcome{broken(models.ErrorKindNoAddress)}, models.StateWarning},
		{"unaddressed sector", "", down(), nil, models.StateOK},
		{"unaddressed sector device down", "", down(), []models.ProbeOutcome{down()}, models.StateWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveState(tt.hostIP, tt.host, tt.devices); got != tt.want {
				t.Errorf("DeriveState() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuildStatus(t *testing.T) {
	now := time.Now()
	host := up()
	sector := models.Sector{ID: "s1", Name: "Admin", IP: "10.0.0.1"}
	devices := []models.Device{
		{ID: "d1", SectorID: "s1", Name: "printer", IP: "10.0.1.1"},
		{ID: "d2", SectorID: "s1", Name: "camera", IP: "10.0.1.2"},
	}

	st := BuildStatus(sector, &host, devices, []models.ProbeOutcome{up(), down()}, now)

	if st.State != models.StateWarning {
		t.Errorf("state = %s, want WARNING", st.State)
	}
	if !st.Monitored || !st.HostReachable || st.Host == nil {
		t.Errorf("host fields not set: %+v", st)
	}
	if st.LatencyMS == nil || *st.LatencyMS != 1.0 {
		t.Errorf("latency = %v, want 1.0", st.LatencyMS)
	}
	if len(st.Devices) != 2 || !st.Devices[0].Online || st.Devices[1].Online {
		t.Errorf("devices = %+v", st.Devices)
	}
	if st.Devices[1].Name != "camera" || st.Devices[1].IP != "10.0.1.2" {
		t.Errorf("device identity lost: %+v", st.Devices[1])
	}

	visual := BuildStatus(models.Sector{ID: "s2", Name: "Lobby"}, nil, nil, nil, now)
	if visual.Monitored || visual.Host != nil || visual.State != models.StateOK {
		t.Errorf("unaddressed sector status = %+v", visual)
	}
	if visual.Devices == nil {
		t.Error("devices should be an empty slice, not nil")
	}
}

package probe

import (
	"context"
	"errors"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/sectorwatch/sectorwatch/internal/models"
)

// sysUpTime answers on any SNMP agent regardless of vendor MIBs.
const sysUpTimeOID = "1.3.6.1.2.1.1.3.0"

// SNMPProber treats a target as reachable when its agent answers a GetRequest
// for sysUpTime.
type SNMPProber struct {
	community string
	port      uint16
	version   gosnmp.SnmpVersion
}

func NewSNMPProber(community string, port int, version string) *SNMPProber {
	v := gosnmp.Version2c
	if version == "1" {
		v = gosnmp.Version1
	}
	if port <= 0 {
		port = 161
	}
	if community == "" {
		community = "public"
	}
	return &SNMPProber{community: community, port: uint16(port), version: v}
}

func (p *SNMPProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProbeOutcome {
	ip, err := resolve(ctx, address)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return failure(address, models.ErrorKindCanceled, err)
		}
		return failure(address, models.ErrorKindResolve, err)
	}

	g := &gosnmp.GoSNMP{
		Target:    ip.String(),
		Port:      p.port,
		Version:   p.version,
		Community: p.community,
		Timeout:   timeout,
		Retries:   0,
		Context:   ctx,
	}

	if err := g.Connect(); err != nil {
		return fromError(ctx, address, err)
	}
	defer g.Conn.Close()

	start := time.Now()
	_, err = g.Get([]string{sysUpTimeOID})
	rtt := time.Since(start)
	if err != nil {
		switch {
		case isRefused(err):
			// ICMP port unreachable: the host is up, the agent is not.
			return reachable(address, rtt)
		case errors.Is(ctx.Err(), context.Canceled):
			return failure(address, models.ErrorKindCanceled, err)
		case ctx.Err() != nil, isTimeout(err):
			return unreachable(address)
		}
		return fromError(ctx, address, err)
	}

	return reachable(address, rtt)
}

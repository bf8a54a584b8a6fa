package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/sectorwatch/sectorwatch/internal/models"
)

// TCPProber checks liveness with a TCP connect. A refused connection counts
// as reachable: the host answered with a reset.
type TCPProber struct {
	port   int
	dialer net.Dialer
}

func NewTCPProber(port int) *TCPProber {
	return &TCPProber{port: port}
}

// Probe dials address. An address that already carries a port is used as is.
func (p *TCPProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProbeOutcome {
	target := address
	if _, _, err := net.SplitHostPort(address); err != nil {
		target = net.JoinHostPort(address, strconv.Itoa(p.port))
	}

	livenessCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dialer.DialContext(livenessCtx, "tcp", target)
	rtt := time.Since(start)
	if err != nil {
		if isRefused(err) {
			return reachable(address, rtt)
		}
		return fromError(ctx, address, err)
	}
	_ = conn.Close()

	return reachable(address, rtt)
}

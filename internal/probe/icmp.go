package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/sectorwatch/sectorwatch/internal/models"
)

const icmpPayload = "sectorwatch-probe"

// ICMPProber sends a single echo request and waits for the matching reply.
// Unprivileged mode uses datagram ICMP sockets ("udp4"/"udp6"), which Linux
// allows when net.ipv4.ping_group_range covers the process group.
type ICMPProber struct {
	privileged bool
	id         int
	seq        atomic.Uint32
}

func NewICMPProber(privileged bool) *ICMPProber {
	return &ICMPProber{
		privileged: privileged,
		id:         os.Getpid() & 0xffff,
	}
}

type icmpFamily struct {
	network   string
	listen    string
	protocol  int
	echo      icmp.Type
	echoReply icmp.Type
}

func (p *ICMPProber) family(ip net.IP) icmpFamily {
	if ip.To4() != nil {
		f := icmpFamily{
			network:   "udp4",
			listen:    "0.0.0.0",
			protocol:  ipv4.ICMPTypeEcho.Protocol(),
			echo:      ipv4.ICMPTypeEcho,
			echoReply: ipv4.ICMPTypeEchoReply,
		}
		if p.privileged {
			f.network = "ip4:icmp"
		}
		return f
	}
	f := icmpFamily{
		network:   "udp6",
		listen:    "::",
		protocol:  ipv6.ICMPTypeEchoRequest.Protocol(),
		echo:      ipv6.ICMPTypeEchoRequest,
		echoReply: ipv6.ICMPTypeEchoReply,
	}
	if p.privileged {
		f.network = "ip6:ipv6-icmp"
	}
	return f
}

func (p *ICMPProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProbeOutcome {
	ip, err := resolve(ctx, address)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return failure(address, models.ErrorKindCanceled, err)
		}
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) {
			return failure(address, models.ErrorKindInvalidAddress, err)
		}
		return failure(address, models.ErrorKindResolve, err)
	}

	fam := p.family(ip)
	conn, err := icmp.ListenPacket(fam.network, fam.listen)
	if err != nil {
		kind := Classify(err)
		if kind == "" {
			kind = models.ErrorKindSocket
		}
		return failure(address, kind, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return failure(address, models.ErrorKindSocket, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: fam.echo,
		Code: 0,
		Body: &icmp.Echo{ID: p.id, Seq: seq, Data: []byte(icmpPayload)},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return failure(address, models.ErrorKindInternal, err)
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if !p.privileged {
		dst = &net.UDPAddr{IP: ip}
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, dst); err != nil {
		return fromError(ctx, address, err)
	}

	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			return fromError(ctx, address, err)
		}
		rtt := time.Since(start)

		rm, err := icmp.ParseMessage(fam.protocol, rb[:n])
		if err != nil || rm.Type != fam.echoReply {
			continue
		}
		echo, ok := rm.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// datagram sockets rewrite the identifier; the kernel already filters
		// replies to this socket.
		if p.privileged && echo.ID != p.id {
			continue
		}
		if !peerIP(peer).Equal(ip) {
			continue
		}
		return reachable(address, rtt)
	}
}

func peerIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	}
	return nil
}

// resolve returns the address as an IP, preferring IPv4 for hostnames.
func resolve(ctx context.Context, address string) (net.IP, error) {
	if ip := net.ParseIP(address); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no addresses", Name: address, IsNotFound: true}
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	return addrs[0].IP, nil
}

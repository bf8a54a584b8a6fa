package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sectorwatch/sectorwatch/internal/config"
	"github.com/sectorwatch/sectorwatch/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// funcProber adapts a function to the Prober interface.
type funcProber func(ctx context.Context, address string, timeout time.Duration) models.ProbeOutcome

func (f funcProber) Probe(ctx context.Context, address string, timeout time.Duration) models.ProbeOutcome {
	return f(ctx, address, timeout)
}

func TestExecutor_EmptyAddress(t *testing.T) {
	called := false
	exec := NewExecutor(funcProber(func(context.Context, string, time.Duration) models.ProbeOutcome {
		called = true
		return models.ProbeOutcome{Reachable: true}
	}), "fake", time.Second, discardLogger())

	out := exec.Probe(context.Background(), "   ", 0)
	if called {
		t.Error("method should not run for an empty address")
	}
	if out.Reachable {
		t.Error("empty address must be unreachable")
	}
	if out.ErrorKind != models.ErrorKindNoAddress {
		t.Errorf("error kind = %q, want %q", out.ErrorKind, models.ErrorKindNoAddress)
	}
}

func TestExecutor_RecoversPanic(t *testing.T) {
	exec := NewExecutor(funcProber(func(context.Context, string, time.Duration) models.ProbeOutcome {
		panic("boom")
	}), "fake", time.Second, discardLogger())

	out := exec.Probe(context.Background(), "10.0.0.1", 0)
	if out.Reachable {
		t.Error("panicking probe must be unreachable")
	}
	if out.ErrorKind != models.ErrorKindInternal {
		t.Errorf("error kind = %q, want %q", out.ErrorKind, models.ErrorKindInternal)
	}
	if out.Target != "10.0.0.1" {
		t.Errorf("target = %q", out.Target)
	}
}

func TestExecutor_DefaultTimeoutApplied(t *testing.T) {
	var gotTimeout time.Duration
	var hasDeadline bool
	exec := NewExecutor(funcProber(func(ctx context.Context, address string, timeout time.Duration) models.ProbeOutcome {
		gotTimeout = timeout
		_, hasDeadline = ctx.Deadline()
		return models.ProbeOutcome{Target: address}
	}), "fake", 1500*time.Millisecond, discardLogger())

	exec.Probe(context.Background(), "10.0.0.1", 0)
	if gotTimeout != 1500*time.Millisecond {
		t.Errorf("timeout = %v, want 1.5s", gotTimeout)
	}
	if !hasDeadline {
		t.Error("probe context should carry a deadline")
	}
}

func TestExecutor_DropsLatencyForUnreachable(t *testing.T) {
	ms := 4.2
	exec := NewExecutor(funcProber(func(context.Context, string, time.Duration) models.ProbeOutcome {
		return models.ProbeOutcome{Reachable: false, LatencyMS: &ms}
	}), "fake", time.Second, discardLogger())

	out := exec.Probe(context.Background(), "10.0.0.1", 0)
	if out.LatencyMS != nil {
		t.Error("unreachable outcome must not carry latency")
	}
}

func TestTCPProber_Listening(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer l.Close()
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	p := NewTCPProber(1)
	out := p.Probe(context.Background(), l.Addr().String(), time.Second)
	if !out.Reachable {
		t.Fatalf("expected reachable, got %+v", out)
	}
	if out.LatencyMS == nil {
		t.Error("reachable outcome should carry latency")
	}
}

func TestTCPProber_RefusedCountsAsReachable(t *testing.T) {
	// Grab a free port then close it so the connect is refused.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	p := NewTCPProber(port)
	out := p.Probe(context.Background(), "127.0.0.1", time.Second)
	if !out.Reachable {
		t.Fatalf("refused connection should count as reachable, got %+v", out)
	}
}

func TestTCPProber_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewTCPProber(9)
	out := p.Probe(ctx, "192.0.2.1", time.Second)
	if out.Reachable {
		t.Fatal("canceled probe must be unreachable")
	}
	if out.ErrorKind != models.ErrorKindCanceled {
		t.Errorf("error kind = %q, want %q", out.ErrorKind, models.ErrorKindCanceled)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"canceled", fmt.Errorf("dial: %w", context.Canceled), models.ErrorKindCanceled},
		{"deadline", context.DeadlineExceeded, ""},
		{"os deadline", os.ErrDeadlineExceeded, ""},
		{"permission", &net.OpError{Op: "listen", Err: os.NewSyscallError("socket", syscall.EPERM)}, models.ErrorKindPermission},
		{"host unreachable", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)}, ""},
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid", IsNotFound: true}, models.ErrorKindResolve},
		{"bad address", &net.AddrError{Err: "missing port", Addr: "x"}, models.ErrorKindInvalidAddress},
		{"other", errors.New("socket exploded"), models.ErrorKindSocket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestNew_Methods(t *testing.T) {
	cfg := config.Default().Monitor

	for _, method := range []string{"icmp", "tcp", "snmp"} {
		cfg.ProbeMethod = method
		exec, err := New(cfg, discardLogger())
		if err != nil {
			t.Fatalf("New(%s) error = %v", method, err)
		}
		if exec.Method() != method {
			t.Errorf("Method() = %q, want %q", exec.Method(), method)
		}
		if exec.Timeout() != cfg.GetProbeTimeout() {
			t.Errorf("Timeout() = %v, want %v", exec.Timeout(), cfg.GetProbeTimeout())
		}
	}

	cfg.ProbeMethod = "smoke-signal"
	if _, err := New(cfg, discardLogger()); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("expected ErrUnknownMethod, got %v", err)
	}
}

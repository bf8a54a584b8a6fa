// Package probe executes bounded-timeout reachability probes against single
// network addresses. Every outcome is a value: probe methods never return
// errors or panic into the caller.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sectorwatch/sectorwatch/internal/config"
	"github.com/sectorwatch/sectorwatch/internal/models"
)

// ErrUnknownMethod is returned by New for an unsupported probe method.
var ErrUnknownMethod = errors.New("unknown probe method")

// Prober probes one address. Implementations must honour ctx and timeout and
// report every failure through the returned outcome.
type Prober interface {
	Probe(ctx context.Context, address string, timeout time.Duration) models.ProbeOutcome
}

// Executor wraps a probe method with the guarantees the monitoring cycle relies
// on: a default timeout, empty-address handling, panic recovery and logging of
// mechanism failures.
type Executor struct {
	method  Prober
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecutor creates an executor around an arbitrary probe method.
func NewExecutor(method Prober, name string, timeout time.Duration, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		method:  method,
		name:    name,
		timeout: timeout,
		logger:  logger.With("component", "probe", "method", name),
	}
}

// New builds the executor configured by the monitor section.
func New(cfg config.MonitorConfig, logger *slog.Logger) (*Executor, error) {
	var method Prober
	switch strings.ToLower(cfg.ProbeMethod) {
	case "", "icmp":
		method = NewICMPProber(cfg.ICMPPrivileged)
	case "tcp":
		method = NewTCPProber(cfg.TCPPort)
	case "snmp":
		method = NewSNMPProber(cfg.SNMP.Community, cfg.SNMP.Port, cfg.SNMP.Version)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, cfg.ProbeMethod)
	}
	name := cfg.ProbeMethod
	if name == "" {
		name = "icmp"
	}
	return NewExecutor(method, name, cfg.GetProbeTimeout(), logger), nil
}

// Timeout returns the default per-probe timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Method returns the configured probe method name.
func (e *Executor) Method() string {
	return e.name
}

// Probe runs one probe. A non-positive timeout selects the executor default.
func (e *Executor) Probe(ctx context.Context, address string, timeout time.Duration) (out models.ProbeOutcome) {
	address = strings.TrimSpace(address)
	if address == "" {
		return failure(address, models.ErrorKindNoAddress, nil)
	}
	if timeout <= 0 {
		timeout = e.timeout
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("probe panicked", "target", address, "panic", r)
			out = failure(address, models.ErrorKindInternal, fmt.Errorf("panic: %v", r))
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out = e.method.Probe(probeCtx, address, timeout)
	out.Target = address
	if !out.Reachable {
		out.LatencyMS = nil
	}

	switch {
	case out.Failed() && out.ErrorKind != models.ErrorKindCanceled:
		e.logger.Warn("probe mechanism failed",
			"target", address,
			"error_kind", out.ErrorKind,
			"detail", out.Detail,
		)
	case !out.Reachable:
		e.logger.Debug("target unreachable", "target", address)
	case out.LatencyMS != nil:
		e.logger.Debug("target reachable", "target", address, "latency_ms", *out.LatencyMS)
	}

	return out
}

func reachable(target string, rtt time.Duration) models.ProbeOutcome {
	ms := float64(rtt.Microseconds()) / 1000.0
	return models.ProbeOutcome{Target: target, Reachable: true, LatencyMS: &ms}
}

func unreachable(target string) models.ProbeOutcome {
	return models.ProbeOutcome{Target: target}
}

func failure(target, kind string, err error) models.ProbeOutcome {
	out := models.ProbeOutcome{Target: target, ErrorKind: kind}
	if err != nil {
		out.Detail = err.Error()
	}
	return out
}

// fromError turns a probe error into an outcome, separating plain
// unreachability from mechanism failures.
func fromError(ctx context.Context, target string, err error) models.ProbeOutcome {
	if errors.Is(ctx.Err(), context.Canceled) {
		return failure(target, models.ErrorKindCanceled, err)
	}
	kind := Classify(err)
	if kind == "" {
		return unreachable(target)
	}
	return failure(target, kind, err)
}

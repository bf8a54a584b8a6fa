package main

import (
	"log/slog"

	"github.com/sectorwatch/sectorwatch/internal/config"
	"github.com/sectorwatch/sectorwatch/internal/poller"
	"github.com/sectorwatch/sectorwatch/internal/probe"
	"github.com/sectorwatch/sectorwatch/internal/store"
)

// monitor bundles the components of one monitoring pipeline.
type monitor struct {
	executor *probe.Executor
	cycle    *poller.Cycle
}

func newMonitor(cfg config.MonitorConfig, st store.Store, cache *poller.SnapshotCache, publisher poller.SnapshotPublisher, logger *slog.Logger) (*monitor, error) {
	executor, err := probe.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	inventory := poller.NewInventoryProvider(st, cfg.FallbackEnabled(), logger)
	tracker := poller.NewTracker(st, logger)

	cycle := poller.NewCycle(inventory, executor, tracker, cache, publisher, poller.CycleConfig{
		ProbeTimeout:        cfg.GetProbeTimeout(),
		MaxConcurrentProbes: cfg.MaxConcurrentProbes,
	}, logger)

	logger.Info("monitor initialized",
		"probe_method", executor.Method(),
		"probe_timeout", executor.Timeout(),
		"max_concurrent_probes", cfg.MaxConcurrentProbes,
		"inventory_fallback", cfg.FallbackEnabled(),
	)

	return &monitor{executor: executor, cycle: cycle}, nil
}

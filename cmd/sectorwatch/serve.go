package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sectorwatch/sectorwatch/internal/api"
	"github.com/sectorwatch/sectorwatch/internal/api/common"
	"github.com/sectorwatch/sectorwatch/internal/auth"
	"github.com/sectorwatch/sectorwatch/internal/eventbus"
	"github.com/sectorwatch/sectorwatch/internal/poller"
	"github.com/sectorwatch/sectorwatch/internal/publish"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor and its HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger := initLogger(cfg.Logging, os.Stdout)
		logger.Info("Starting SectorWatch",
			"version", version,
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
		)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		authService, err := auth.FromConfig(cfg.Auth)
		if err != nil {
			return fmt.Errorf("failed to initialize auth service: %w", err)
		}

		cache := poller.NewSnapshotCache()

		// Publishers
		var publishers []publish.Publisher

		var hub *publish.Hub
		if cfg.Publish.WebSocket.Enabled {
			bus := eventbus.NewEventBus(cfg.Publish.WebSocket.BufferSize)
			defer bus.Close()
			hub = publish.NewHub(bus, cache.Current, cfg.Publish.WebSocket, logger)
			publishers = append(publishers, hub)
		}

		if cfg.Publish.NATS.Enabled {
			natsPub, err := publish.ConnectNATS(cfg.Publish.NATS, logger)
			if err != nil {
				return err
			}
			defer natsPub.Close()
			publishers = append(publishers, natsPub)
		}

		fanout := publish.NewFanout(publishers...)

		mon, err := newMonitor(cfg.Monitor, st, cache, fanout, logger)
		if err != nil {
			return err
		}

		scheduler := poller.NewScheduler(mon.cycle, cfg.Monitor.GetCycleInterval(), logger)

		deps := &common.Dependencies{
			Store:     st,
			Auth:      authService,
			Snapshots: cache,
			Scheduler: scheduler,
			Publisher: fanout,
			Logger:    logger,

			HistoryLimit: cfg.Monitor.HistoryLimit,
		}
		if hub != nil {
			deps.WebSocket = hub.ServeWS
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      api.NewRouter(cfg, deps),
			ReadTimeout:  cfg.Server.GetReadTimeout(),
			WriteTimeout: cfg.Server.GetWriteTimeout(),
		}

		g, gctx := errgroup.WithContext(ctx)

		if hub != nil {
			g.Go(func() error {
				hub.Run(gctx)
				return nil
			})
		}

		g.Go(func() error {
			if err := scheduler.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			logger.Info("HTTP server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", "error", err)
			}
			return nil
		})

		err = g.Wait()
		logger.Info("Server stopped", "scheduler", scheduler.Stats())
		return err
	},
}

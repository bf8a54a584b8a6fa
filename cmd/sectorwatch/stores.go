package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sectorwatch/sectorwatch/internal/config"
	"github.com/sectorwatch/sectorwatch/internal/models"
	"github.com/sectorwatch/sectorwatch/internal/store"
	"github.com/sectorwatch/sectorwatch/internal/store/memory"
	"github.com/sectorwatch/sectorwatch/internal/store/postgres"
	"github.com/sectorwatch/sectorwatch/internal/store/sqlite"
)

// seeder is implemented by the SQL stores.
type seeder interface {
	Seed(ctx context.Context, sectors []models.Sector, devices []models.Device, links []models.Link) error
}

// openStore opens the configured driver. SQL drivers are migrated on open and
// seeded from database.seed_file when one is set.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (store.Store, error) {
	logger = logger.With("component", "store", "driver", cfg.Driver)

	var (
		st  store.Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		st, err = postgres.Open(ctx, cfg)
	case "sqlite":
		st, err = sqlite.New(ctx, cfg.Path)
	case "memory":
		st, err = memory.NewFromSeed(cfg.SeedFile)
		if err == nil {
			logger.Info("memory store ready", "seed_file", cfg.SeedFile)
		}
		return st, err
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("store opened and migrated")

	if cfg.SeedFile != "" {
		if err := seedStore(ctx, st, cfg.SeedFile); err != nil {
			st.Close()
			return nil, err
		}
		logger.Info("inventory seeded", "seed_file", cfg.SeedFile)
	}
	return st, nil
}

func seedStore(ctx context.Context, st store.Store, path string) error {
	s, ok := st.(seeder)
	if !ok {
		return fmt.Errorf("store does not support seeding")
	}
	seed, err := memory.LoadSeed(path)
	if err != nil {
		return err
	}
	if err := s.Seed(ctx, seed.Sectors, seed.Devices, seed.Links); err != nil {
		return fmt.Errorf("failed to seed inventory: %w", err)
	}
	return nil
}

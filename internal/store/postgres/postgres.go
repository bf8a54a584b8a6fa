// Package postgres implements store.Store on PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sectorwatch/sectorwatch/internal/config"
	"github.com/sectorwatch/sectorwatch/internal/database"
	"github.com/sectorwatch/sectorwatch/internal/models"
	"github.com/sectorwatch/sectorwatch/internal/store"
)

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects, runs migrations and returns a ready store.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	pool, err := database.OpenPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.RunPoolMigrations(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) ListSectors(ctx context.Context) ([]models.Sector, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, COALESCE(ip, '') FROM sectors ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sectors: %w", err)
	}
	sectors, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Sector, error) {
		var sec models.Sector
		err := row.Scan(&sec.ID, &sec.Name, &sec.IP)
		return sec, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sectors: %w", err)
	}
	return sectors, nil
}

func (s *Store) ListDevices(ctx context.Context, sectorID string) ([]models.Device, error) {
	query := `SELECT id, sector_id, name, COALESCE(ip, '') FROM devices`
	var args []any
	if sectorID != "" {
		query += ` WHERE sector_id = $1`
		args = append(args, sectorID)
	}
	query += ` ORDER BY sector_id, name, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	devices, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Device, error) {
		var d models.Device
		err := row.Scan(&d.ID, &d.SectorID, &d.Name, &d.IP)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan devices: %w", err)
	}
	return devices, nil
}

func (s *Store) ListLinks(ctx context.Context) ([]models.Link, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, source_id, target_id FROM links ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Link, error) {
		var l models.Link
		err := row.Scan(&l.ID, &l.SourceID, &l.TargetID)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan links: %w", err)
	}
	return links, nil
}

func (s *Store) AppendHistory(ctx context.Context, event models.HistoryEvent) (models.HistoryEvent, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO history (timestamp, sector_id, reason)
		 VALUES (COALESCE($1, now()), $2, $3)
		 RETURNING id, timestamp`,
		nullTime(event), event.SectorID, event.Reason,
	).Scan(&event.ID, &event.Timestamp)
	if err != nil {
		return event, fmt.Errorf("failed to insert history: %w", err)
	}
	return event, nil
}

func (s *Store) ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, sector_id, reason
		FROM history
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`, store.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.HistoryEvent, error) {
		var ev models.HistoryEvent
		err := row.Scan(&ev.ID, &ev.Timestamp, &ev.SectorID, &ev.Reason)
		return ev, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan history: %w", err)
	}
	return events, nil
}

func (s *Store) ClearHistory(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func nullTime(event models.HistoryEvent) any {
	if event.Timestamp.IsZero() {
		return nil
	}
	return event.Timestamp
}

// Seed upserts inventory rows in one transaction using a single batch.
func (s *Store) Seed(ctx context.Context, sectors []models.Sector, devices []models.Device, links []models.Link) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for _, sec := range sectors {
		batch.Queue(`INSERT INTO sectors (id, name, ip) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, ip = EXCLUDED.ip`,
			sec.ID, sec.Name, database.NullString(sec.IP))
	}
	for _, d := range devices {
		batch.Queue(`INSERT INTO devices (id, sector_id, name, ip) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET sector_id = EXCLUDED.sector_id, name = EXCLUDED.name, ip = EXCLUDED.ip`,
			d.ID, d.SectorID, d.Name, database.NullString(d.IP))
	}
	for _, l := range links {
		batch.Queue(`INSERT INTO links (id, source_id, target_id) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET source_id = EXCLUDED.source_id, target_id = EXCLUDED.target_id`,
			l.ID, l.SourceID, l.TargetID)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to seed inventory: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

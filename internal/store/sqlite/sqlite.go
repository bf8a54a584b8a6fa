// Package sqlite implements store.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sectorwatch/sectorwatch/internal/database"
	"github.com/sectorwatch/sectorwatch/internal/models"
	"github.com/sectorwatch/sectorwatch/internal/store"
)

// Repository implements store.Store using SQLite.
type Repository struct {
	db *sql.DB
}

var _ store.Store = (*Repository)(nil)

// New opens the database at dbPath and applies migrations.
func New(ctx context.Context, dbPath string) (*Repository, error) {
	db, err := database.OpenSQLite(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	if err := database.RunMigrations(db, database.DialectSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) ListSectors(ctx context.Context) ([]models.Sector, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, ip FROM sectors ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sectors: %w", err)
	}
	defer rows.Close()

	sectors := make([]models.Sector, 0)
	for rows.Next() {
		var (
			s  models.Sector
			ip sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &ip); err != nil {
			return nil, fmt.Errorf("failed to scan sector: %w", err)
		}
		s.IP = database.FromNullString(ip)
		sectors = append(sectors, s)
	}
	return sectors, rows.Err()
}

func (r *Repository) ListDevices(ctx context.Context, sectorID string) ([]models.Device, error) {
	query := `SELECT id, sector_id, name, ip FROM devices`
	var args []any
	if sectorID != "" {
		query += ` WHERE sector_id = ?`
		args = append(args, sectorID)
	}
	query += ` ORDER BY sector_id, name, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := make([]models.Device, 0)
	for rows.Next() {
		var (
			d  models.Device
			ip sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.SectorID, &d.Name, &ip); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		d.IP = database.FromNullString(ip)
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *Repository) ListLinks(ctx context.Context) ([]models.Link, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, source_id, target_id FROM links ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	links := make([]models.Link, 0)
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.ID, &l.SourceID, &l.TargetID); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *Repository) AppendHistory(ctx context.Context, event models.HistoryEvent) (models.HistoryEvent, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO history (timestamp_ns, sector_id, reason) VALUES (?, ?, ?)`,
		event.Timestamp.UnixNano(), event.SectorID, event.Reason,
	)
	if err != nil {
		return event, fmt.Errorf("failed to insert history: %w", err)
	}
	if event.ID, err = res.LastInsertId(); err != nil {
		return event, fmt.Errorf("failed to read history id: %w", err)
	}
	return event, nil
}

func (r *Repository) ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp_ns, sector_id, reason
		FROM history
		ORDER BY timestamp_ns DESC, id DESC
		LIMIT ?
	`, store.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	events := make([]models.HistoryEvent, 0)
	for rows.Next() {
		var (
			ev models.HistoryEvent
			ns int64
		)
		if err := rows.Scan(&ev.ID, &ns, &ev.SectorID, &ev.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		ev.Timestamp = time.Unix(0, ns).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *Repository) ClearHistory(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Seed upserts inventory rows in one transaction. Existing rows are updated
// in place so cascades never fire.
func (r *Repository) Seed(ctx context.Context, sectors []models.Sector, devices []models.Device, links []models.Link) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range sectors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sectors (id, name, ip) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, ip = excluded.ip`,
			s.ID, s.Name, database.NullString(s.IP),
		); err != nil {
			return fmt.Errorf("failed to seed sector %s: %w", s.ID, err)
		}
	}
	for _, d := range devices {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO devices (id, sector_id, name, ip) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET sector_id = excluded.sector_id, name = excluded.name, ip = excluded.ip`,
			d.ID, d.SectorID, d.Name, database.NullString(d.IP),
		); err != nil {
			return fmt.Errorf("failed to seed device %s: %w", d.ID, err)
		}
	}
	for _, l := range links {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO links (id, source_id, target_id) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET source_id = excluded.source_id, target_id = excluded.target_id`,
			l.ID, l.SourceID, l.TargetID,
		); err != nil {
			return fmt.Errorf("failed to seed link %s: %w", l.ID, err)
		}
	}

	return tx.Commit()
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

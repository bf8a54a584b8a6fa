// Package database opens the SQL backends and runs their embedded migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/sectorwatch/sectorwatch/internal/config"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// OpenPool connects to PostgreSQL and verifies the connection.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.Pool.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Pool.MaxConns)
	}
	if cfg.Pool.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.Pool.MinConns)
	}
	if cfg.Pool.MaxConnLifetimeMinutes > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.Pool.MaxConnLifetimeMinutes) * time.Minute
	}
	if cfg.Pool.MaxConnIdleTimeMinutes > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.Pool.MaxConnIdleTimeMinutes) * time.Minute
	}
	if cfg.Pool.HealthCheckPeriodSeconds > 0 {
		poolCfg.HealthCheckPeriod = time.Duration(cfg.Pool.HealthCheckPeriodSeconds) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file. ":memory:"
// is accepted for tests.
func OpenSQLite(ctx context.Context, dbPath string) (*sql.DB, error) {
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if dbPath != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// RunMigrations applies all pending migrations of the given dialect.
func RunMigrations(db *sql.DB, dialect string) error {
	gooseDialect := dialect
	switch dialect {
	case DialectPostgres:
	case DialectSQLite:
		gooseDialect = "sqlite3"
	default:
		return fmt.Errorf("unsupported migration dialect: %s", dialect)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(EmbeddedMigrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, path.Join("migrations", dialect)); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	return nil
}

// RunPoolMigrations runs the postgres migrations over a pgx pool.
func RunPoolMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return RunMigrations(db, DialectPostgres)
}

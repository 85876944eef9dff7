// Package db opens the coordinator's sqlite slot ledger. Opening runs three
// stages in order: connection pragmas, the embedded schema migrations and
// the startup reconciliation that expires slots whose presigned URL lapsed
// while the coordinator was down.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// TimeLayout is the text layout used for every timestamp column.
const TimeLayout = time.RFC3339

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Options configures Open. Path is required.
type Options struct {
	Path   string
	Logger *slog.Logger

	// Now stamps the startup reconciliation. Defaults to time.Now.
	Now func() time.Time
}

type DB struct {
	conn   *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// New opens the ledger at dbPath with default options.
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	return Open(context.Background(), Options{Path: dbPath, Logger: logger})
}

// Open creates the database directory, opens a single-connection pool and
// brings the ledger up to date.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	d := &DB{conn: conn, logger: opts.Logger, now: opts.Now}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	if d.now == nil {
		d.now = time.Now
	}

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"configure", d.configure},
		{"migrate", d.migrate},
		{"reconcile", d.reconcile},
	}
	for _, s := range stages {
		if err := s.run(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return d, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Conn() *sql.DB {
	return d.conn
}

// ExpireSlots marks every issued slot whose presigned URL has lapsed as
// expired and returns how many rows changed.
func (d *DB) ExpireSlots(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.conn.ExecContext(ctx,
		`UPDATE slots SET status = 'expired' WHERE status = 'issued' AND expires_at < ?`,
		now.UTC().Format(TimeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AppliedMigrations returns the recorded migration names in apply order.
func (d *DB) AppliedMigrations(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT name FROM _migrations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (d *DB) configure(ctx context.Context) error {
	if err := d.conn.PingContext(ctx); err != nil {
		return err
	}
	for _, p := range pragmas {
		if _, err := d.conn.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// migrate applies every embedded migration not yet recorded, each in its
// own transaction together with its _migrations row.
func (d *DB) migrate(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	applied, err := d.AppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, n := range applied {
		done[n] = true
	}

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, path := range names {
		name := filepath.Base(path)
		if done[name] {
			continue
		}
		if err := d.applyMigration(ctx, path, name); err != nil {
			return err
		}
		d.logger.Info("applied migration", "name", name)
	}
	return nil
}

func (d *DB) applyMigration(ctx context.Context, path, name string) error {
	content, err := migrationsFS.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return tx.Commit()
}

// reconcile expires slots that lapsed while nothing was sweeping. A failure
// is logged and does not block startup.
func (d *DB) reconcile(ctx context.Context) error {
	n, err := d.ExpireSlots(ctx, d.now())
	if err != nil {
		d.logger.Warn("failed to expire stale slots", "error", err)
		return nil
	}
	if n > 0 {
		d.logger.Info("expired stale slots", "count", n)
	}
	return nil
}

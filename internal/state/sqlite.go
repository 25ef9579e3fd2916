package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cmoses01/DyaGram/internal/topology"
)

// SQLitePath is the default database location inside a workspace.
func SQLitePath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".info", "dyagram.db")
}

// SQLiteStore keeps every saved snapshot; the newest row per site is the
// baseline.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ioError("", "open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, ioError("", "migrate", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site TEXT NOT NULL,
			taken_at TEXT NOT NULL,
			body TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_site_id ON snapshots(site, id);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, site string) (topology.Snapshot, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM snapshots WHERE site = ? ORDER BY id DESC LIMIT 1`, site,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return topology.Snapshot{}, false, nil
	}
	if err != nil {
		return topology.Snapshot{}, false, ioError(site, "load", err)
	}
	snap, err := decode([]byte(body))
	if err != nil {
		return topology.Snapshot{}, false, ioError(site, "load", err)
	}
	return snap, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, site string, snap topology.Snapshot) error {
	if err := validSite(site); err != nil {
		return ioError(site, "save", err)
	}
	body, err := encode(snap)
	if err != nil {
		return ioError(site, "save", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (site, taken_at, body) VALUES (?, ?, ?)`,
		site, time.Now().UTC().Format(time.RFC3339Nano), string(body),
	); err != nil {
		return ioError(site, "save", err)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, site string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, taken_at, body FROM snapshots WHERE site = ? ORDER BY id DESC LIMIT ?`, site, limit,
	)
	if err != nil {
		return nil, ioError(site, "history", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			takenAt string
			body    string
		)
		if err := rows.Scan(&e.ID, &takenAt, &body); err != nil {
			return nil, ioError(site, "history", err)
		}
		e.Site = site
		if t, err := time.Parse(time.RFC3339Nano, takenAt); err == nil {
			e.TakenAt = t.UTC()
		}
		if e.Snapshot, err = decode([]byte(body)); err != nil {
			return nil, ioError(site, "history", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError(site, "history", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cmoses01/DyaGram/internal/topology"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS dyagram_snapshots (
	id BIGSERIAL PRIMARY KEY,
	site TEXT NOT NULL,
	taken_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	body JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS dyagram_snapshots_site_id ON dyagram_snapshots (site, id DESC);`

// PostgresStore keeps snapshot history in a shared database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, ioError("", "open", errors.New("database url is required"))
	}
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, ioError("", "open", err)
	}

	// Verify connectivity early.
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, ioError("", "open", err)
	}
	if _, err := p.Exec(ctx, postgresSchema); err != nil {
		p.Close()
		return nil, ioError("", "migrate", fmt.Errorf("migrate failed: %w", err))
	}
	return &PostgresStore{pool: p}, nil
}

func (s *PostgresStore) Load(ctx context.Context, site string) (topology.Snapshot, bool, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM dyagram_snapshots WHERE site = $1 ORDER BY id DESC LIMIT 1`, site,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return topology.Snapshot{}, false, nil
	}
	if err != nil {
		return topology.Snapshot{}, false, ioError(site, "load", err)
	}
	snap, err := decode(body)
	if err != nil {
		return topology.Snapshot{}, false, ioError(site, "load", err)
	}
	return snap, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, site string, snap topology.Snapshot) error {
	if err := validSite(site); err != nil {
		return ioError(site, "save", err)
	}
	body, err := encode(snap)
	if err != nil {
		return ioError(site, "save", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO dyagram_snapshots (site, body) VALUES ($1, $2::jsonb)`, site, string(body),
	); err != nil {
		return ioError(site, "save", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, site string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, taken_at, body FROM dyagram_snapshots WHERE site = $1 ORDER BY id DESC LIMIT $2`, site, limit,
	)
	if err != nil {
		return nil, ioError(site, "history", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			takenAt time.Time
			body    []byte
		)
		if err := rows.Scan(&e.ID, &takenAt, &body); err != nil {
			return nil, ioError(site, "history", err)
		}
		e.Site = site
		e.TakenAt = takenAt.UTC()
		if e.Snapshot, err = decode(body); err != nil {
			return nil, ioError(site, "history", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError(site, "history", err)
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

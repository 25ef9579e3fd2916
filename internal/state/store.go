// Package state persists topology baselines per site and reconciles fresh
// snapshots against them.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cmoses01/DyaGram/internal/topology"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Store holds one baseline snapshot per site.
type Store interface {
	// Load returns the baseline for site. ok is false when none exists.
	Load(ctx context.Context, site string) (snap topology.Snapshot, ok bool, err error)
	Save(ctx context.Context, site string, snap topology.Snapshot) error
	Close() error
}

// Entry is one saved snapshot in a store that keeps history.
type Entry struct {
	ID       int64             `json:"id"`
	Site     string            `json:"site"`
	TakenAt  time.Time         `json:"taken_at"`
	Snapshot topology.Snapshot `json:"snapshot"`
}

// Historian is implemented by stores that keep every saved snapshot. The
// newest entry is the baseline.
type Historian interface {
	History(ctx context.Context, site string, limit int) ([]Entry, error)
}

// Open returns the store for backend. workspace is the file store root and
// the default sqlite location.
func Open(ctx context.Context, backend, dsn, workspace string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileStore(workspace), nil
	case BackendSQLite:
		if strings.TrimSpace(dsn) == "" {
			dsn = SQLitePath(workspace)
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, ioError("", "open", err)
			}
		}
		return OpenSQLite(ctx, dsn)
	case BackendPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

func ioError(site, op string, err error) error {
	return &topology.StateIOError{Site: site, Op: op, Err: err}
}

func encode(snap topology.Snapshot) ([]byte, error) {
	if snap.Devices == nil {
		snap.Devices = []topology.Device{}
	}
	return json.Marshal(snap)
}

func decode(body []byte) (topology.Snapshot, error) {
	var snap topology.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return topology.Snapshot{}, fmt.Errorf("corrupt snapshot: %w", err)
	}
	return snap, nil
}

func validSite(site string) error {
	if strings.TrimSpace(site) == "" {
		return fmt.Errorf("site name is required")
	}
	if strings.ContainsAny(site, `/\`) || site == "." || site == ".." {
		return fmt.Errorf("invalid site name %q", site)
	}
	return nil
}

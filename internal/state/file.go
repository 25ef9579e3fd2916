package state

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cmoses01/DyaGram/internal/topology"
)

// StateFileName is the baseline file inside each site directory.
const StateFileName = "state.json"

// FileStore keeps the baseline as <root>/<site>/state.json.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	if root == "" {
		root = "."
	}
	return &FileStore{root: root}
}

func (s *FileStore) Path(site string) string {
	return filepath.Join(s.root, site, StateFileName)
}

func (s *FileStore) Load(_ context.Context, site string) (topology.Snapshot, bool, error) {
	if err := validSite(site); err != nil {
		return topology.Snapshot{}, false, ioError(site, "load", err)
	}
	body, err := os.ReadFile(s.Path(site))
	if errors.Is(err, fs.ErrNotExist) {
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

// Save writes the snapshot to a temporary file and renames it into place so
// a crash never leaves a truncated baseline.
func (s *FileStore) Save(_ context.Context, site string, snap topology.Snapshot) error {
	if err := validSite(site); err != nil {
		return ioError(site, "save", err)
	}
	body, err := encode(snap)
	if err != nil {
		return ioError(site, "save", err)
	}
	dir := filepath.Dir(s.Path(site))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioError(site, "save", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return ioError(site, "save", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return ioError(site, "save", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return ioError(site, "save", err)
	}
	if err := tmp.Close(); err != nil {
		return ioError(site, "save", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(site)); err != nil {
		return ioError(site, "save", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

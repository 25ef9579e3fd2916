package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrNotInitialized     = errors.New("workspace is not initialized; run \"dyagram init <site>\"")
	ErrAlreadyInitialized = errors.New("workspace is already initialized")
	ErrSiteExists         = errors.New("site already exists")
)

const (
	infoDir  = ".info"
	infoFile = "info.json"
)

type info struct {
	CurrentSite string `json:"current_site"`
}

// Workspace is a directory holding one subdirectory per site plus
// .info/info.json naming the current site.
type Workspace struct {
	Root string
}

func NewWorkspace(root string) Workspace {
	if root == "" {
		root = "."
	}
	return Workspace{Root: root}
}

func (w Workspace) infoPath() string {
	return filepath.Join(w.Root, infoDir, infoFile)
}

// Init creates the first site and makes it current.
func (w Workspace) Init(site string) error {
	if err := checkSiteName(site); err != nil {
		return err
	}
	if _, err := os.Stat(w.infoPath()); err == nil {
		return ErrAlreadyInitialized
	}
	if err := os.MkdirAll(filepath.Join(w.Root, site), 0o755); err != nil {
		return fmt.Errorf("create site: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(w.Root, infoDir), 0o755); err != nil {
		return fmt.Errorf("create info dir: %w", err)
	}
	return w.writeInfo(info{CurrentSite: site})
}

func (w Workspace) CurrentSite() (string, error) {
	data, err := os.ReadFile(w.infoPath())
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotInitialized
	}
	if err != nil {
		return "", fmt.Errorf("read workspace info: %w", err)
	}
	var in info
	if err := json.Unmarshal(data, &in); err != nil {
		return "", fmt.Errorf("parse workspace info: %w", err)
	}
	if in.CurrentSite == "" {
		return "", ErrNotInitialized
	}
	return in.CurrentSite, nil
}

// Sites lists the site directories, skipping hidden ones.
func (w Workspace) Sites() ([]string, error) {
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (w Workspace) NewSite(site string) error {
	if err := checkSiteName(site); err != nil {
		return err
	}
	if _, err := w.CurrentSite(); err != nil {
		return err
	}
	err := os.Mkdir(filepath.Join(w.Root, site), 0o755)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %q", ErrSiteExists, site)
	}
	if err != nil {
		return fmt.Errorf("create site: %w", err)
	}
	return nil
}

func (w Workspace) SwitchSite(site string) error {
	if _, err := w.CurrentSite(); err != nil {
		return err
	}
	st, err := os.Stat(filepath.Join(w.Root, site))
	if err != nil || !st.IsDir() || checkSiteName(site) != nil {
		return fmt.Errorf("%w: %q", ErrSiteNotFound, site)
	}
	return w.writeInfo(info{CurrentSite: site})
}

func (w Workspace) writeInfo(in info) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	if err := os.WriteFile(w.infoPath(), data, 0o644); err != nil {
		return fmt.Errorf("write workspace info: %w", err)
	}
	return nil
}

func checkSiteName(site string) error {
	site = strings.TrimSpace(site)
	if site == "" {
		return errors.New("site name is required")
	}
	if strings.HasPrefix(site, ".") || strings.ContainsAny(site, `/\`) {
		return fmt.Errorf("invalid site name %q", site)
	}
	return nil
}

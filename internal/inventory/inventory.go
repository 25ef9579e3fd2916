// Package inventory reads the per-site device address lists and manages the
// site workspace layout.
package inventory

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrSiteNotFound = errors.New("site not found")

// Inventory maps a site name to the management addresses of its devices.
type Inventory map[string][]string

// Load reads an inventory file of the form
//
//	site-a:
//	  - 10.0.0.1
//	  - 10.0.0.2
func Load(path string) (Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Inventory, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	inv := make(Inventory, len(raw))
	for site, addrs := range raw {
		site = strings.TrimSpace(site)
		if site == "" {
			return nil, fmt.Errorf("parse inventory: empty site name")
		}
		inv[site] = dedupe(addrs)
	}
	return inv, nil
}

// Addresses returns the device addresses of site in file order.
func (inv Inventory) Addresses(site string) ([]string, error) {
	addrs, ok := inv[site]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in the inventory", ErrSiteNotFound, site)
	}
	out := make([]string, len(addrs))
	copy(out, addrs)
	return out, nil
}

func (inv Inventory) Sites() []string {
	out := make([]string, 0, len(inv))
	for site := range inv {
		out = append(out, site)
	}
	sort.Strings(out)
	return out
}

func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

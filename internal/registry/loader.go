package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"llamactld/internal/common/fsutil"
	"llamactld/internal/config"
	"llamactld/pkg/types"
)

// LoadDir scans a directory for *.gguf files and builds a catalog from
// filenames. ID is the full filename (including extension); Path is the
// absolute file path. Other metadata is empty.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		// Full filename as ID (e.g., "llama-3.1-8b-q4_k_m.gguf")
		p := filepath.Join(abs, name)
		models = append(models, types.Model{ID: name, Name: name, Path: p})
	}
	return models, nil
}

// Merge overlays declared models onto the scanned catalog. A declared entry
// with the same ID wins, so operators can attach extra llama-server arguments
// or a friendlier name to a scanned file. Declared models with their own path
// are simply added. The result is sorted by ID.
func Merge(scanned []types.Model, declared []config.ModelConfig) []types.Model {
	byID := make(map[string]types.Model, len(scanned))
	for _, m := range scanned {
		byID[m.ID] = m
	}
	for _, d := range declared {
		if d.ID == "" {
			continue
		}
		m, ok := byID[d.ID]
		if !ok {
			m = types.Model{ID: d.ID}
		}
		if d.Name != "" {
			m.Name = d.Name
		}
		if m.Name == "" {
			m.Name = d.ID
		}
		if d.Path != "" {
			p, err := fsutil.ExpandHome(d.Path)
			if err == nil {
				m.Path = p
			}
		}
		if len(d.Args) > 0 {
			m.Args = append([]string(nil), d.Args...)
		}
		byID[d.ID] = m
	}
	out := make([]types.Model, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

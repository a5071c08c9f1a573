package registry

import (
	"os"
	"path/filepath"
	"testing"

	"llamactld/internal/config"
	"llamactld/pkg/types"
)

func TestLoadDirFiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"a.gguf",
		"b.GGUF", // case-insensitive
		"not-model.txt",
		"model.bin",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d: %+v", len(models), models)
	}
	for _, m := range models {
		if m.ID == "" || m.Path == "" || !filepath.IsAbs(m.Path) {
			t.Fatalf("bad model entry: %+v", m)
		}
	}
}

func TestLoadDirExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "llamactld-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	if err := os.WriteFile(filepath.Join(hTmp, "x.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	models, err := LoadDir("~/" + filepath.Base(hTmp))
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x.gguf" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestMergeOverlaysDeclaredModels(t *testing.T) {
	scanned := []types.Model{
		{ID: "a.gguf", Name: "a.gguf", Path: "/models/a.gguf"},
		{ID: "b.gguf", Name: "b.gguf", Path: "/models/b.gguf"},
	}
	merged := Merge(scanned, []config.ModelConfig{
		{ID: "a.gguf", Name: "Model A", Args: []string{"-c", "4096"}},
		{ID: "extra", Name: "Extra", Path: "/models/extra.gguf"},
		{ID: ""}, // ignored
	})
	if len(merged) != 3 {
		t.Fatalf("merged = %+v, want 3 entries", merged)
	}
	byID := map[string]types.Model{}
	for _, m := range merged {
		byID[m.ID] = m
	}
	a := byID["a.gguf"]
	if a.Name != "Model A" || a.Path != "/models/a.gguf" || len(a.Args) != 2 {
		t.Fatalf("declared overlay lost: %+v", a)
	}
	b := byID["b.gguf"]
	if b.Name != "b.gguf" || len(b.Args) != 0 {
		t.Fatalf("scanned entry changed: %+v", b)
	}
	extra := byID["extra"]
	if extra.Path != "/models/extra.gguf" || extra.Name != "Extra" {
		t.Fatalf("declared-only entry wrong: %+v", extra)
	}
	// Sorted by ID.
	if merged[0].ID > merged[1].ID || merged[1].ID > merged[2].ID {
		t.Fatalf("not sorted: %+v", merged)
	}
}

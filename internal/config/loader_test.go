package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `
addr: :9999
models_dir: /tmp/models
llama:
  bin: /opt/llama/llama-server
  gpu0_port: 31081
  gpu1_port: 31088
gpu:
  threshold_mib: 50
  mock_mode: true
  mock_data_path: /tmp/smi.txt
restart:
  max_restarts: 5
  backoff_seconds: 2
models:
  - id: tinyllama-q4
    name: TinyLlama
    path: /tmp/models/tinyllama.gguf
    args: ["-c", "4096"]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/tmp/models" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Llama.Bin != "/opt/llama/llama-server" || cfg.Llama.GPU0Port != 31081 || cfg.Llama.GPU1Port != 31088 {
		t.Fatalf("unexpected llama cfg: %+v", cfg.Llama)
	}
	if cfg.GPU.ThresholdMiB != 50 || !cfg.GPU.MockMode || cfg.GPU.MockDataPath != "/tmp/smi.txt" {
		t.Fatalf("unexpected gpu cfg: %+v", cfg.GPU)
	}
	if cfg.Restart.MaxRestarts != 5 || cfg.Restart.BackoffSeconds != 2 {
		t.Fatalf("unexpected restart cfg: %+v", cfg.Restart)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].ID != "tinyllama-q4" || len(cfg.Models[0].Args) != 2 {
		t.Fatalf("unexpected models: %+v", cfg.Models)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json",
		`{"addr":":7070","models_dir":"/m","llama":{"bin":"llama-server"},"health":{"interval_seconds":3}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.Llama.Bin != "llama-server" || cfg.Health.IntervalSeconds != 3 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodels_dir=\"/x\"\n[llama]\nbin=\"llama-server\"\n[cors]\nenabled=true\nallowed_origins=[\"*\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelsDir != "/x" || cfg.Llama.Bin != "llama-server" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if !cfg.CORS.Enabled || len(cfg.CORS.AllowedOrigins) != 1 {
		t.Fatalf("unexpected cors cfg: %+v", cfg.CORS)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestLoadInvalidContent(t *testing.T) {
	d := t.TempDir()
	cases := map[string]string{
		"bad.yaml": "addr: :8080\n: broken\n",
		"bad.json": `{ "addr": ":8080", "models_dir": }`,
		"bad.toml": "addr=:8080\nmodels_dir\n",
	}
	for name, content := range cases {
		p := writeTempFile(t, d, name, content)
		if _, err := Load(p); err == nil {
			t.Fatalf("expected unmarshal error for %s", name)
		}
	}
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

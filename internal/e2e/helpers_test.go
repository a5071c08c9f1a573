package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llamactld/internal/config"
	"llamactld/internal/gpu"
	"llamactld/internal/httpapi"
	"llamactld/internal/manager"
	"llamactld/internal/proxy"
	"llamactld/internal/registry"
)

// buildFakeServer compiles the fake llama-server used as the supervised
// subprocess and returns its path.
func buildFakeServer(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "fake_llama_server")
	cmd := exec.Command("go", "build", "-o", bin, "../manager/testdata/fake_llama_server.go")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake server: %v: %s", err, string(out))
	}
	return bin
}

// writeModelsDir creates a temp models directory holding one empty .gguf
// file per given base name and returns its path.
func writeModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n+".gguf"), []byte("gguf"), 0o644); err != nil {
			t.Fatalf("write model file: %v", err)
		}
	}
	return dir
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

type stubProber struct {
	devs []gpu.Device
}

func (s *stubProber) Probe(ctx context.Context) ([]gpu.Device, error) { return s.devs, nil }

// newTestServer wires the full stack the daemon binary assembles: registry
// scan, manager, inference router, and the HTTP mux, served over httptest.
func newTestServer(t *testing.T, modelsDir string, declared []config.ModelConfig) (*httptest.Server, *manager.Manager) {
	t.Helper()

	scanned, err := registry.LoadDir(modelsDir)
	if err != nil {
		t.Fatalf("load models dir: %v", err)
	}
	models := registry.Merge(scanned, declared)

	mgr := manager.New(manager.Config{
		Models:   models,
		LlamaBin: buildFakeServer(t),
		GPU0Port: freePort(t),
		GPU1Port: freePort(t),
		Prober: &stubProber{devs: []gpu.Device{
			{Index: 0, Name: "NVIDIA GeForce RTX 3090", MemoryUsedMiB: 1, MemoryTotalMiB: 24576},
			{Index: 1, Name: "NVIDIA GeForce RTX 3090", MemoryUsedMiB: 1, MemoryTotalMiB: 24576},
		}},
		RestartBackoff:  20 * time.Millisecond,
		HealthInterval:  50 * time.Millisecond,
		StartupDeadline: 10 * time.Second,
		StopGrace:       3 * time.Second,
		Logger:          zerolog.Nop(),
	})
	t.Cleanup(mgr.Close)

	router := proxy.New(mgr, zerolog.Nop())
	srv := httptest.NewServer(httpapi.NewMux(mgr, router))
	t.Cleanup(srv.Close)
	return srv, mgr
}

// postJSON posts v as JSON and decodes the response body into out when out
// is non-nil, returning the status code.
func postJSON(t *testing.T, url string, v, out any) int {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		raw, _ := io.ReadAll(resp.Body)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				t.Fatalf("decode %s: %v: %s", url, err, raw)
			}
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

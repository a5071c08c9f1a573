package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"llamactld/internal/manager"
	"llamactld/pkg/types"
)

type resolverFunc func(modelID string) (string, error)

func (f resolverFunc) Resolve(modelID string) (string, error) { return f(modelID) }

func TestRouterForwardsByModel(t *testing.T) {
	var gotPath, gotBody string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cmpl-1"}`))
	}))
	defer backend.Close()

	r := New(resolverFunc(func(modelID string) (string, error) {
		if modelID != "m1" {
			t.Fatalf("resolver got %q", modelID)
		}
		return backend.URL, nil
	}), zerolog.Nop())

	body := `{"model":"m1","prompt":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/completions", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rr.Code, rr.Body.String())
	}
	if gotPath != "/v1/completions" {
		t.Fatalf("backend path = %q", gotPath)
	}
	if gotBody != body {
		t.Fatalf("backend body = %q, want original body", gotBody)
	}
}

func TestRouterRejectsMissingModel(t *testing.T) {
	r := New(resolverFunc(func(string) (string, error) {
		t.Fatal("resolver should not be called")
		return "", nil
	}), zerolog.Nop())

	for _, body := range []string{`{}`, `{"model":""}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/completions", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: code = %d, want 400", body, rr.Code)
		}
	}
}

func TestRouterModelNotLoaded(t *testing.T) {
	r := New(resolverFunc(func(modelID string) (string, error) {
		return "", manager.ErrModelNotLoaded(modelID)
	}), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"ghost"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rr.Code)
	}
	var er types.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil || er.Kind != "model_not_loaded" {
		t.Fatalf("payload = %s (%v)", rr.Body.String(), err)
	}
}

func TestRouterInstanceNotRunning(t *testing.T) {
	r := New(resolverFunc(func(modelID string) (string, error) {
		return "", manager.ErrInstanceUnhealthy(modelID, manager.StateRestarting)
	}), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/v1/completions", strings.NewReader(`{"model":"m1"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", rr.Code)
	}
}

func TestRouterUpstreamUnreachable(t *testing.T) {
	// A backend that is already gone.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := backend.URL
	backend.Close()

	r := New(resolverFunc(func(string) (string, error) { return target, nil }), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/v1/completions", strings.NewReader(`{"model":"m1"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("code = %d, want 502", rr.Code)
	}
	var er types.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil || er.Kind != "instance_unreachable" {
		t.Fatalf("payload = %s (%v)", rr.Body.String(), err)
	}
}

func TestReverseProxyCache(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()

	r := New(resolverFunc(func(string) (string, error) { return backend.URL, nil }), zerolog.Nop())
	u, _ := url.Parse(backend.URL)
	p1 := r.reverseProxy(u)
	p2 := r.reverseProxy(u)
	if p1 != p2 {
		t.Fatal("reverse proxy not cached per target")
	}
}

func TestUnreachableErrorNamesCurrentModel(t *testing.T) {
	// Two models resolve to the same target over time, as after a switch.
	// Errors must name the model of the failing request, not whichever one
	// first populated the proxy cache for that target.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := backend.URL
	backend.Close()

	r := New(resolverFunc(func(string) (string, error) { return target, nil }), zerolog.Nop())

	for _, model := range []string{"m1", "m2"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/completions",
			strings.NewReader(`{"model":"`+model+`"}`))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadGateway {
			t.Fatalf("model %s: code = %d, want 502", model, rr.Code)
		}
		var er types.ErrorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil {
			t.Fatalf("payload = %s (%v)", rr.Body.String(), err)
		}
		if !strings.Contains(er.Error, model) {
			t.Fatalf("error %q should name model %s", er.Error, model)
		}
	}
}

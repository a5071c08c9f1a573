// Package proxy routes OpenAI-compatible requests to the llama-server
// instance serving the requested model. The target is resolved per request
// from the lifecycle manager, so a switch takes effect on the next call
// without proxy restarts.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"llamactld/internal/manager"
	"llamactld/pkg/types"
)

// Resolver maps a model id to the base URL of its running instance.
type Resolver interface {
	Resolve(modelID string) (string, error)
}

// Router proxies /v1/* traffic. Reverse proxies are cached per target URL;
// resolution happens on every request.
type Router struct {
	resolver  Resolver
	transport *http.Transport
	log       zerolog.Logger

	rpMu    sync.Mutex
	rpCache map[string]*httputil.ReverseProxy
}

// New builds a Router with a shared keep-alive transport.
func New(resolver Resolver, log zerolog.Logger) *Router {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Router{
		resolver:  resolver,
		transport: tr,
		log:       log,
		rpCache:   map[string]*httputil.ReverseProxy{},
	}
}

// ServeHTTP handles any /v1/* request. The target instance is chosen by the
// "model" field of the JSON body; requests without one cannot be routed.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	modelID, body, err := extractModelAndBody(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}

	base, err := r.resolver.Resolve(modelID)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case manager.IsModelNotLoaded(err):
			status = http.StatusNotFound
		case manager.IsInstanceUnhealthy(err):
			status = http.StatusServiceUnavailable
		}
		proxiedTotal.WithLabelValues("rejected").Inc()
		writeError(w, status, err, manager.ErrorKind(err))
		return
	}

	target, err := url.Parse(base)
	if err != nil {
		proxiedTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusBadGateway, fmt.Errorf("invalid instance url: %w", err), "")
		return
	}

	// Restore body for proxying.
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))

	req = req.WithContext(context.WithValue(req.Context(), modelCtxKey{}, modelID))
	r.reverseProxy(target).ServeHTTP(w, req)
}

// modelCtxKey carries the resolved model id through the reverse proxy so
// its error handler can attribute failures to the right model.
type modelCtxKey struct{}

func requestModel(req *http.Request) string {
	if v, ok := req.Context().Value(modelCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// extractModelAndBody parses the request JSON body and extracts the "model"
// field, returning the raw bytes for re-use in the proxy.
func extractModelAndBody(req *http.Request) (string, []byte, error) {
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read body: %w", err)
	}
	_ = req.Body.Close()

	var tmp struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(raw, &tmp); err != nil {
		return "", nil, fmt.Errorf("invalid json: %w", err)
	}
	if tmp.Model == "" {
		return "", nil, errors.New("missing model field")
	}

	req.Body = io.NopCloser(bytes.NewReader(raw))
	req.ContentLength = int64(len(raw))
	return tmp.Model, raw, nil
}

func writeError(w http.ResponseWriter, status int, err error, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		Error: err.Error(),
		Kind:  kind,
		Code:  status,
	})
}

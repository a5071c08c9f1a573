package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"llamactld/internal/manager"
)

var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// reverseProxy returns the cached proxy for a target. Caching is keyed on
// the target alone because the same port serves different models across
// switches; per-request data like the model id travels in the request
// context, never in the closure.
func (r *Router) reverseProxy(target *url.URL) *httputil.ReverseProxy {
	key := target.String()

	r.rpMu.Lock()
	if p, ok := r.rpCache[key]; ok {
		r.rpMu.Unlock()
		return p
	}
	r.rpMu.Unlock()

	p := httputil.NewSingleHostReverseProxy(target)
	p.Transport = r.transport

	// Flush frequently to support chunked streaming (SSE-like).
	p.FlushInterval = 100 * time.Millisecond

	origDirector := p.Director
	p.Director = func(req *http.Request) {
		origDirector(req)

		// Make sure Host is target host (some clients depend on it).
		req.Host = target.Host

		// Remove hop-by-hop request headers.
		for _, h := range hopByHopHeaders {
			req.Header.Del(h)
		}
		// Connection header can list additional hop-by-hop headers.
		if c := req.Header.Get("Connection"); c != "" {
			for _, f := range strings.Split(c, ",") {
				req.Header.Del(strings.TrimSpace(f))
			}
		}
	}

	p.ModifyResponse = func(resp *http.Response) error {
		proxiedTotal.WithLabelValues("forwarded").Inc()
		for _, h := range hopByHopHeaders {
			resp.Header.Del(h)
		}
		if c := resp.Header.Get("Connection"); c != "" {
			for _, f := range strings.Split(c, ",") {
				resp.Header.Del(strings.TrimSpace(f))
			}
		}
		return nil
	}

	p.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		modelID := requestModel(req)
		uerr := manager.ErrInstanceUnreachable(modelID, err)
		r.log.Warn().Str("model", modelID).Str("target", key).Err(err).Msg("upstream unreachable")
		proxiedTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusBadGateway, uerr, manager.ErrorKind(uerr))
	}

	r.rpMu.Lock()
	r.rpCache[key] = p
	r.rpMu.Unlock()

	return p
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llamactld/pkg/types"
)

// Service defines the lifecycle methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	GPUStatus(ctx context.Context) types.GPUStatusResponse
	Load(ctx context.Context, modelID, gpuID string) (types.InstanceStatus, error)
	Unload(ctx context.Context, gpuID string) error
	Switch(ctx context.Context, modelID, gpuID string) (types.InstanceStatus, error)
	Logs(gpuID string, lines int) ([]string, error)
	Ready() bool
}

// NewMux builds the controller's HTTP handler. Management endpoints live
// under /api; inference traffic under /v1 is delegated to the passthrough
// handler.
func NewMux(svc Service, passthrough http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", handleModels(svc))
		r.Get("/status", handleStatus(svc))
		r.Get("/gpus", handleGPUs(svc))
		r.Post("/models/load", handleLoad(svc))
		r.Post("/models/unload", handleUnload(svc))
		r.Post("/models/switch", handleSwitch(svc))
		r.Get("/instances/{gpu}/logs", handleLogs(svc))
	})

	if passthrough != nil {
		r.Handle("/v1/*", passthrough)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no running instance"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// handleModels godoc
//
//	@Summary	List known models
//	@Produce	json
//	@Success	200	{object}	types.ModelsResponse
//	@Router		/api/models [get]
func handleModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	}
}

// handleStatus godoc
//
//	@Summary	Report managed instances
//	@Produce	json
//	@Success	200	{object}	types.StatusResponse
//	@Router		/api/status [get]
func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// handleGPUs godoc
//
//	@Summary	Probe GPU occupancy
//	@Produce	json
//	@Success	200	{object}	types.GPUStatusResponse
//	@Router		/api/gpus [get]
func handleGPUs(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.GPUStatus(r.Context()))
	}
}

// handleLoad godoc
//
//	@Summary	Load a model onto a GPU assignment
//	@Accept		json
//	@Produce	json
//	@Param		request	body		types.LoadRequest	true	"load request"
//	@Success	200		{object}	types.InstanceResponse
//	@Failure	409		{object}	types.ErrorResponse
//	@Router		/api/models/load [post]
func handleLoad(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LoadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Model) == "" {
			writeJSONError(w, http.StatusBadRequest, "model is required", "")
			return
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		inst, err := svc.Load(ctx, req.Model, req.GPU)
		if err != nil {
			writeManagerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.InstanceResponse{Instance: inst})
	}
}

// handleUnload godoc
//
//	@Summary	Unload the instance on a GPU assignment
//	@Accept		json
//	@Produce	json
//	@Param		request	body	types.UnloadRequest	true	"unload request"
//	@Success	204
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/api/models/unload [post]
func handleUnload(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UnloadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Unload(ctx, req.GPU); err != nil {
			writeManagerError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSwitch godoc
//
//	@Summary	Replace the model on a GPU assignment
//	@Accept		json
//	@Produce	json
//	@Param		request	body		types.SwitchRequest	true	"switch request"
//	@Success	200		{object}	types.InstanceResponse
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/api/models/switch [post]
func handleSwitch(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SwitchRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Model) == "" {
			writeJSONError(w, http.StatusBadRequest, "model is required", "")
			return
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		inst, err := svc.Switch(ctx, req.Model, req.GPU)
		if err != nil {
			writeManagerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.InstanceResponse{Instance: inst})
	}
}

// handleLogs godoc
//
//	@Summary	Tail subprocess output for an assignment
//	@Produce	json
//	@Param		gpu	path		string	true	"GPU assignment"
//	@Success	200	{object}	types.LogsResponse
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/api/instances/{gpu}/logs [get]
func handleLogs(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gpu := chi.URLParam(r, "gpu")
		lines := 0
		if v := r.URL.Query().Get("lines"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				lines = n
			}
		}
		out, err := svc.Logs(gpu, lines)
		if err != nil {
			writeManagerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.LogsResponse{GPU: gpu, Lines: out})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", "")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body", "")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}

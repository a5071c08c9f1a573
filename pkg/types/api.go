package types

// ModelsResponse wraps the list of models returned by GET /api/models.
type ModelsResponse struct {
	// List of known models.
	Models []Model `json:"models"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	// Managed instances keyed implicitly by their GPU assignment.
	Instances []InstanceStatus `json:"instances"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Uptime of the controller in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}

// GPUStatusResponse is returned by GET /api/gpus.
type GPUStatusResponse struct {
	// Per-unit derived status, freshly probed.
	GPUs []GPUStatus `json:"gpus"`
	// Number of real GPUs detected (CPU fallback excluded).
	// example: 2
	GPUCount int `json:"gpu_count" example:"2"`
	// True when the probe backend was unreachable and the controller
	// degraded to the CPU-only unit.
	Degraded bool `json:"degraded,omitempty"`
	// Whether the mock probe backend is active.
	MockMode bool `json:"mock_mode,omitempty"`
}

// LoadRequest is the payload for POST /api/models/load.
type LoadRequest struct {
	// Model id to load.
	// example: tinyllama-q4
	Model string `json:"model" example:"tinyllama-q4"`
	// GPU assignment: "0", "1", "0,1" or "cpu". Defaults to "0".
	// example: 0
	GPU string `json:"gpu,omitempty" example:"0"`
}

// UnloadRequest is the payload for POST /api/models/unload.
type UnloadRequest struct {
	// GPU assignment to unload.
	// example: 0
	GPU string `json:"gpu" example:"0"`
}

// SwitchRequest is the payload for POST /api/models/switch.
type SwitchRequest struct {
	// New model id to serve on the assignment.
	// example: mistral-q5
	Model string `json:"model" example:"mistral-q5"`
	// GPU assignment to switch.
	// example: 0
	GPU string `json:"gpu,omitempty" example:"0"`
}

// InstanceResponse wraps a single instance view for load/switch replies.
type InstanceResponse struct {
	Instance InstanceStatus `json:"instance"`
}

// LogsResponse is returned by GET /api/instances/{gpu}/logs.
type LogsResponse struct {
	// Canonical assignment the logs belong to.
	// example: 0
	GPU string `json:"gpu" example:"0"`
	// Most recent output lines from the llama-server subprocess.
	Lines []string `json:"lines"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: gpu 1 occupied by someone else
	Error string `json:"error" example:"gpu 1 occupied by someone else"`
	// Machine-readable error kind from the manager taxonomy.
	// example: resource_occupied
	Kind string `json:"kind,omitempty" example:"resource_occupied"`
	// HTTP status code.
	// example: 409
	Code int `json:"code" example:"409"`
}

package types

// Model represents a loadable llama-server model known to the controller.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4
	ID string `json:"id" example:"tinyllama-q4"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the GGUF file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Extra llama-server CLI arguments for this model.
	// example: ["-c","8192","-ngl","99"]
	Args []string `json:"args,omitempty"`
}

// GPUProcess describes one external process holding GPU memory.
type GPUProcess struct {
	// Process ID.
	// example: 12345
	PID int `json:"pid" example:"12345"`
	// Process executable name as reported by the driver.
	// example: python
	Name string `json:"name" example:"python"`
	// GPU memory held by the process in MiB.
	// example: 256
	UsedMiB int `json:"used_mib" example:"256"`
}

// GPUStatus is the derived view of one resource unit. Index -1 is the
// CPU-only fallback unit.
type GPUStatus struct {
	// GPU index (-1 for CPU).
	// example: 0
	Index int `json:"index" example:"0"`
	// Device name reported by the driver, empty for CPU.
	// example: NVIDIA A40
	Name string `json:"name,omitempty" example:"NVIDIA A40"`
	// Derived state: free, model_loaded or occupied_by_others.
	// example: free
	State string `json:"state" example:"free"`
	// Name of the managed model on this unit, if any.
	ModelName string `json:"model_name,omitempty"`
	// External processes holding memory, when the unit is occupied by others.
	Processes []GPUProcess `json:"processes,omitempty"`
	// Whether the unit can be selected for a load.
	// example: true
	SelectEnabled bool `json:"select_enabled" example:"true"`
	// Used memory in MiB.
	// example: 1
	MemoryUsedMiB int `json:"memory_used_mib" example:"1"`
	// Total memory in MiB.
	// example: 46068
	MemoryTotalMiB int `json:"memory_total_mib" example:"46068"`
}

// InstanceStatus summarizes one supervised llama-server instance.
type InstanceStatus struct {
	// Canonical assignment string, e.g. "0", "1", "0,1" or "cpu".
	// example: 0
	GPU string `json:"gpu" example:"0"`
	// ID of the model this instance serves.
	// example: tinyllama-q4
	ModelID string `json:"model_id" example:"tinyllama-q4"`
	// Display name of the model.
	ModelName string `json:"model_name,omitempty"`
	// Lifecycle state: starting, running, unhealthy, restarting, stopping, stopped.
	// example: running
	State string `json:"state" example:"running"`
	// TCP port the llama-server listens on.
	// example: 8081
	Port int `json:"port" example:"8081"`
	// Process ID of the llama-server, 0 when not running.
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Restarts performed after unexpected exits.
	// example: 0
	RestartCount int `json:"restart_count" example:"0"`
	// Last error observed for this instance, if any.
	LastError string `json:"last_error,omitempty"`
	// Uptime in seconds since the last successful start.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}

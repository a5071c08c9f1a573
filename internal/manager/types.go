package manager

import "time"

// State is the lifecycle state of one supervised instance.
type State string

const (
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateUnhealthy  State = "unhealthy"
	StateRestarting State = "restarting"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
)

// Instance is an immutable snapshot of one supervised llama-server. Status
// transitions build a new snapshot and swap it in; readers never observe a
// half-updated record.
type Instance struct {
	Assignment   Assignment
	ModelID      string
	ModelName    string
	Port         int
	PID          int
	State        State
	RestartCount int
	LastErr      string
	StartedAt    time.Time
	BaseURL      string
}

// Health is the result of a single health probe against an instance.
type Health int

const (
	Healthy Health = iota
	Unhealthy
	Dead
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	default:
		return "dead"
	}
}

// launchSpec is everything the supervisor needs to (re)spawn one instance.
type launchSpec struct {
	Assignment Assignment
	ModelID    string
	ModelName  string
	ModelPath  string
	Args       []string
	Host       string
	Port       int
}

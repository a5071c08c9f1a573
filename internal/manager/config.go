package manager

import (
	"time"

	"github.com/rs/zerolog"

	"llamactld/internal/gpu"
	"llamactld/pkg/types"
)

// Defaults applied when corresponding Config fields are unset. Port defaults
// follow the historical layout: GPU 0 on 8081, GPU 1 on 8088, further GPUs
// at 8081 + 7*index.
const (
	defaultGPU0Port        = 8081
	defaultGPU1Port        = 8088
	defaultPortStride      = 7
	defaultMaxRestarts     = 3
	defaultBackoff         = time.Second
	defaultBackoffCap      = time.Minute
	defaultStartupDeadline = 60 * time.Second
	defaultHealthInterval  = 5 * time.Second
	defaultHealthTimeout   = 5 * time.Second
	defaultStopGrace       = 30 * time.Second
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	Models    []types.Model
	LlamaBin  string
	LlamaHost string

	GPU0Port int
	GPU1Port int

	ThresholdMiB int // probe memory threshold; gpu.DefaultThresholdMiB when unset

	MaxRestarts       int
	RestartBackoff    time.Duration
	RestartBackoffCap time.Duration
	StartupDeadline   time.Duration
	HealthInterval    time.Duration
	HealthTimeout     time.Duration
	StopGrace         time.Duration
	LeaseTTL          time.Duration

	Prober    gpu.Prober
	Publisher EventPublisher
	Logger    zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.LlamaHost == "" {
		c.LlamaHost = "127.0.0.1"
	}
	if c.GPU0Port <= 0 {
		c.GPU0Port = defaultGPU0Port
	}
	if c.GPU1Port <= 0 {
		c.GPU1Port = defaultGPU1Port
	}
	if c.ThresholdMiB <= 0 {
		c.ThresholdMiB = gpu.DefaultThresholdMiB
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = defaultMaxRestarts
	}
	if c.RestartBackoff <= 0 {
		c.RestartBackoff = defaultBackoff
	}
	if c.RestartBackoffCap <= 0 {
		c.RestartBackoffCap = defaultBackoffCap
	}
	if c.StartupDeadline <= 0 {
		c.StartupDeadline = defaultStartupDeadline
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = defaultHealthInterval
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = defaultHealthTimeout
	}
	if c.StopGrace <= 0 {
		c.StopGrace = defaultStopGrace
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaultLeaseTTL
	}
	if c.Prober == nil {
		c.Prober = &gpu.SMIProber{}
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
}

// portFor derives the stable launch port for an assignment from the primary
// (lowest) device. The CPU fallback shares GPU 0's port.
func (c *Config) portFor(a Assignment) int {
	switch a.Primary() {
	case gpu.CPUIndex, 0:
		return c.GPU0Port
	case 1:
		return c.GPU1Port
	default:
		return c.GPU0Port + defaultPortStride*a.Primary()
	}
}

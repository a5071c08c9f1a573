// Package gpu probes the host for accelerator status. A Prober returns the
// raw per-device readings; Classify derives the free/occupied view against a
// memory threshold and the set of managed instances. Probing never caches:
// every call re-reads the backend.
package gpu

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/mem"
)

// CPUIndex is the sentinel device index for the CPU-only fallback unit.
const CPUIndex = -1

// DefaultThresholdMiB is the memory-used threshold above which a device is
// considered occupied.
const DefaultThresholdMiB = 30

// Process is one external process holding device memory.
type Process struct {
	Index   int
	PID     int
	Name    string
	UsedMiB int
}

// Device is one raw probe reading for a single accelerator.
type Device struct {
	Index          int
	Name           string
	MemoryUsedMiB  int
	MemoryTotalMiB int
	Processes      []Process
}

// IsCPU reports whether the device is the CPU-only fallback unit.
func (d Device) IsCPU() bool { return d.Index == CPUIndex }

// Prober reads the current device set. Implementations must be safe for
// concurrent use and must not cache between calls.
type Prober interface {
	Probe(ctx context.Context) ([]Device, error)
}

// Detect runs the prober and fails closed to the CPU-only unit when the
// backend is unreachable or reports no devices. The second return is true
// when the result is the degraded fallback.
func Detect(ctx context.Context, p Prober, log zerolog.Logger) ([]Device, bool) {
	devs, err := p.Probe(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("gpu probe failed, falling back to cpu")
		return []Device{CPUFallback(ctx)}, true
	}
	if len(devs) == 0 {
		log.Warn().Msg("gpu probe returned no devices, falling back to cpu")
		return []Device{CPUFallback(ctx)}, true
	}
	return devs, false
}

// CPUFallback builds the singleton CPU-only device. Memory readings come
// from host RAM and are informational; classification never treats the CPU
// unit as externally occupied.
func CPUFallback(ctx context.Context) Device {
	d := Device{Index: CPUIndex}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		d.MemoryUsedMiB = int(vm.Used / (1 << 20))
		d.MemoryTotalMiB = int(vm.Total / (1 << 20))
	}
	return d
}

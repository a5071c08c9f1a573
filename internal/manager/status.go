package manager

import (
	"context"
	"time"

	"llamactld/internal/gpu"
	"llamactld/pkg/types"
)

// Status reports all managed instances. Read-only; no probe involved.
func (m *Manager) Status() types.StatusResponse {
	procs := m.table.Snapshot()
	resp := types.StatusResponse{
		Instances:      make([]types.InstanceStatus, 0, len(procs)),
		ServerTimeUnix: time.Now().Unix(),
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
	}
	for _, p := range procs {
		resp.Instances = append(resp.Instances, instanceView(p.Snapshot()))
	}
	return resp
}

// GPUStatus re-probes the hardware and derives per-unit occupancy against
// the registry. Read-only; displayed occupancy is never staler than the
// caller's polling cadence.
func (m *Manager) GPUStatus(ctx context.Context) types.GPUStatusResponse {
	devs, degraded := gpu.Detect(ctx, m.cfg.Prober, m.log)
	statuses := gpu.Classify(devs, m.cfg.ThresholdMiB, m.table.Owner)

	resp := types.GPUStatusResponse{
		GPUs:     make([]types.GPUStatus, 0, len(statuses)),
		Degraded: degraded,
		MockMode: isMock(m.cfg.Prober),
	}
	for _, s := range statuses {
		v := types.GPUStatus{
			Index:          s.Index,
			Name:           s.Name,
			State:          s.State,
			ModelName:      s.ModelName,
			SelectEnabled:  s.Free(),
			MemoryUsedMiB:  s.MemoryUsedMiB,
			MemoryTotalMiB: s.MemoryTotalMiB,
		}
		if s.State == gpu.StateExternal {
			for _, pr := range s.Processes {
				v.Processes = append(v.Processes, types.GPUProcess{PID: pr.PID, Name: pr.Name, UsedMiB: pr.UsedMiB})
			}
		}
		if !s.IsCPU() {
			resp.GPUCount++
		}
		resp.GPUs = append(resp.GPUs, v)
	}
	return resp
}

// Logs returns the output tail of the instance on the given assignment.
func (m *Manager) Logs(gpuID string, lines int) ([]string, error) {
	a, err := ParseAssignment(gpuID)
	if err != nil {
		return nil, err
	}
	p := m.table.Get(a)
	if p == nil {
		return nil, ErrNotLoaded(a.String())
	}
	if lines <= 0 || lines > defaultLogLines {
		lines = defaultLogLines
	}
	return p.Logs(lines), nil
}

func isMock(p gpu.Prober) bool {
	_, ok := p.(*gpu.FileProber)
	return ok
}

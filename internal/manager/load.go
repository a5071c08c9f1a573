package manager

import (
	"context"
	"strings"
	"time"

	"llamactld/internal/gpu"
	"llamactld/pkg/types"
)

// Load validates the request against a fresh probe, reserves the assignment
// and starts a supervised llama-server. Once the reservation is taken, the
// load runs to completion even if the caller abandons its context, so the
// claim is always resolved by a commit or a release.
func (m *Manager) Load(ctx context.Context, modelID, gpuID string) (types.InstanceStatus, error) {
	startTs := time.Now()
	if gpuID == "" {
		gpuID = "0"
	}
	a, err := ParseAssignment(gpuID)
	if err != nil {
		return types.InstanceStatus{}, err
	}
	mdl, ok := m.modelByID(modelID)
	if !ok {
		return types.InstanceStatus{}, ErrModelNotFound(modelID)
	}

	if err := m.checkUnitsFree(ctx, a); err != nil {
		if IsProbeUnavailable(err) {
			loadsTotal.WithLabelValues("probe_unavailable").Inc()
		} else {
			loadsTotal.WithLabelValues("occupied").Inc()
		}
		return types.InstanceStatus{}, err
	}

	l, err := m.table.Reserve(a, modelID)
	if err != nil {
		loadsTotal.WithLabelValues("conflict").Inc()
		return types.InstanceStatus{}, err
	}
	m.publisher.Publish(Event{Name: "load_start", ModelID: modelID, GPU: a.String(), Fields: map[string]any{}})
	m.log.Info().Str("model", modelID).Str("gpu", a.String()).Msg("loading model")

	spec := launchSpec{
		Assignment: a,
		ModelID:    mdl.ID,
		ModelName:  mdl.Name,
		ModelPath:  mdl.Path,
		Args:       mdl.Args,
		Host:       m.cfg.LlamaHost,
		Port:       m.cfg.portFor(a),
	}
	// Detached from the caller: an upstream timeout must not orphan the lease.
	proc, err := m.sup.start(context.WithoutCancel(ctx), spec)
	if err != nil {
		m.table.ReleaseLease(l)
		loadsTotal.WithLabelValues("launch_failed").Inc()
		m.log.Error().Str("model", modelID).Str("gpu", a.String()).Err(err).Msg("load failed")
		return types.InstanceStatus{}, err
	}
	if err := m.table.Commit(l, proc); err != nil {
		m.sup.stop(proc)
		loadsTotal.WithLabelValues("conflict").Inc()
		return types.InstanceStatus{}, err
	}
	instancesGauge.Inc()
	loadsTotal.WithLabelValues("ok").Inc()
	m.publisher.Publish(Event{Name: "load_done", ModelID: modelID, GPU: a.String(),
		Fields: map[string]any{"dur_ms": int(time.Since(startTs) / time.Millisecond)}})
	m.log.Info().Str("model", modelID).Str("gpu", a.String()).
		Dur("dur", time.Since(startTs)).Msg("model loaded")
	return instanceView(proc.Snapshot()), nil
}

// checkUnitsFree re-probes the hardware and requires every requested device
// to be free. The CPU fallback unit is exempt from memory-based occupancy:
// only the registry can hold it.
func (m *Manager) checkUnitsFree(ctx context.Context, a Assignment) error {
	devs, degraded := gpu.Detect(ctx, m.cfg.Prober, m.log)
	statuses := gpu.Classify(devs, m.cfg.ThresholdMiB, m.table.Owner)
	byIndex := make(map[int]gpu.Status, len(statuses))
	for _, s := range statuses {
		byIndex[s.Index] = s
	}
	for _, unit := range a.Units() {
		s, ok := byIndex[unit]
		if !ok {
			if unit == gpu.CPUIndex {
				continue
			}
			if degraded {
				return ErrProbeUnavailable(unit)
			}
			return errInvalidAssignment("gpu %d not present on this host", unit)
		}
		switch s.State {
		case gpu.StateOwned:
			return ErrResourceOccupied(unit, s.ModelName, false)
		case gpu.StateExternal:
			return ErrResourceOccupied(unit, describeProcesses(s.Processes), true)
		}
	}
	return nil
}

func describeProcesses(procs []gpu.Process) string {
	if len(procs) == 0 {
		return ""
	}
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}

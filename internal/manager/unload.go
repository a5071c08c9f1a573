package manager

import (
	"context"
)

// Unload stops the instance on the given assignment and releases its
// devices. Fails with a not-loaded error when nothing holds the assignment.
func (m *Manager) Unload(ctx context.Context, gpuID string) error {
	if gpuID == "" {
		gpuID = "0"
	}
	a, err := ParseAssignment(gpuID)
	if err != nil {
		return err
	}
	p := m.table.Get(a)
	if p == nil {
		return ErrNotLoaded(a.String())
	}
	snap := p.Snapshot()
	m.publisher.Publish(Event{Name: "unload_start", ModelID: snap.ModelID, GPU: a.String(), Fields: map[string]any{}})
	m.log.Info().Str("model", snap.ModelID).Str("gpu", a.String()).Msg("unloading model")

	m.sup.stop(p)
	if m.table.Release(a, p) {
		instancesGauge.Dec()
	}
	unloadsTotal.Inc()
	m.publisher.Publish(Event{Name: "unload_done", ModelID: snap.ModelID, GPU: a.String(), Fields: map[string]any{}})
	return nil
}

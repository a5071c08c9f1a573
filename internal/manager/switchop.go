package manager

import (
	"context"

	"llamactld/pkg/types"
)

// Switch replaces the model on an assignment with unload-then-load. The two
// steps are deliberately not atomic: the devices are momentarily free in
// between and a concurrent load may claim them, in which case the second
// step fails with a conflict. A same-model switch is a no-op returning the
// current status.
func (m *Manager) Switch(ctx context.Context, newModelID, gpuID string) (types.InstanceStatus, error) {
	if gpuID == "" {
		gpuID = "0"
	}
	a, err := ParseAssignment(gpuID)
	if err != nil {
		return types.InstanceStatus{}, err
	}
	if _, ok := m.modelByID(newModelID); !ok {
		return types.InstanceStatus{}, ErrModelNotFound(newModelID)
	}

	if p := m.table.Get(a); p != nil {
		snap := p.Snapshot()
		if snap.ModelID == newModelID {
			return instanceView(snap), nil
		}
		m.publisher.Publish(Event{Name: "switch_start", ModelID: newModelID, GPU: a.String(),
			Fields: map[string]any{"old_model": snap.ModelID}})
		if err := m.Unload(ctx, a.String()); err != nil {
			return types.InstanceStatus{}, err
		}
	}
	return m.Load(ctx, newModelID, a.String())
}

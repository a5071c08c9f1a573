package manager

// Resolve maps a model id to the base URL of its running instance, for
// request routing. A known model without an instance is a routing-time miss;
// an instance in any state but Running is refused so requests never queue
// behind a restart.
func (m *Manager) Resolve(modelID string) (string, error) {
	p := m.table.FindByModel(modelID)
	if p == nil {
		return "", ErrModelNotLoaded(modelID)
	}
	snap := p.Snapshot()
	if snap.State != StateRunning {
		return "", ErrInstanceUnhealthy(modelID, snap.State)
	}
	return snap.BaseURL, nil
}

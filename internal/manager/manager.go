package manager

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"llamactld/pkg/types"
)

// Manager orchestrates the probe, the instance table and the supervisor.
// All mutation of shared state goes through the table's reserve/commit/
// release operations; instances themselves are immutable snapshots.
type Manager struct {
	cfg       Config
	table     *instanceTable
	sup       *supervisor
	publisher EventPublisher
	log       zerolog.Logger
	startTime time.Time
}

// New constructs a Manager from Config, applying package defaults.
func New(cfg Config) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:       cfg,
		table:     newInstanceTable(cfg.LeaseTTL),
		publisher: cfg.Publisher,
		log:       cfg.Logger,
		startTime: time.Now(),
	}
	m.sup = &supervisor{
		bin:             cfg.LlamaBin,
		maxRestarts:     cfg.MaxRestarts,
		backoff:         cfg.RestartBackoff,
		backoffCap:      cfg.RestartBackoffCap,
		startupDeadline: cfg.StartupDeadline,
		healthInterval:  cfg.HealthInterval,
		healthTimeout:   cfg.HealthTimeout,
		stopGrace:       cfg.StopGrace,
		// Context deadlines are attached per call; the shared client must
		// not impose its own.
		httpClient: &http.Client{Timeout: 0},
		log:        cfg.Logger,
		publisher:  cfg.Publisher,
		onGiveUp:   m.releaseCrashed,
	}
	return m
}

// ListModels returns the model catalog.
func (m *Manager) ListModels() []types.Model {
	out := make([]types.Model, len(m.cfg.Models))
	copy(out, m.cfg.Models)
	return out
}

// Ready reports whether any instance is currently Running.
func (m *Manager) Ready() bool {
	for _, p := range m.table.Snapshot() {
		if p.Snapshot().State == StateRunning {
			return true
		}
	}
	return false
}

// Close stops every supervised subprocess. Used on daemon shutdown.
func (m *Manager) Close() {
	for _, p := range m.table.Snapshot() {
		m.sup.stop(p)
		m.table.Release(p.Snapshot().Assignment, p)
	}
	instancesGauge.Set(0)
}

// releaseCrashed frees the registry entry of a crash-looping instance so its
// devices become available again.
func (m *Manager) releaseCrashed(p *process) {
	a := p.Snapshot().Assignment
	if m.table.Release(a, p) {
		instancesGauge.Dec()
	}
	m.log.Warn().Str("gpu", a.String()).Msg("released assignment of crash-looping instance")
}

func (m *Manager) modelByID(id string) (types.Model, bool) {
	for _, mdl := range m.cfg.Models {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

func instanceView(snap Instance) types.InstanceStatus {
	v := types.InstanceStatus{
		GPU:          snap.Assignment.String(),
		ModelID:      snap.ModelID,
		ModelName:    snap.ModelName,
		State:        string(snap.State),
		Port:         snap.Port,
		PID:          snap.PID,
		RestartCount: snap.RestartCount,
		LastError:    snap.LastErr,
	}
	if snap.State == StateRunning && !snap.StartedAt.IsZero() {
		v.UptimeSeconds = int64(time.Since(snap.StartedAt).Seconds())
	}
	return v
}

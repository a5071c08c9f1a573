package manager

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultLeaseTTL bounds how long an uncommitted reservation may exist
// before it is treated as abandoned.
const defaultLeaseTTL = 2 * time.Minute

// lease is an exclusive in-flight claim on an assignment between Reserve and
// Commit/ReleaseLease.
type lease struct {
	id         string
	assignment Assignment
	modelID    string
	created    time.Time
}

// instanceTable is the single source of truth for which instance holds which
// devices. Reserve is the one serialization point for concurrent loads:
// overlap is checked atomically against committed entries and in-flight
// leases. Expired leases are swept lazily on the next Reserve, so a crashed
// caller can never leak a claim for longer than the TTL.
type instanceTable struct {
	mu       sync.Mutex
	entries  map[string]*process // canonical assignment -> committed instance
	leases   map[string]*lease   // canonical assignment -> in-flight claim
	leaseTTL time.Duration
}

func newInstanceTable(leaseTTL time.Duration) *instanceTable {
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}
	return &instanceTable{
		entries:  make(map[string]*process),
		leases:   make(map[string]*lease),
		leaseTTL: leaseTTL,
	}
}

// Reserve claims the assignment for an upcoming load. It fails with a
// conflict naming the colliding holder when any committed entry or live
// lease overlaps, or when the model is already committed elsewhere (one
// instance per model).
func (t *instanceTable) Reserve(a Assignment, modelID string) (*lease, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked(time.Now())

	for key, p := range t.entries {
		snap := p.Snapshot()
		if snap.Assignment.Overlaps(a) {
			return nil, conflictError{requested: a.String(), holder: key, model: snap.ModelID}
		}
		if snap.ModelID == modelID {
			return nil, conflictError{requested: a.String(), holder: key, model: modelID}
		}
	}
	for key, l := range t.leases {
		if l.assignment.Overlaps(a) || l.modelID == modelID {
			return nil, conflictError{requested: a.String(), holder: key}
		}
	}

	l := &lease{
		id:         uuid.NewString(),
		assignment: a,
		modelID:    modelID,
		created:    time.Now(),
	}
	t.leases[a.String()] = l
	return l, nil
}

// Commit promotes a lease to a committed entry. It fails with a conflict
// when the lease already expired and was swept, naming whoever claimed the
// devices in the meantime.
func (t *instanceTable) Commit(l *lease, p *process) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := l.assignment.String()
	cur, ok := t.leases[key]
	if !ok || cur.id != l.id {
		for k, e := range t.entries {
			snap := e.Snapshot()
			if snap.Assignment.Overlaps(l.assignment) {
				return conflictError{requested: key, holder: k, model: snap.ModelID}
			}
		}
		return conflictError{requested: key, expired: true}
	}
	delete(t.leases, key)
	t.entries[key] = p
	return nil
}

// ReleaseLease drops an in-flight claim after a failed load. Idempotent.
func (t *instanceTable) ReleaseLease(l *lease) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := l.assignment.String()
	if cur, ok := t.leases[key]; ok && cur.id == l.id {
		delete(t.leases, key)
	}
}

// Release removes the committed entry for a, but only when it is still p.
// The identity check keeps a stale releaser (an unload racing a crash-loop
// giveup and a fresh load) from evicting the instance that replaced its
// target. Reports whether an entry was removed.
func (t *instanceTable) Release(a Assignment, p *process) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := a.String()
	if t.entries[key] != p {
		return false
	}
	delete(t.entries, key)
	return true
}

// Get returns the committed instance for an exact assignment, or nil.
func (t *instanceTable) Get(a Assignment) *process {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[a.String()]
}

// FindByModel returns the instance serving modelID, or nil.
func (t *instanceTable) FindByModel(modelID string) *process {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.entries {
		if p.Snapshot().ModelID == modelID {
			return p
		}
	}
	return nil
}

// Owner resolves the model occupying a device index, for probe
// classification.
func (t *instanceTable) Owner(index int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.entries {
		snap := p.Snapshot()
		if snap.Assignment.Contains(index) {
			name := snap.ModelName
			if name == "" {
				name = snap.ModelID
			}
			return name, true
		}
	}
	return "", false
}

// Snapshot returns the committed instances ordered by assignment.
func (t *instanceTable) Snapshot() []*process {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*process, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.entries[k])
	}
	return out
}

func (t *instanceTable) sweepLocked(now time.Time) {
	for key, l := range t.leases {
		if now.Sub(l.created) > t.leaseTTL {
			delete(t.leases, key)
		}
	}
}

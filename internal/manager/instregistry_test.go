package manager

import (
	"strings"
	"testing"
	"time"
)

func mustAssign(t *testing.T, s string) Assignment {
	t.Helper()
	a, err := ParseAssignment(s)
	if err != nil {
		t.Fatalf("ParseAssignment(%q): %v", s, err)
	}
	return a
}

func committedProcess(a Assignment, modelID string) *process {
	return &process{
		logs:   newRingBuffer(10),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		cur:    Instance{Assignment: a, ModelID: modelID, State: StateRunning},
	}
}

func TestReserveCommitRelease(t *testing.T) {
	tb := newInstanceTable(0)
	a0 := mustAssign(t, "0")

	l, err := tb.Reserve(a0, "m1")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	p := committedProcess(a0, "m1")
	if err := tb.Commit(l, p); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := tb.Get(a0); got != p {
		t.Fatal("Get after Commit returned wrong process")
	}
	if got := tb.FindByModel("m1"); got != p {
		t.Fatal("FindByModel miss")
	}
	if !tb.Release(a0, p) {
		t.Fatal("Release of the committed process should succeed")
	}
	if tb.Get(a0) != nil {
		t.Fatal("Get after Release should be nil")
	}
}

func TestReleaseRequiresInstanceIdentity(t *testing.T) {
	tb := newInstanceTable(0)
	a0 := mustAssign(t, "0")

	l, err := tb.Reserve(a0, "m1")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	p1 := committedProcess(a0, "m1")
	if err := tb.Commit(l, p1); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !tb.Release(a0, p1) {
		t.Fatal("Release of p1 should succeed")
	}

	// The assignment is re-claimed by a second instance. A straggling
	// release still aimed at the first one must not evict it.
	l, err = tb.Reserve(a0, "m2")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	p2 := committedProcess(a0, "m2")
	if err := tb.Commit(l, p2); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if tb.Release(a0, p1) {
		t.Fatal("stale Release should be a no-op")
	}
	if got := tb.Get(a0); got != p2 {
		t.Fatal("stale Release evicted the live instance")
	}
	if !tb.Release(a0, p2) {
		t.Fatal("Release of p2 should succeed")
	}
}

func TestReserveConflicts(t *testing.T) {
	tb := newInstanceTable(0)
	a0 := mustAssign(t, "0")
	a01 := mustAssign(t, "0,1")
	a1 := mustAssign(t, "1")

	l, err := tb.Reserve(a0, "m1")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := tb.Commit(l, committedProcess(a0, "m1")); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Overlapping assignment is refused.
	if _, err := tb.Reserve(a01, "m2"); !IsResourceConflict(err) {
		t.Fatalf("Reserve(0,1) err = %v, want conflict", err)
	}
	// Same model on a different assignment is refused (one instance per model).
	if _, err := tb.Reserve(a1, "m1"); !IsResourceConflict(err) {
		t.Fatalf("Reserve(1, m1) err = %v, want conflict", err)
	}
	// Disjoint assignment with a new model is fine.
	if _, err := tb.Reserve(a1, "m2"); err != nil {
		t.Fatalf("Reserve(1, m2): %v", err)
	}
}

func TestReserveConflictsWithInflightLease(t *testing.T) {
	tb := newInstanceTable(0)
	a0 := mustAssign(t, "0")
	a01 := mustAssign(t, "0,1")

	l, err := tb.Reserve(a0, "m1")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := tb.Reserve(a01, "m2"); !IsResourceConflict(err) {
		t.Fatalf("Reserve over lease err = %v, want conflict", err)
	}
	tb.ReleaseLease(l)
	if _, err := tb.Reserve(a01, "m2"); err != nil {
		t.Fatalf("Reserve after ReleaseLease: %v", err)
	}
}

func TestExpiredLeaseIsSwept(t *testing.T) {
	tb := newInstanceTable(50 * time.Millisecond)
	a0 := mustAssign(t, "0")

	stale, err := tb.Reserve(a0, "m1")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	time.Sleep(80 * time.Millisecond)

	// A new reserve sweeps the expired lease and succeeds.
	l2, err := tb.Reserve(a0, "m2")
	if err != nil {
		t.Fatalf("Reserve after expiry: %v", err)
	}
	// Committing the stale lease fails with a conflict. Once the winner
	// commits, the conflict names it as the holder.
	err = tb.Commit(stale, committedProcess(a0, "m1"))
	if !IsResourceConflict(err) {
		t.Fatalf("Commit of expired lease = %v, want conflict", err)
	}
	if err := tb.Commit(l2, committedProcess(a0, "m2")); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	err = tb.Commit(stale, committedProcess(a0, "m1"))
	if !IsResourceConflict(err) {
		t.Fatalf("late Commit = %v, want conflict", err)
	}
	if !strings.Contains(err.Error(), "m2") {
		t.Fatalf("late Commit error %q should name the holder", err)
	}
}

func TestOwnerResolvesCommittedUnits(t *testing.T) {
	tb := newInstanceTable(0)
	a01 := mustAssign(t, "0,1")
	l, err := tb.Reserve(a01, "m1")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	p := committedProcess(a01, "m1")
	p.cur.ModelName = "Model One"
	if err := tb.Commit(l, p); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	for _, idx := range []int{0, 1} {
		name, ok := tb.Owner(idx)
		if !ok || name != "Model One" {
			t.Fatalf("Owner(%d) = %q,%v", idx, name, ok)
		}
	}
	if _, ok := tb.Owner(2); ok {
		t.Fatal("Owner(2) should be unknown")
	}
}

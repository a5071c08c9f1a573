package manager

import "testing"

func TestParseAssignment(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1"},
		{"0,1", "0,1"},
		{"1,0", "0,1"},
		{" 1 , 0 ", "0,1"},
		{"both", "0,1"},
		{"BOTH", "0,1"},
		{"cpu", "cpu"},
		{"-1", "cpu"},
		{"7", "7"},
	}
	for _, c := range cases {
		a, err := ParseAssignment(c.in)
		if err != nil {
			t.Fatalf("ParseAssignment(%q): %v", c.in, err)
		}
		if got := a.String(); got != c.want {
			t.Fatalf("ParseAssignment(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseAssignmentRejects(t *testing.T) {
	for _, in := range []string{"", "8", "-2", "0,0", "a", "0,x", "0,8"} {
		if _, err := ParseAssignment(in); err == nil {
			t.Fatalf("ParseAssignment(%q): expected error", in)
		} else if !IsInvalidAssignment(err) {
			t.Fatalf("ParseAssignment(%q): error %v is not an invalid-assignment error", in, err)
		}
	}
}

func TestAssignmentOverlapsAndContains(t *testing.T) {
	a01, _ := ParseAssignment("0,1")
	a0, _ := ParseAssignment("0")
	a1, _ := ParseAssignment("1")
	cpu, _ := ParseAssignment("cpu")

	if !a01.Overlaps(a0) || !a01.Overlaps(a1) {
		t.Fatal("0,1 should overlap 0 and 1")
	}
	if a0.Overlaps(a1) {
		t.Fatal("0 should not overlap 1")
	}
	if cpu.Overlaps(a0) {
		t.Fatal("cpu should not overlap 0")
	}
	if !a01.Contains(1) || a0.Contains(1) {
		t.Fatal("Contains mismatch")
	}
	if !cpu.IsCPU() || a0.IsCPU() {
		t.Fatal("IsCPU mismatch")
	}
	if a01.Primary() != 0 {
		t.Fatalf("Primary() = %d, want 0", a01.Primary())
	}
}

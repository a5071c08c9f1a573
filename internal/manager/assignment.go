package manager

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"llamactld/internal/gpu"
)

// maxGPUIndex bounds accepted GPU ids; raised when larger hosts show up.
const maxGPUIndex = 7

// invalidAssignmentError reports an unparseable or unavailable assignment;
// the HTTP layer maps it to a bad request.
type invalidAssignmentError struct{ msg string }

func (e invalidAssignmentError) Error() string { return e.msg }

// IsInvalidAssignment reports whether err is a malformed or unavailable gpu
// assignment.
func IsInvalidAssignment(err error) bool {
	_, ok := err.(invalidAssignmentError)
	return ok
}

func errInvalidAssignment(format string, args ...any) error {
	return invalidAssignmentError{msg: fmt.Sprintf(format, args...)}
}

// Assignment is the ordered set of device indexes one instance occupies.
// The zero value is invalid; build one through ParseAssignment. Values are
// immutable once constructed.
type Assignment struct {
	units []int // sorted ascending
}

// ParseAssignment accepts "0", "1", "0,1", the legacy alias "both" and the
// CPU sentinel "cpu" (or "-1"). Ids must be unique and within 0..7.
func ParseAssignment(s string) (Assignment, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return Assignment{}, errInvalidAssignment("invalid gpu assignment: empty")
	case "both":
		s = "0,1"
	case "cpu", strconv.Itoa(gpu.CPUIndex):
		return Assignment{units: []int{gpu.CPUIndex}}, nil
	}
	parts := strings.Split(s, ",")
	units := make([]int, 0, len(parts))
	seen := make(map[int]bool, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Assignment{}, errInvalidAssignment("invalid gpu assignment %q: %v", s, err)
		}
		if id < 0 || id > maxGPUIndex {
			return Assignment{}, errInvalidAssignment("invalid gpu assignment %q: id %d out of range (0-%d)", s, id, maxGPUIndex)
		}
		if seen[id] {
			return Assignment{}, errInvalidAssignment("invalid gpu assignment %q: duplicate id %d", s, id)
		}
		seen[id] = true
		units = append(units, id)
	}
	sort.Ints(units)
	return Assignment{units: units}, nil
}

// String returns the canonical form: sorted ids joined by commas, or "cpu".
func (a Assignment) String() string {
	if a.IsCPU() {
		return "cpu"
	}
	parts := make([]string, len(a.units))
	for i, id := range a.units {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// Units returns a copy of the device indexes.
func (a Assignment) Units() []int {
	out := make([]int, len(a.units))
	copy(out, a.units)
	return out
}

// IsZero reports whether the assignment was never parsed.
func (a Assignment) IsZero() bool { return len(a.units) == 0 }

// IsCPU reports whether this is the CPU-only sentinel assignment.
func (a Assignment) IsCPU() bool {
	return len(a.units) == 1 && a.units[0] == gpu.CPUIndex
}

// Primary returns the first (lowest) device index; the instance port is
// derived from it.
func (a Assignment) Primary() int {
	if len(a.units) == 0 {
		return gpu.CPUIndex
	}
	return a.units[0]
}

// Overlaps reports whether two assignments share any device index.
func (a Assignment) Overlaps(b Assignment) bool {
	for _, x := range a.units {
		for _, y := range b.units {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Contains reports whether the assignment includes the given device index.
func (a Assignment) Contains(index int) bool {
	for _, id := range a.units {
		if id == index {
			return true
		}
	}
	return false
}

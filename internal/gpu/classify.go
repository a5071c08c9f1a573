package gpu

// Derived device states.
const (
	StateFree     = "free"
	StateOwned    = "model_loaded"
	StateExternal = "occupied_by_others"
)

// Status is the classified view of one device.
type Status struct {
	Device
	State     string
	ModelName string
}

// Free reports whether the unit can accept a new instance.
func (s Status) Free() bool { return s.State == StateFree }

// OwnerFunc resolves the managed model occupying a device index, if any.
type OwnerFunc func(index int) (model string, ok bool)

// Classify derives per-device states. A device above thresholdMiB is
// occupied: by a managed instance when owner knows the index, externally
// otherwise. The CPU fallback unit reports host RAM and is never classified
// as externally occupied.
func Classify(devices []Device, thresholdMiB int, owner OwnerFunc) []Status {
	if thresholdMiB <= 0 {
		thresholdMiB = DefaultThresholdMiB
	}
	out := make([]Status, 0, len(devices))
	for _, d := range devices {
		s := Status{Device: d, State: StateFree}
		if model, ok := owner(d.Index); ok {
			s.State = StateOwned
			s.ModelName = model
		} else if !d.IsCPU() && d.MemoryUsedMiB > thresholdMiB {
			s.State = StateExternal
		}
		out = append(out, s)
	}
	return out
}

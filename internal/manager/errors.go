package manager

import "fmt"

// Error kinds exposed to the HTTP layer for machine-readable responses.
const (
	KindResourceOccupied    = "resource_occupied"
	KindResourceConflict    = "resource_conflict"
	KindLaunchTimeout       = "launch_timeout"
	KindLaunchFailed        = "launch_failed"
	KindCrashLoop           = "crash_loop"
	KindNotLoaded           = "not_loaded"
	KindModelNotFound       = "model_not_found"
	KindModelNotLoaded      = "model_not_loaded"
	KindInstanceUnhealthy   = "instance_unhealthy"
	KindInstanceUnreachable = "instance_unreachable"
	KindProbeUnavailable    = "probe_unavailable"
)

// occupiedError reports a requested device held by something else: an
// external process (external=true) or another managed instance.
type occupiedError struct {
	unit     int
	occupant string
	external bool
}

func (e occupiedError) Error() string {
	if e.external {
		if e.occupant == "" {
			return fmt.Sprintf("gpu %d occupied, unattributed", e.unit)
		}
		return fmt.Sprintf("gpu %d occupied by someone else: %s", e.unit, e.occupant)
	}
	return fmt.Sprintf("gpu %d already serving model %q", e.unit, e.occupant)
}

// ErrResourceOccupied constructs an occupiedError.
func ErrResourceOccupied(unit int, occupant string, external bool) error {
	return occupiedError{unit: unit, occupant: occupant, external: external}
}

// IsResourceOccupied reports whether err means a requested device is not free.
func IsResourceOccupied(err error) bool {
	_, ok := err.(occupiedError)
	return ok
}

// conflictError reports reservation contention: another load holds, or is in
// the middle of acquiring, an overlapping assignment.
type conflictError struct {
	requested string
	holder    string
	model     string
	expired   bool
}

func (e conflictError) Error() string {
	if e.expired {
		return fmt.Sprintf("claim on gpu %s expired before commit", e.requested)
	}
	if e.model != "" {
		return fmt.Sprintf("gpu %s conflicts with %s (model %q)", e.requested, e.holder, e.model)
	}
	return fmt.Sprintf("gpu %s conflicts with in-flight load on %s", e.requested, e.holder)
}

// ErrResourceConflict constructs a conflictError.
func ErrResourceConflict(requested, holder string) error {
	return conflictError{requested: requested, holder: holder}
}

// IsResourceConflict reports whether err indicates reservation contention;
// callers may retry.
func IsResourceConflict(err error) bool {
	_, ok := err.(conflictError)
	return ok
}

// launchTimeoutError means the subprocess never became healthy before the
// startup deadline.
type launchTimeoutError struct {
	model string
	tail  string
}

func (e launchTimeoutError) Error() string {
	if e.tail == "" {
		return fmt.Sprintf("model %q: llama-server not ready before deadline", e.model)
	}
	return fmt.Sprintf("model %q: llama-server not ready before deadline; output tail: %s", e.model, e.tail)
}

// ErrLaunchTimeout constructs a launchTimeoutError.
func ErrLaunchTimeout(model, tail string) error {
	return launchTimeoutError{model: model, tail: tail}
}

// IsLaunchTimeout reports whether err is a startup-deadline failure.
func IsLaunchTimeout(err error) bool {
	_, ok := err.(launchTimeoutError)
	return ok
}

// launchError means the subprocess failed to spawn or exited before ready.
type launchError struct {
	model string
	cause error
}

func (e launchError) Error() string { return fmt.Sprintf("model %q: %v", e.model, e.cause) }
func (e launchError) Unwrap() error { return e.cause }

// IsLaunchFailed reports whether err is a spawn/early-exit failure.
func IsLaunchFailed(err error) bool {
	_, ok := err.(launchError)
	return ok
}

// crashLoopError marks an instance that exhausted its restart budget.
type crashLoopError struct {
	model    string
	restarts int
}

func (e crashLoopError) Error() string {
	return fmt.Sprintf("model %q: crash loop, gave up after %d restarts", e.model, e.restarts)
}

// IsCrashLoop reports whether err marks an exhausted restart budget.
func IsCrashLoop(err error) bool {
	_, ok := err.(crashLoopError)
	return ok
}

// notLoadedError reports an unload (or logs read) for an assignment with no
// instance.
type notLoadedError struct{ assignment string }

func (e notLoadedError) Error() string { return "no model loaded on gpu " + e.assignment }

// ErrNotLoaded constructs a notLoadedError.
func ErrNotLoaded(assignment string) error { return notLoadedError{assignment: assignment} }

// IsNotLoaded reports whether err means the assignment holds no instance.
func IsNotLoaded(err error) bool {
	_, ok := err.(notLoadedError)
	return ok
}

// modelNotFoundError reports a model id absent from the catalog.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound constructs a modelNotFoundError.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// modelNotLoadedError is the routing-time miss: the model has no instance.
type modelNotLoadedError struct{ id string }

func (e modelNotLoadedError) Error() string { return "model not loaded: " + e.id }

// ErrModelNotLoaded constructs a modelNotLoadedError.
func ErrModelNotLoaded(id string) error { return modelNotLoadedError{id: id} }

// IsModelNotLoaded reports whether err is a routing-time registry miss.
func IsModelNotLoaded(err error) bool {
	_, ok := err.(modelNotLoadedError)
	return ok
}

// unhealthyError is the routing-time failure for an instance that exists but
// is not Running.
type unhealthyError struct {
	id    string
	state State
}

func (e unhealthyError) Error() string {
	return fmt.Sprintf("model %q instance is %s, not running", e.id, e.state)
}

// ErrInstanceUnhealthy constructs an unhealthyError.
func ErrInstanceUnhealthy(id string, state State) error {
	return unhealthyError{id: id, state: state}
}

// IsInstanceUnhealthy reports whether err means the instance is not Running.
func IsInstanceUnhealthy(err error) bool {
	_, ok := err.(unhealthyError)
	return ok
}

// unreachableError distinguishes "loaded but currently down" from "never
// loaded" when a proxied connection fails.
type unreachableError struct {
	id    string
	cause error
}

func (e unreachableError) Error() string {
	return fmt.Sprintf("model %q instance unreachable: %v", e.id, e.cause)
}
func (e unreachableError) Unwrap() error { return e.cause }

// ErrInstanceUnreachable wraps a transport failure against a resolved
// instance endpoint.
func ErrInstanceUnreachable(modelID string, cause error) error {
	return unreachableError{id: modelID, cause: cause}
}

// IsInstanceUnreachable reports whether err is a transport failure to a
// resolved endpoint.
func IsInstanceUnreachable(err error) bool {
	_, ok := err.(unreachableError)
	return ok
}

// probeUnavailableError means the hardware probe degraded to the CPU-only
// fallback, so GPU units cannot be validated or claimed.
type probeUnavailableError struct{ unit int }

func (e probeUnavailableError) Error() string {
	return fmt.Sprintf("gpu %d unavailable: probe backend unreachable, running in cpu-only fallback", e.unit)
}

// ErrProbeUnavailable constructs a probeUnavailableError for the requested
// device index.
func ErrProbeUnavailable(unit int) error { return probeUnavailableError{unit: unit} }

// IsProbeUnavailable reports whether err means the probe backend is down.
func IsProbeUnavailable(err error) bool {
	_, ok := err.(probeUnavailableError)
	return ok
}

// ErrorKind maps a manager error to its machine-readable kind, or "" for
// errors outside the taxonomy.
func ErrorKind(err error) string {
	switch {
	case IsResourceOccupied(err):
		return KindResourceOccupied
	case IsResourceConflict(err):
		return KindResourceConflict
	case IsLaunchTimeout(err):
		return KindLaunchTimeout
	case IsLaunchFailed(err):
		return KindLaunchFailed
	case IsCrashLoop(err):
		return KindCrashLoop
	case IsNotLoaded(err):
		return KindNotLoaded
	case IsModelNotFound(err):
		return KindModelNotFound
	case IsModelNotLoaded(err):
		return KindModelNotLoaded
	case IsInstanceUnhealthy(err):
		return KindInstanceUnhealthy
	case IsInstanceUnreachable(err):
		return KindInstanceUnreachable
	case IsProbeUnavailable(err):
		return KindProbeUnavailable
	default:
		return ""
	}
}

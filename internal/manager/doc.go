// Package manager owns the lifecycle of llama-server subprocesses and the
// exclusive assignment of GPU devices to them. It is structured into small
// files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: internal state types (State, Instance, Health, launchSpec).
//   - assignment.go: the device-set grammar ("0", "1", "0,1", "cpu") and its
//     canonical form.
//   - errors.go: error taxonomy and IsXxx helpers (IsResourceOccupied, ...).
//   - instregistry.go: the instance table; Reserve/Commit/Release is the one
//     serialization point for concurrent loads.
//   - supervisor.go: subprocess spawn, readiness wait, health watch, restart
//     with backoff, graceful stop.
//   - load.go, unload.go, switchop.go: the three lifecycle operations.
//   - status.go, resolve.go: read-only reporting and routing lookup.
//   - ringbuf.go: bounded capture of subprocess output.
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//   - metrics.go: Prometheus counters and gauges.
//
// External packages should treat this package as the orchestration layer and
// use public methods only (New, Load, Unload, Switch, Status, GPUStatus,
// Logs, Resolve, Ready, Close). Internal types are subject to change.
package manager

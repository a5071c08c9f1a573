package httpapi

import (
	"encoding/json"
	"net/http"

	"llamactld/internal/manager"
	"llamactld/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Kind: kind, Code: status})
}

// writeManagerError maps a lifecycle error to its HTTP status and payload.
func writeManagerError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err.Error(), manager.ErrorKind(err))
}

// statusFor maps the manager error taxonomy to HTTP status codes. Contention
// is 409, absence is 404, startup failures are gateway-side errors, and
// anything outside the taxonomy is either a bad request (invalid assignment)
// or a 500.
func statusFor(err error) int {
	switch {
	case manager.IsInvalidAssignment(err):
		return http.StatusBadRequest
	case manager.IsResourceOccupied(err), manager.IsResourceConflict(err):
		return http.StatusConflict
	case manager.IsModelNotFound(err), manager.IsNotLoaded(err), manager.IsModelNotLoaded(err):
		return http.StatusNotFound
	case manager.IsLaunchTimeout(err):
		return http.StatusGatewayTimeout
	case manager.IsLaunchFailed(err), manager.IsCrashLoop(err), manager.IsInstanceUnreachable(err):
		return http.StatusBadGateway
	case manager.IsInstanceUnhealthy(err), manager.IsProbeUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

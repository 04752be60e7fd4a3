package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quarryhq/quarry/pkg/types"
)

// errorBody is the single error payload shape: a detail string plus the
// HTTP status carried on the wire.
type errorBody struct {
	Detail string `json:"detail"`
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps an error kind to its HTTP status and writes the
// detail payload.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Detail: err.Error()})
}

// statusFor maps typed error kinds to HTTP statuses
func statusFor(err error) int {
	var (
		notFound     *types.NotFoundError
		conflict     *types.ConflictError
		validation   *types.ValidationError
		sandbox      *types.SandboxError
		hashMismatch *types.HashMismatchError
		confirmation *types.ConfirmationInvalidError
		gitCommand   *types.GitCommandError
		cleanup      *types.CleanupError
		maintenance  *types.MaintenanceError
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &sandbox):
		return http.StatusForbidden
	case errors.As(err, &hashMismatch):
		return http.StatusConflict
	case errors.As(err, &confirmation):
		return http.StatusBadRequest
	case errors.As(err, &gitCommand):
		if gitCommand.RemoteUnreachable() {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	case errors.As(err, &cleanup):
		return http.StatusInternalServerError
	case errors.As(err, &maintenance):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/slotwise/internal/domain"
)

const (
	codeMethodNotAllowed        = "method_not_allowed"
	codeNotFound                = "not_found"
	codeInvalidRequestBody      = "invalid_request_body"
	codeInvalidID               = "invalid_id"
	codeInvalidInterval         = "invalid_interval"
	codeInvalidStatus           = "invalid_status"
	codeInvalidSlotDuration     = "invalid_slot_duration"
	codeOwnerRequired           = "owner_id_required"
	codeActorRequired           = "actor_id_required"
	codeIdempotencyRequired     = "idempotency_token_required"
	codeIdempotencyConflict     = "idempotency_conflict"
	codeIntervalOverlap         = "interval_overlap"
	codeTimeSlotConflict        = "time_slot_conflict"
	codeLockConflict            = "lock_conflict"
	codeReservationNotFound     = "reservation_not_found"
	codeForbidden               = "forbidden"
	codeAlreadyCancelled        = "already_cancelled"
	codeCoordinationUnavailable = "coordination_unavailable"
	codeStoreUnavailable        = "store_unavailable"
	codeInternalError           = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps domain error kinds onto transport status codes.
// Conflicts are 409, infrastructure outages 503; the lock conflict keeps its
// own code so clients know a plain retry may succeed.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, codeInvalidInterval, err.Error())
	case errors.Is(err, domain.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, codeInvalidStatus, err.Error())
	case errors.Is(err, domain.ErrInvalidSlotDuration):
		writeError(w, http.StatusBadRequest, codeInvalidSlotDuration, err.Error())
	case errors.Is(err, domain.ErrOwnerRequired):
		writeError(w, http.StatusBadRequest, codeOwnerRequired, err.Error())
	case errors.Is(err, domain.ErrActorRequired):
		writeError(w, http.StatusBadRequest, codeActorRequired, err.Error())
	case errors.Is(err, domain.ErrIdempotencyTokenRequired):
		writeError(w, http.StatusBadRequest, codeIdempotencyRequired, err.Error())
	case errors.Is(err, domain.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, domain.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, codeAlreadyCancelled, err.Error())
	case errors.Is(err, domain.ErrIntervalOverlap):
		writeError(w, http.StatusConflict, codeIntervalOverlap, err.Error())
	case errors.Is(err, domain.ErrTimeSlotConflict):
		writeError(w, http.StatusConflict, codeTimeSlotConflict, err.Error())
	case errors.Is(err, domain.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, codeIdempotencyConflict, err.Error())
	case errors.Is(err, domain.ErrLockConflict):
		writeError(w, http.StatusConflict, codeLockConflict, err.Error())
	case errors.Is(err, domain.ErrCoordinationUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeCoordinationUnavailable, "coordination store unavailable")
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeStoreUnavailable, "reservation store unavailable")
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

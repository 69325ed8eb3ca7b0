package domain

import "errors"

var (
	// ErrLockConflict means another request holds the lease for the same
	// resource key. Retriable by the caller.
	ErrLockConflict = errors.New("resource is locked by another request")
	// ErrIntervalOverlap means the overlap check found an existing active
	// reservation in the requested interval.
	ErrIntervalOverlap = errors.New("interval overlaps an existing reservation")
	// ErrTimeSlotConflict means the storage-level exclusion constraint
	// rejected the interval. Same outcome as ErrIntervalOverlap, detected
	// one layer lower.
	ErrTimeSlotConflict = errors.New("time slot conflict")

	ErrReservationNotFound = errors.New("reservation not found")
	ErrNotOwner            = errors.New("actor does not own reservation")
	ErrAlreadyCancelled    = errors.New("reservation already cancelled")
	ErrIdempotencyConflict = errors.New("idempotency conflict")

	// ErrCoordinationUnavailable wraps coordination store failures.
	// Retriable by the caller.
	ErrCoordinationUnavailable = errors.New("coordination store unavailable")
	// ErrStoreUnavailable wraps reservation store connectivity failures.
	// Retriable by the caller.
	ErrStoreUnavailable = errors.New("reservation store unavailable")

	ErrInvalidInterval          = errors.New("invalid interval")
	ErrInvalidStatus            = errors.New("invalid reservation status")
	ErrInvalidSlotDuration      = errors.New("invalid slot duration")
	ErrOwnerRequired            = errors.New("owner id required")
	ErrActorRequired            = errors.New("actor id required")
	ErrIdempotencyTokenRequired = errors.New("idempotency token required")
	ErrInvalidID                = errors.New("invalid id")
)

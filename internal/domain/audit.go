package domain

import "time"

type AuditAction string

const (
	ActionCreated     AuditAction = "created"
	ActionCancelled   AuditAction = "cancelled"
	ActionRescheduled AuditAction = "rescheduled"
)

// AuditRecord captures one successful mutation of a reservation. Records are
// append-only and written in the same transaction as the mutation they
// describe. PreviousStatus is empty and the previous interval nil for
// ActionCreated.
type AuditRecord struct {
	ID             string
	ReservationID  string
	Action         AuditAction
	PreviousStatus ReservationStatus
	NewStatus      ReservationStatus
	PreviousStart  *time.Time
	PreviousEnd    *time.Time
	NewStart       time.Time
	NewEnd         time.Time
	ActorID        string
	Reason         string
	CreatedAt      time.Time
}

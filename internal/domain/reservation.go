package domain

import "time"

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
)

// Reservation is an owner's exclusive claim on the half-open interval
// [StartAt, EndAt). Cancelled is terminal; a cancelled reservation never
// occupies its interval again.
type Reservation struct {
	ID               string
	OwnerID          string
	StartAt          time.Time
	EndAt            time.Time
	Status           ReservationStatus
	IdempotencyToken string
	Metadata         map[string]string
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Active reports whether the reservation currently occupies its interval.
func (r Reservation) Active() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share at least one instant.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Slot is a free candidate interval produced by availability scans.
type Slot struct {
	StartAt time.Time
	EndAt   time.Time
}

// ReservationFilter narrows ListReservations results. Zero values mean
// "no constraint".
type ReservationFilter struct {
	Status ReservationStatus
	From   time.Time
	To     time.Time
	Limit  int
}

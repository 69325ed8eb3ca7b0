package app

import (
	"context"
	"iter"
	"time"

	"github.com/cimillas/slotwise/internal/domain"
)

// ListAvailableSlots yields free fixed-duration slots tiling the half-open
// window [windowStart, windowEnd). The busy set is read once up front; the
// returned sequence is lazy and can be iterated multiple times. Reads take no
// lock and tolerate being slightly stale under concurrent writes; the
// create path is the source of truth.
func (s *ReservationService) ListAvailableSlots(ctx context.Context, ownerID string, windowStart, windowEnd time.Time, slotDuration time.Duration) (iter.Seq[domain.Slot], error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	if slotDuration <= 0 {
		return nil, domain.ErrInvalidSlotDuration
	}
	windowStart, windowEnd = windowStart.UTC(), windowEnd.UTC()
	if !windowStart.Before(windowEnd) {
		return nil, domain.ErrInvalidInterval
	}

	busy, err := s.repo.ListActiveBetween(ctx, ownerID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	return func(yield func(domain.Slot) bool) {
		for start := windowStart; !start.Add(slotDuration).After(windowEnd); start = start.Add(slotDuration) {
			end := start.Add(slotDuration)
			if slotTaken(busy, start, end) {
				continue
			}
			if !yield(domain.Slot{StartAt: start, EndAt: end}) {
				return
			}
		}
	}, nil
}

func slotTaken(busy []domain.Reservation, start, end time.Time) bool {
	for _, r := range busy {
		if !r.Active() {
			continue
		}
		if domain.Overlaps(r.StartAt, r.EndAt, start, end) {
			return true
		}
	}
	return false
}

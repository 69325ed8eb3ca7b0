package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/slotwise/internal/clock"
	"github.com/cimillas/slotwise/internal/domain"
	"github.com/cimillas/slotwise/internal/lock"
	"github.com/google/uuid"
)

// ReservationRepository is the transactional store behind the service.
// WithTx runs fn inside one transaction; repository calls made with the
// context fn receives join that transaction.
type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetReservation(ctx context.Context, id string) (domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	FindByIdempotencyToken(ctx context.Context, token string) (*domain.Reservation, error)
	FindOverlapping(ctx context.Context, ownerID string, startAt, endAt time.Time, excludeID string) ([]domain.Reservation, error)
	CreateReservation(ctx context.Context, r domain.Reservation) error
	UpdateStatus(ctx context.Context, id string, status domain.ReservationStatus, expectedVersion int, updatedAt time.Time) error
	UpdateInterval(ctx context.Context, id string, startAt, endAt time.Time, expectedVersion int, updatedAt time.Time) error
	ListReservations(ctx context.Context, ownerID string, f domain.ReservationFilter) ([]domain.Reservation, error)
	ListActiveBetween(ctx context.Context, ownerID string, startAt, endAt time.Time) ([]domain.Reservation, error)
	AppendAudit(ctx context.Context, rec domain.AuditRecord) error
}

// Locker serializes concurrent attempts on the same resource key across
// service instances. Acquire fails fast with domain.ErrLockConflict when the
// key is held elsewhere.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Lease, error)
	Release(ctx context.Context, lease lock.Lease) error
}

type ReservationService struct {
	repo     ReservationRepository
	locker   Locker
	clock    clock.Clock
	leaseTTL time.Duration
}

const defaultLeaseTTL = 5 * time.Second

func NewReservationService(repo ReservationRepository, locker Locker, clk clock.Clock, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:     repo,
		locker:   locker,
		clock:    clk,
		leaseTTL: defaultLeaseTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithLeaseTTL overrides the default TTL for coordination leases.
func WithLeaseTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.leaseTTL = d
		}
	}
}

type CreateReservationInput struct {
	OwnerID          string
	StartAt          time.Time
	EndAt            time.Time
	Status           domain.ReservationStatus
	Metadata         map[string]string
	IdempotencyToken string
}

// CreateReservation reserves [StartAt, EndAt) for the owner. Retried
// requests carrying a token that already produced a reservation get that
// reservation back unmodified, regardless of payload differences.
func (s *ReservationService) CreateReservation(ctx context.Context, in CreateReservationInput) (domain.Reservation, error) {
	if in.OwnerID == "" {
		return domain.Reservation{}, domain.ErrOwnerRequired
	}
	if in.IdempotencyToken == "" {
		return domain.Reservation{}, domain.ErrIdempotencyTokenRequired
	}
	start, end := in.StartAt.UTC(), in.EndAt.UTC()
	if !start.Before(end) {
		return domain.Reservation{}, domain.ErrInvalidInterval
	}
	status := in.Status
	if status == "" {
		status = domain.StatusConfirmed
	}
	if status != domain.StatusPending && status != domain.StatusConfirmed {
		return domain.Reservation{}, domain.ErrInvalidStatus
	}

	// Fast path for retries: no lock, no new audit record.
	if existing, err := s.repo.FindByIdempotencyToken(ctx, in.IdempotencyToken); err != nil {
		return domain.Reservation{}, err
	} else if existing != nil {
		return *existing, nil
	}

	lease, err := s.locker.Acquire(ctx, createLeaseKey(in.OwnerID, start), s.leaseTTL)
	if err != nil {
		return domain.Reservation{}, err
	}
	defer func() {
		// The lease must go away on every exit path; its TTL is the
		// backstop if this release fails.
		_ = s.locker.Release(context.Background(), lease)
	}()

	now := s.clock.Now()
	var result domain.Reservation
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		overlapping, err := s.repo.FindOverlapping(txCtx, in.OwnerID, start, end, "")
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return domain.ErrIntervalOverlap
		}

		resv := domain.Reservation{
			ID:               uuid.NewString(),
			OwnerID:          in.OwnerID,
			StartAt:          start,
			EndAt:            end,
			Status:           status,
			IdempotencyToken: in.IdempotencyToken,
			Metadata:         in.Metadata,
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := s.repo.CreateReservation(txCtx, resv); err != nil {
			// A concurrent retry can win the token race between the fast
			// path and this insert; hand back its reservation.
			if errors.Is(err, domain.ErrIdempotencyConflict) {
				existing, ferr := s.repo.FindByIdempotencyToken(txCtx, in.IdempotencyToken)
				if ferr != nil {
					return ferr
				}
				if existing != nil {
					result = *existing
					return nil
				}
			}
			return err
		}

		if err := s.repo.AppendAudit(txCtx, domain.AuditRecord{
			ID:            uuid.NewString(),
			ReservationID: resv.ID,
			Action:        domain.ActionCreated,
			NewStatus:     resv.Status,
			NewStart:      resv.StartAt,
			NewEnd:        resv.EndAt,
			ActorID:       in.OwnerID,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		result = resv
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

// CancelReservation moves the reservation to its terminal cancelled state.
func (s *ReservationService) CancelReservation(ctx context.Context, id, actorID, reason string) (domain.Reservation, error) {
	if id == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	if actorID == "" {
		return domain.Reservation{}, domain.ErrActorRequired
	}

	lease, err := s.locker.Acquire(ctx, reservationLeaseKey(id), s.leaseTTL)
	if err != nil {
		return domain.Reservation{}, err
	}
	defer func() {
		_ = s.locker.Release(context.Background(), lease)
	}()

	now := s.clock.Now()
	var result domain.Reservation
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		resv, err := s.repo.GetReservationForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if resv.OwnerID != actorID {
			return domain.ErrNotOwner
		}
		if resv.Status == domain.StatusCancelled {
			return domain.ErrAlreadyCancelled
		}

		if err := s.repo.UpdateStatus(txCtx, id, domain.StatusCancelled, resv.Version, now); err != nil {
			return err
		}

		prevStart, prevEnd := resv.StartAt, resv.EndAt
		if err := s.repo.AppendAudit(txCtx, domain.AuditRecord{
			ID:             uuid.NewString(),
			ReservationID:  resv.ID,
			Action:         domain.ActionCancelled,
			PreviousStatus: resv.Status,
			NewStatus:      domain.StatusCancelled,
			PreviousStart:  &prevStart,
			PreviousEnd:    &prevEnd,
			NewStart:       resv.StartAt,
			NewEnd:         resv.EndAt,
			ActorID:        actorID,
			Reason:         reason,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		resv.Status = domain.StatusCancelled
		resv.Version++
		resv.UpdatedAt = now
		result = resv
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

// RescheduleReservation atomically replaces the reservation's interval.
// Either the full new interval takes effect or nothing changes.
func (s *ReservationService) RescheduleReservation(ctx context.Context, id, actorID string, newStart, newEnd time.Time) (domain.Reservation, error) {
	if id == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	if actorID == "" {
		return domain.Reservation{}, domain.ErrActorRequired
	}
	newStart, newEnd = newStart.UTC(), newEnd.UTC()
	if !newStart.Before(newEnd) {
		return domain.Reservation{}, domain.ErrInvalidInterval
	}

	lease, err := s.locker.Acquire(ctx, reservationLeaseKey(id), s.leaseTTL)
	if err != nil {
		return domain.Reservation{}, err
	}
	defer func() {
		_ = s.locker.Release(context.Background(), lease)
	}()

	now := s.clock.Now()
	var result domain.Reservation
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		resv, err := s.repo.GetReservationForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if resv.OwnerID != actorID {
			return domain.ErrNotOwner
		}
		if resv.Status == domain.StatusCancelled {
			return domain.ErrAlreadyCancelled
		}

		overlapping, err := s.repo.FindOverlapping(txCtx, resv.OwnerID, newStart, newEnd, resv.ID)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return domain.ErrTimeSlotConflict
		}

		if err := s.repo.UpdateInterval(txCtx, id, newStart, newEnd, resv.Version, now); err != nil {
			return err
		}

		prevStart, prevEnd := resv.StartAt, resv.EndAt
		if err := s.repo.AppendAudit(txCtx, domain.AuditRecord{
			ID:             uuid.NewString(),
			ReservationID:  resv.ID,
			Action:         domain.ActionRescheduled,
			PreviousStatus: resv.Status,
			NewStatus:      resv.Status,
			PreviousStart:  &prevStart,
			PreviousEnd:    &prevEnd,
			NewStart:       newStart,
			NewEnd:         newEnd,
			ActorID:        actorID,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		resv.StartAt = newStart
		resv.EndAt = newEnd
		resv.Version++
		resv.UpdatedAt = now
		result = resv
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

// GetReservation returns a reservation by id.
func (s *ReservationService) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	if id == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	return s.repo.GetReservation(ctx, id)
}

// ListReservations returns the owner's reservations narrowed by the filter.
func (s *ReservationService) ListReservations(ctx context.Context, ownerID string, f domain.ReservationFilter) ([]domain.Reservation, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	return s.repo.ListReservations(ctx, ownerID, f)
}

func createLeaseKey(ownerID string, startAt time.Time) string {
	return fmt.Sprintf("resv:%s:%s", ownerID, startAt.UTC().Format(time.RFC3339))
}

func reservationLeaseKey(id string) string {
	return "resv:id:" + id
}

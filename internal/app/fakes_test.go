package app

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cimillas/slotwise/internal/domain"
	"github.com/cimillas/slotwise/internal/lock"
)

// fakeReservationRepo keeps reservations in memory and mimics the store's
// concurrency control: WithTx serializes transactions under one mutex, and
// CreateReservation/UpdateInterval enforce the token and exclusion
// constraints the way the database does.
type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[string]domain.Reservation
	audits       []domain.AuditRecord
}

type fakeTxKey struct{}

func newFakeReservationRepo(existing ...domain.Reservation) *fakeReservationRepo {
	f := &fakeReservationRepo{reservations: make(map[string]domain.Reservation)}
	for _, resv := range existing {
		f.reservations[resv.ID] = resv
	}
	return f
}

func (f *fakeReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(context.WithValue(ctx, fakeTxKey{}, struct{}{}))
}

// enter locks the repo for callers outside a transaction and returns the
// matching unlock.
func (f *fakeReservationRepo) enter(ctx context.Context) func() {
	if ctx.Value(fakeTxKey{}) != nil {
		return func() {}
	}
	f.mu.Lock()
	return f.mu.Unlock
}

func (f *fakeReservationRepo) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	defer f.enter(ctx)()
	resv, ok := f.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return resv, nil
}

func (f *fakeReservationRepo) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	return f.GetReservation(ctx, id)
}

func (f *fakeReservationRepo) FindByIdempotencyToken(ctx context.Context, token string) (*domain.Reservation, error) {
	defer f.enter(ctx)()
	for _, resv := range f.reservations {
		if resv.IdempotencyToken == token {
			r := resv
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeReservationRepo) FindOverlapping(ctx context.Context, ownerID string, startAt, endAt time.Time, excludeID string) ([]domain.Reservation, error) {
	defer f.enter(ctx)()
	return f.overlappingLocked(ownerID, startAt, endAt, excludeID), nil
}

func (f *fakeReservationRepo) overlappingLocked(ownerID string, startAt, endAt time.Time, excludeID string) []domain.Reservation {
	var out []domain.Reservation
	for _, resv := range f.reservations {
		if resv.OwnerID != ownerID || resv.ID == excludeID || !resv.Active() {
			continue
		}
		if domain.Overlaps(resv.StartAt, resv.EndAt, startAt, endAt) {
			out = append(out, resv)
		}
	}
	return out
}

func (f *fakeReservationRepo) CreateReservation(ctx context.Context, resv domain.Reservation) error {
	defer f.enter(ctx)()
	for _, r := range f.reservations {
		if r.IdempotencyToken == resv.IdempotencyToken {
			return domain.ErrIdempotencyConflict
		}
	}
	if resv.Active() && len(f.overlappingLocked(resv.OwnerID, resv.StartAt, resv.EndAt, resv.ID)) > 0 {
		return domain.ErrTimeSlotConflict
	}
	f.reservations[resv.ID] = resv
	return nil
}

func (f *fakeReservationRepo) UpdateStatus(ctx context.Context, id string, status domain.ReservationStatus, expectedVersion int, updatedAt time.Time) error {
	defer f.enter(ctx)()
	resv, ok := f.reservations[id]
	if !ok || resv.Version != expectedVersion {
		return domain.ErrReservationNotFound
	}
	resv.Status = status
	resv.Version++
	resv.UpdatedAt = updatedAt
	f.reservations[id] = resv
	return nil
}

func (f *fakeReservationRepo) UpdateInterval(ctx context.Context, id string, startAt, endAt time.Time, expectedVersion int, updatedAt time.Time) error {
	defer f.enter(ctx)()
	resv, ok := f.reservations[id]
	if !ok || resv.Version != expectedVersion {
		return domain.ErrReservationNotFound
	}
	if resv.Active() && len(f.overlappingLocked(resv.OwnerID, startAt, endAt, id)) > 0 {
		return domain.ErrTimeSlotConflict
	}
	resv.StartAt = startAt
	resv.EndAt = endAt
	resv.Version++
	resv.UpdatedAt = updatedAt
	f.reservations[id] = resv
	return nil
}

func (f *fakeReservationRepo) ListReservations(ctx context.Context, ownerID string, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	defer f.enter(ctx)()
	var out []domain.Reservation
	for _, resv := range f.reservations {
		if resv.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && resv.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && !resv.EndAt.After(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !resv.StartAt.Before(filter.To) {
			continue
		}
		out = append(out, resv)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) ListActiveBetween(ctx context.Context, ownerID string, startAt, endAt time.Time) ([]domain.Reservation, error) {
	defer f.enter(ctx)()
	var out []domain.Reservation
	for _, resv := range f.reservations {
		if resv.OwnerID != ownerID || !resv.Active() {
			continue
		}
		if domain.Overlaps(resv.StartAt, resv.EndAt, startAt, endAt) {
			out = append(out, resv)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) AppendAudit(ctx context.Context, rec domain.AuditRecord) error {
	defer f.enter(ctx)()
	f.audits = append(f.audits, rec)
	return nil
}

func (f *fakeReservationRepo) count(ownerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, resv := range f.reservations {
		if resv.OwnerID == ownerID {
			n++
		}
	}
	return n
}

func (f *fakeReservationRepo) get(id string) (domain.Reservation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resv, ok := f.reservations[id]
	return resv, ok
}

func (f *fakeReservationRepo) auditsFor(reservationID string) []domain.AuditRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditRecord
	for _, rec := range f.audits {
		if rec.ReservationID == reservationID {
			out = append(out, rec)
		}
	}
	return out
}

// fakeLocker grants each key to at most one holder and fails fast on
// contention, like the Redis client with retries exhausted.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
	next int
	err  error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (f *fakeLocker) Acquire(_ context.Context, key string, ttl time.Duration) (lock.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return lock.Lease{}, f.err
	}
	if _, ok := f.held[key]; ok {
		return lock.Lease{}, domain.ErrLockConflict
	}
	f.next++
	token := "token-" + strconv.Itoa(f.next)
	f.held[key] = token
	return lock.Lease{Key: key, Token: token, TTL: ttl}, nil
}

func (f *fakeLocker) Release(_ context.Context, lease lock.Lease) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[lease.Key] == lease.Token {
		delete(f.held, lease.Key)
	}
	return nil
}

func (f *fakeLocker) holdKey(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.held[key] = "token-" + strconv.Itoa(f.next)
}

func (f *fakeLocker) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeLocker) heldCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/slotwise/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reservationColumns = `id, owner_id, start_at, end_at, status, idempotency_token, metadata, version, created_at, updated_at`

type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetReservationForUpdate loads a reservation holding a row lock for the
// remainder of the transaction.
func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *ReservationRepository) getOne(ctx context.Context, query, id string) (domain.Reservation, error) {
	resv, err := scanReservation(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, storeError("get reservation", err)
	}
	return resv, nil
}

func (r *ReservationRepository) FindByIdempotencyToken(ctx context.Context, token string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE idempotency_token = $1`
	resv, err := scanReservation(r.queryRow(ctx, query, token))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, storeError("find reservation by token", err)
	}
	return &resv, nil
}

// FindOverlapping returns active reservations for the owner whose intervals
// share at least one instant with [startAt, endAt), locking the matched rows
// so a concurrent check cannot interleave with this transaction's insert.
func (r *ReservationRepository) FindOverlapping(ctx context.Context, ownerID string, startAt, endAt time.Time, excludeID string) ([]domain.Reservation, error) {
	query := `
SELECT ` + reservationColumns + `
FROM reservations
WHERE owner_id = $1
  AND status IN ('pending', 'confirmed')
  AND start_at < $3
  AND end_at > $2
  AND ($4 = '' OR id::text <> $4)
ORDER BY start_at
FOR UPDATE`

	rows, err := r.query(ctx, query, ownerID, startAt, endAt, excludeID)
	if err != nil {
		return nil, storeError("find overlapping", err)
	}
	return collectReservations(rows)
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, resv domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, owner_id, start_at, end_at, status, idempotency_token, metadata, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	metadata := resv.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err := r.exec(ctx, stmt,
		resv.ID,
		resv.OwnerID,
		resv.StartAt,
		resv.EndAt,
		resv.Status,
		resv.IdempotencyToken,
		metadata,
		resv.Version,
		resv.CreatedAt,
		resv.UpdatedAt,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return domain.ErrTimeSlotConflict
		}
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return storeError("create reservation", err)
	}
	return nil
}

// UpdateStatus sets the status guarded by the expected version, bumping the
// version on success.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id string, status domain.ReservationStatus, expectedVersion int, updatedAt time.Time) error {
	const stmt = `
UPDATE reservations
SET status = $2, version = version + 1, updated_at = $4
WHERE id = $1 AND version = $3`

	tag, err := r.exec(ctx, stmt, id, status, expectedVersion, updatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return storeError("update status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

// UpdateInterval replaces the interval guarded by the expected version. The
// exclusion constraint re-validates the new interval on the same statement.
func (r *ReservationRepository) UpdateInterval(ctx context.Context, id string, startAt, endAt time.Time, expectedVersion int, updatedAt time.Time) error {
	const stmt = `
UPDATE reservations
SET start_at = $2, end_at = $3, version = version + 1, updated_at = $5
WHERE id = $1 AND version = $4`

	tag, err := r.exec(ctx, stmt, id, startAt, endAt, expectedVersion, updatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			return domain.ErrTimeSlotConflict
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return storeError("update interval", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) ListReservations(ctx context.Context, ownerID string, f domain.ReservationFilter) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE owner_id = $1`
	args := []any{ownerID}

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND end_at > $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND start_at < $%d", len(args))
	}
	query += " ORDER BY start_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, storeError("list reservations", err)
	}
	return collectReservations(rows)
}

// ListActiveBetween returns pending and confirmed reservations touching the
// window, without locking. Used by availability scans.
func (r *ReservationRepository) ListActiveBetween(ctx context.Context, ownerID string, startAt, endAt time.Time) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE owner_id = $1
  AND status IN ('pending', 'confirmed')
  AND start_at < $3
  AND end_at > $2
ORDER BY start_at`

	rows, err := r.query(ctx, query, ownerID, startAt, endAt)
	if err != nil {
		return nil, storeError("list active between", err)
	}
	return collectReservations(rows)
}

func (r *ReservationRepository) AppendAudit(ctx context.Context, rec domain.AuditRecord) error {
	const stmt = `
INSERT INTO reservation_audit (id, reservation_id, action, previous_status, new_status, previous_start, previous_end, new_start, new_end, actor_id, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.exec(ctx, stmt,
		rec.ID,
		rec.ReservationID,
		rec.Action,
		rec.PreviousStatus,
		rec.NewStatus,
		rec.PreviousStart,
		rec.PreviousEnd,
		rec.NewStart,
		rec.NewEnd,
		rec.ActorID,
		rec.Reason,
		rec.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return storeError("append audit", err)
	}
	return nil
}

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var resv domain.Reservation
	err := row.Scan(
		&resv.ID,
		&resv.OwnerID,
		&resv.StartAt,
		&resv.EndAt,
		&resv.Status,
		&resv.IdempotencyToken,
		&resv.Metadata,
		&resv.Version,
		&resv.CreatedAt,
		&resv.UpdatedAt,
	)
	return resv, err
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		resv, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, resv)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate reservations", err)
	}
	return out, nil
}

func (r *ReservationRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ReservationRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *ReservationRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

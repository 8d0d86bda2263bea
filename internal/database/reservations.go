package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kurort/internal/models"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

const reservationColumns = `id, room_id, guest_id, date(check_in), date(check_out), status,
	                 hold_token, payment_ref, cancel_reason, expires_at,
					 confirmed_at, cancelled_at, created_at, updated_at, version`

// CountOverlapping returns the number of live (pending or confirmed)
// reservations on the room whose range intersects [checkIn, checkOut).
// Two ranges [a,b) and [c,d) conflict iff a < d AND c < b.
func (db *DB) CountOverlapping(ctx context.Context, roomID int64, checkIn, checkOut time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM reservations
              WHERE room_id = ? AND status IN (?, ?)
              AND date(check_in) < ? AND ? < date(check_out)`
	var count int
	err := db.QueryRowContext(ctx, query, roomID,
		models.StatusPending, models.StatusConfirmed,
		checkOut.Format(dateLayout), checkIn.Format(dateLayout)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping reservations: %w", err)
	}
	return count, nil
}

// CheckRangeAvailable проверяет доступность комнаты на диапазон дат
func (db *DB) CheckRangeAvailable(ctx context.Context, roomID int64, checkIn, checkOut time.Time) (bool, error) {
	count, err := db.CountOverlapping(ctx, roomID, checkIn, checkOut)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// CreateReservationHold records a pending hold for the range. The overlap
// check and the insert run inside one transaction, so of two concurrent
// calls for conflicting ranges on the same room exactly one commits and the
// other returns ErrConflict.
func (db *DB) CreateReservationHold(ctx context.Context, r *models.Reservation, holdDuration time.Duration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Overlap check inside the transaction
	var overlapping int
	queryCount := `SELECT COUNT(*) FROM reservations
              WHERE room_id = ? AND status IN (?, ?)
              AND date(check_in) < ? AND ? < date(check_out)`
	err = tx.QueryRowContext(ctx, queryCount, r.RoomID,
		models.StatusPending, models.StatusConfirmed,
		r.CheckOut.Format(dateLayout), r.CheckIn.Format(dateLayout)).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check overlap in tx: %w", err)
	}
	if overlapping > 0 {
		return ErrConflict
	}

	// 2. Insert the hold
	now := time.Now()
	expiresAt := now.Add(holdDuration)
	token := uuid.NewString()

	queryInsert := `INSERT INTO reservations (
				room_id, guest_id, check_in, check_out, status, hold_token,
				expires_at, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, queryInsert,
		r.RoomID,
		r.GuestID,
		r.CheckIn.Format(dateLayout),
		r.CheckOut.Format(dateLayout),
		models.StatusPending,
		token,
		expiresAt,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	r.ID = id
	r.Status = models.StatusPending
	r.HoldToken = token
	r.ExpiresAt = &expiresAt
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := db.scanReservation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// ConfirmReservation moves a live pending reservation to confirmed. When the
// hold deadline has already passed the row goes through the same expiry
// release as the sweeper would apply, and ErrExpired is reported.
func (db *DB) ConfirmReservation(ctx context.Context, id int64, paymentRef string) (*models.Reservation, error) {
	now := time.Now()
	query := `UPDATE reservations
              SET status = ?, payment_ref = ?, expires_at = NULL, confirmed_at = ?,
                  version = version + 1, updated_at = ?
              WHERE id = ? AND status = ? AND expires_at > ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusConfirmed, paymentRef, now, now, id, models.StatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm reservation: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, db.resolveConfirmFailure(ctx, id, now)
	}

	return db.GetReservation(ctx, id)
}

// resolveConfirmFailure determines why a guarded confirm matched no rows.
func (db *DB) resolveConfirmFailure(ctx context.Context, id int64, now time.Time) error {
	r, err := db.GetReservation(ctx, id)
	if err != nil {
		return err
	}

	if r.Status == models.StatusPending && r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		// Deadline passed before the payment arrived: release the range the
		// same way the sweeper does, then report the expiry.
		if err := db.ExpireReservation(ctx, id); err != nil {
			db.logger.Error().Err(err).Int64("reservation_id", id).Msg("expire on confirm failed")
		}
		return ErrExpired
	}

	if r.Status == models.StatusExpired {
		return ErrExpired
	}
	return ErrInvalidState
}

// CancelReservation moves a pending or confirmed reservation to cancelled
// and releases its range.
func (db *DB) CancelReservation(ctx context.Context, id int64, reason string) (*models.Reservation, error) {
	now := time.Now()
	query := `UPDATE reservations
              SET status = ?, cancel_reason = ?, expires_at = NULL, cancelled_at = ?,
                  version = version + 1, updated_at = ?
              WHERE id = ? AND status IN (?, ?)`
	result, err := db.ExecContext(ctx, query,
		models.StatusCancelled, reason, now, now, id,
		models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := db.GetReservation(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrInvalidState
	}

	return db.GetReservation(ctx, id)
}

// ExpireReservation force-transitions a stale pending reservation to expired.
// Idempotent: a reservation already in a terminal state is a no-op, so the
// sweeper safely loses races against concurrent confirm/cancel calls.
func (db *DB) ExpireReservation(ctx context.Context, id int64) error {
	now := time.Now()
	query := `UPDATE reservations
              SET status = ?, expires_at = NULL, version = version + 1, updated_at = ?
              WHERE id = ? AND status = ? AND expires_at <= ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusExpired, now, id, models.StatusPending, now)
	if err != nil {
		return fmt.Errorf("failed to expire reservation: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		r, err := db.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if r.IsTerminal() {
			return nil
		}
		// Still pending with a live deadline: not the sweeper's to touch.
		return ErrInvalidState
	}
	return nil
}

// GetExpiredPending returns pending reservations whose deadline has passed,
// oldest first. One sweeper cycle processes at most limit rows.
func (db *DB) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE status = ? AND expires_at <= ?
              ORDER BY expires_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, models.StatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired pending reservations: %w", err)
	}
	defer rows.Close()

	return db.collectReservations(rows)
}

func (db *DB) GetGuestReservations(ctx context.Context, guestID int64) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations WHERE guest_id = ? ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guest reservations: %w", err)
	}
	defer rows.Close()

	return db.collectReservations(rows)
}

// GetReservationsByDateRange returns reservations whose stay intersects the
// period, any status. Used by the audit export and the ops mirror.
func (db *DB) GetReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE date(check_in) <= ? AND date(check_out) >= ?
              ORDER BY check_in ASC, created_at ASC`
	rows, err := db.QueryContext(ctx, query, end.Format(dateLayout), start.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get reservations by date range: %w", err)
	}
	defer rows.Close()

	return db.collectReservations(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanReservation(row rowScanner) (*models.Reservation, error) {
	r := &models.Reservation{}
	var checkInStr, checkOutStr string
	var expiresAt, confirmedAt, cancelledAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.RoomID, &r.GuestID, &checkInStr, &checkOutStr, &r.Status,
		&r.HoldToken, &r.PaymentRef, &r.CancelReason, &expiresAt,
		&confirmedAt, &cancelledAt, &r.CreatedAt, &r.UpdatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	if r.CheckIn, err = time.Parse(dateLayout, checkInStr); err != nil {
		return nil, fmt.Errorf("failed to parse check_in %s: %w", checkInStr, err)
	}
	if r.CheckOut, err = time.Parse(dateLayout, checkOutStr); err != nil {
		return nil, fmt.Errorf("failed to parse check_out %s: %w", checkOutStr, err)
	}

	if expiresAt.Valid {
		r.ExpiresAt = &expiresAt.Time
	}
	if confirmedAt.Valid {
		r.ConfirmedAt = &confirmedAt.Time
	}
	if cancelledAt.Valid {
		r.CancelledAt = &cancelledAt.Time
	}
	return r, nil
}

func (db *DB) collectReservations(rows *sql.Rows) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	for rows.Next() {
		r, err := db.scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
)

var (
	// ErrConflict: запрошенный диапазон пересекается с живой бронью
	ErrConflict = errors.New("room range is not available")
	// ErrInvalidRange: check_in >= check_out либо диапазон в прошлом
	ErrInvalidRange = errors.New("invalid date range")

	ErrNotFound     = errors.New("reservation not found")
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomInactive = errors.New("room is not active")

	// ErrInvalidState: переход запрещён текущим статусом
	ErrInvalidState = errors.New("invalid reservation state for transition")
	// ErrExpired: окно оплаты истекло, бронь переведена в expired
	ErrExpired = errors.New("reservation hold has expired")

	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// IsTransient reports whether the error is worth a bounded retry at the
// service boundary. Validation and state errors never are.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

package domain

import (
	"context"
	"time"

	"kurort/internal/models"
)

type Repository interface {
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	CreateReservationHold(ctx context.Context, r *models.Reservation, holdDuration time.Duration) error
	ConfirmReservation(ctx context.Context, id int64, paymentRef string) (*models.Reservation, error)
	CancelReservation(ctx context.Context, id int64, reason string) (*models.Reservation, error)
	ExpireReservation(ctx context.Context, id int64) error
	GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*models.Reservation, error)
	CheckRangeAvailable(ctx context.Context, roomID int64, checkIn, checkOut time.Time) (bool, error)
	CountOverlapping(ctx context.Context, roomID int64, checkIn, checkOut time.Time) (int, error)
	GetGuestReservations(ctx context.Context, guestID int64) ([]*models.Reservation, error)
	GetReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error)
	GetRoomByID(ctx context.Context, id int64) (*models.Room, error)
	GetActiveRooms(ctx context.Context) ([]*models.Room, error)
	GetRooms() []*models.Room
}

type StateRepository interface {
	GetState(ctx context.Context, sessionID string) (*models.SessionState, error)
	SetState(ctx context.Context, state *models.SessionState) error
	ClearState(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, sessionID string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, reservationID int64, reservation *models.Reservation) error
}

type SheetsWriter interface {
	UpsertReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservationStatus(ctx context.Context, reservationID int64, status string) error
}

type BookingService interface {
	CreateReservation(ctx context.Context, roomID, guestID int64, checkIn, checkOut time.Time) (*models.Reservation, error)
	ConfirmReservation(ctx context.Context, id int64, paymentRef string) (*models.Reservation, error)
	CancelReservation(ctx context.Context, id int64, actor Actor, reason string) (*models.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	GetGuestReservations(ctx context.Context, guestID int64) ([]*models.Reservation, error)
	CheckRangeAvailable(ctx context.Context, roomID int64, checkIn, checkOut time.Time) (bool, error)
}

// Actor is the authenticated identity the upstream auth layer supplies with
// every booking call.
type Actor struct {
	GuestID int64
	IsAdmin bool
}

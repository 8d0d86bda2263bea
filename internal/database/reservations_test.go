package database

import (
	"context"
	"os"
	"testing"
	"time"

	"kurort/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

func seedRoom(t *testing.T, db *DB) *models.Room {
	room := &models.Room{
		HotelID:    1,
		Name:       "Standard Double",
		PriceCents: 12000,
		Capacity:   2,
		IsActive:   true,
	}
	require.NoError(t, db.CreateRoom(context.Background(), room))
	return room
}

func futureDate(days int) time.Time {
	return time.Now().AddDate(0, 0, days).Truncate(24 * time.Hour)
}

func TestCreateReservationHold(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	room := seedRoom(t, db)

	r := &models.Reservation{
		RoomID:   room.ID,
		GuestID:  42,
		CheckIn:  futureDate(7),
		CheckOut: futureDate(9),
	}
	err := db.CreateReservationHold(ctx, r, 15*time.Minute)
	require.NoError(t, err)

	assert.NotZero(t, r.ID)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.NotEmpty(t, r.HoldToken)
	require.NotNil(t, r.ExpiresAt)
	assert.WithinDuration(t, r.CreatedAt.Add(15*time.Minute), *r.ExpiresAt, time.Second)

	stored, err := db.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, int64(1), stored.Version)
}

func TestCreateReservationHoldConflict(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	room := seedRoom(t, db)

	first := &models.Reservation{RoomID: room.ID, GuestID: 1, CheckIn: futureDate(7), CheckOut: futureDate(10)}
	require.NoError(t, db.CreateReservationHold(ctx, first, 15*time.Minute))

	// Overlapping range on the same room is rejected
	second := &models.Reservation{RoomID: room.ID, GuestID: 2, CheckIn: futureDate(9), CheckOut: futureDate(12)}
	err := db.CreateReservationHold(ctx, second, 15*time.Minute)
	assert.ErrorIs(t, err, ErrConflict)

	// Back-to-back ranges share no night: [7,10) then [10,12)
	third := &models.Reservation{RoomID: room.ID, GuestID: 3, CheckIn: futureDate(10), CheckOut: futureDate(12)}
	assert.NoError(t, db.CreateReservationHold(ctx, third, 15*time.Minute))

	// Same range on another room is fine
	other := seedRoom(t, db)
	fourth := &models.Reservation{RoomID: other.ID, GuestID: 4, CheckIn: futureDate(7), CheckOut: futureDate(10)}
	assert.NoError(t, db.CreateReservationHold(ctx, fourth, 15*time.Minute))
}

func TestConfirmReservation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	room := seedRoom(t, db)

	r := &models.Reservation{RoomID: room.ID, GuestID: 7, CheckIn: futureDate(7), CheckOut: futureDate(8)}
	require.NoError(t, db.CreateReservationHold(ctx, r, 15*time.Minute))

	confirmed, err := db.ConfirmReservation(ctx, r.ID, "pay_abc123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.Equal(t, "pay_abc123", confirmed.PaymentRef)
	assert.Nil(t, confirmed.ExpiresAt)
	assert.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, int64(2), confirmed.Version)

	// A second confirm hits the guard: the row is no longer pending
	_, err = db.ConfirmReservation(ctx, r.ID, "pay_abc123")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestConfirmExpiredReservation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	room := seedRoom(t, db)

	// Hold whose payment window is already over
	r := &models.Reservation{RoomID: room.ID, GuestID: 7, CheckIn: futureDate(7), CheckOut: futureDate(9)}
	require.NoError(t, db.CreateReservationHold(ctx, r, -time.Minute))

	_, err := db.ConfirmReservation(ctx, r.ID, "pay_late")
	assert.ErrorIs(t, err, ErrExpired)

	// The failed confirm went through the sweeper's release path
	stored, err := db.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, stored.Status)
	assert.Nil(t, stored.ExpiresAt)

	// ...so the range is available again
	available, err := db.CheckRangeAvailable(ctx, room.ID, futureDate(7), futureDate(9))
	require.NoError(t, err)
	assert.True(t, available)
}

func TestCancelReservation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	room := seedRoom(t, db)

	r := &models.Reservation{RoomID: room.ID, GuestID: 7, CheckIn: futureDate(7), CheckOut: futureDate(9)}
	require.NoError(t, db.CreateReservationHold(ctx, r, 15*time.Minute))

	cancelled, err := db.CancelReservation(ctx, r.ID, "guest changed plans")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, "guest changed plans", cancelled.CancelReason)
	assert.Nil(t, cancelled.ExpiresAt)
	assert.NotNil(t, cancelled.CancelledAt)

	// Cancelled is terminal: a second cancel fails, the release stands
	_, err = db.CancelReservation(ctx, r.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidState)

	available, err := db.CheckRangeAvailable(ctx, room.ID, futureDate(7), futureDate(9))
	require.NoError(t, err)
	assert.True(t, available)
}

func TestCancelConfirmedReservation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	room := seedRoom(t, db)

	r := &models.Reservation{RoomID: room.ID, GuestID: 7, CheckIn: futureDate(7), CheckOut: futureDate(9)}
	require.NoError(t, db.CreateReservationHold(ctx, r, 15*time.Minute))
	_, err := db.ConfirmReservation(ctx, r.ID, "pay_1")
	require.NoError(t, err)

	cancelled, err := db.CancelReservation(ctx, r.ID, "admin override")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
}

func TestExpireReservationIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	room := seedRoom(t, db)

	r := &models.Reservation{RoomID: room.ID, GuestID: 7, CheckIn: futureDate(7), CheckOut: futureDate(9)}
	require.NoError(t, db.CreateReservationHold(ctx, r, 15*time.Minute))
	_, err := db.ConfirmReservation(ctx, r.ID, "pay_1")
	require.NoError(t, err)

	// Expire on a terminal reservation is a no-op, not an error
	assert.NoError(t, db.ExpireReservation(ctx, r.ID))

	stored, err := db.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, stored.Status)

	// Expire on a live pending hold is refused
	live := &models.Reservation{RoomID: room.ID, GuestID: 8, CheckIn: futureDate(20), CheckOut: futureDate(21)}
	require.NoError(t, db.CreateReservationHold(ctx, live, 15*time.Minute))
	assert.ErrorIs(t, db.ExpireReservation(ctx, live.ID), ErrInvalidState)

	// Expire on an unknown id
	assert.ErrorIs(t, db.ExpireReservation(ctx, 99999), ErrNotFound)
}

func TestRangeReleasedAfterExpiry(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	room := seedRoom(t, db)

	r := &models.Reservation{RoomID: room.ID, GuestID: 7, CheckIn: futureDate(7), CheckOut: futureDate(9)}
	require.NoError(t, db.CreateReservationHold(ctx, r, -time.Minute))

	require.NoError(t, db.ExpireReservation(ctx, r.ID))

	// The same range can be held again
	again := &models.Reservation{RoomID: room.ID, GuestID: 8, CheckIn: futureDate(7), CheckOut: futureDate(9)}
	assert.NoError(t, db.CreateReservationHold(ctx, again, 15*time.Minute))
}

func TestGetExpiredPending(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	room := seedRoom(t, db)

	stale := &models.Reservation{RoomID: room.ID, GuestID: 1, CheckIn: futureDate(7), CheckOut: futureDate(8)}
	require.NoError(t, db.CreateReservationHold(ctx, stale, -time.Minute))

	live := &models.Reservation{RoomID: room.ID, GuestID: 2, CheckIn: futureDate(10), CheckOut: futureDate(11)}
	require.NoError(t, db.CreateReservationHold(ctx, live, 15*time.Minute))

	expired, err := db.GetExpiredPending(ctx, time.Now(), 100)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
}

func TestGetGuestReservations(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	room := seedRoom(t, db)

	for i := 0; i < 3; i++ {
		r := &models.Reservation{
			RoomID:   room.ID,
			GuestID:  5,
			CheckIn:  futureDate(7 + i*3),
			CheckOut: futureDate(8 + i*3),
		}
		require.NoError(t, db.CreateReservationHold(ctx, r, 15*time.Minute))
	}

	mine, err := db.GetGuestReservations(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	none, err := db.GetGuestReservations(ctx, 6)
	require.NoError(t, err)
	assert.Empty(t, none)
}

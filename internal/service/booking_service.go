package service

import (
	"context"
	"errors"
	"time"

	"kurort/internal/database"
	"kurort/internal/domain"
	"kurort/internal/events"
	"kurort/internal/metrics"
	"kurort/internal/models"
	"kurort/internal/worker"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo           domain.Repository
	eventBus       domain.EventPublisher
	syncWorker     domain.SyncWorker
	holdDuration   time.Duration
	maxAdvanceDays int
	storeRetries   int
	retryPolicy    worker.RetryPolicy
	logger         *zerolog.Logger
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, holdDuration time.Duration, maxAdvanceDays, storeRetries int, logger *zerolog.Logger) *BookingService {
	if holdDuration <= 0 {
		holdDuration = models.DefaultHoldDuration
	}
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = models.MaxAdvanceDays
	}
	if storeRetries <= 0 {
		storeRetries = models.DefaultStoreRetries
	}
	return &BookingService{
		repo:           repo,
		eventBus:       eventBus,
		syncWorker:     syncWorker,
		holdDuration:   holdDuration,
		maxAdvanceDays: maxAdvanceDays,
		storeRetries:   storeRetries,
		retryPolicy:    worker.RetryPolicy{MaxRetries: storeRetries, InitialDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second, BackoffFactor: 2},
		logger:         logger,
	}
}

// truncateToDate обрезает время до полуночи
func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ValidateRange проверяет даты заезда и выезда. Заезд сегодняшним днем разрешен.
func (s *BookingService) ValidateRange(checkIn, checkOut time.Time) error {
	if !checkIn.Before(checkOut) {
		return database.ErrInvalidRange
	}

	today := truncateToDate(time.Now())
	if checkIn.Before(today) {
		return database.ErrInvalidRange
	}

	maxDate := today.AddDate(0, 0, s.maxAdvanceDays)
	if checkIn.After(maxDate) {
		return database.ErrInvalidRange
	}

	return nil
}

func (s *BookingService) CreateReservation(ctx context.Context, roomID, guestID int64, checkIn, checkOut time.Time) (*models.Reservation, error) {
	checkIn = truncateToDate(checkIn)
	checkOut = truncateToDate(checkOut)

	if err := s.ValidateRange(checkIn, checkOut); err != nil {
		return nil, err
	}

	room, err := s.repo.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, database.ErrRoomInactive
	}

	reservation := &models.Reservation{
		RoomID:   roomID,
		GuestID:  guestID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
	}

	err = s.withRetries(ctx, func() error {
		return s.repo.CreateReservationHold(ctx, reservation, s.holdDuration)
	})
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			metrics.IncConflict()
		}
		return nil, err
	}

	metrics.IncTransition(models.StatusPending)
	s.publishEvent(events.EventReservationCreated, reservation, "guest")
	s.enqueueSync(ctx, reservation, worker.TaskUpsert)

	return reservation, nil
}

func (s *BookingService) ConfirmReservation(ctx context.Context, id int64, paymentRef string) (*models.Reservation, error) {
	reservation, err := s.repo.ConfirmReservation(ctx, id, paymentRef)
	if err != nil {
		// Повтор подтверждения уже подтвержденной брони отдаем как no-op
		if errors.Is(err, database.ErrInvalidState) {
			if current, getErr := s.repo.GetReservation(ctx, id); getErr == nil && current.Status == models.StatusConfirmed {
				return current, nil
			}
		}
		return nil, err
	}

	metrics.IncTransition(models.StatusConfirmed)
	s.publishEvent(events.EventReservationConfirmed, reservation, "guest")
	s.enqueueSync(ctx, reservation, worker.TaskUpdateStatus)

	return reservation, nil
}

func (s *BookingService) CancelReservation(ctx context.Context, id int64, actor domain.Actor, reason string) (*models.Reservation, error) {
	current, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	// Чужая бронь для гостя выглядит как несуществующая
	if !actor.IsAdmin && current.GuestID != actor.GuestID {
		return nil, database.ErrNotFound
	}

	reservation, err := s.repo.CancelReservation(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	changedBy := "guest"
	if actor.IsAdmin {
		changedBy = "admin"
	}

	metrics.IncTransition(models.StatusCancelled)
	s.publishEvent(events.EventReservationCancelled, reservation, changedBy)
	s.enqueueSync(ctx, reservation, worker.TaskUpdateStatus)

	return reservation, nil
}

func (s *BookingService) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

func (s *BookingService) GetGuestReservations(ctx context.Context, guestID int64) ([]*models.Reservation, error) {
	return s.repo.GetGuestReservations(ctx, guestID)
}

func (s *BookingService) CheckRangeAvailable(ctx context.Context, roomID int64, checkIn, checkOut time.Time) (bool, error) {
	checkIn = truncateToDate(checkIn)
	checkOut = truncateToDate(checkOut)
	if !checkIn.Before(checkOut) {
		return false, database.ErrInvalidRange
	}

	if _, err := s.repo.GetRoomByID(ctx, roomID); err != nil {
		return false, err
	}

	return s.repo.CheckRangeAvailable(ctx, roomID, checkIn, checkOut)
}

// withRetries повторяет операцию при временных сбоях хранилища.
func (s *BookingService) withRetries(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= s.storeRetries; attempt++ {
		err = op()
		if err == nil || !database.IsTransient(err) {
			return err
		}

		if attempt == s.storeRetries {
			break
		}

		s.logger.Warn().Err(err).Int("attempt", attempt).Msg("Хранилище недоступно, повторяем")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryPolicy.NextDelay(attempt)):
		}
	}
	return database.ErrStoreUnavailable
}

func (s *BookingService) publishEvent(eventType string, r *models.Reservation, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		RoomID:        r.RoomID,
		GuestID:       r.GuestID,
		Status:        r.Status,
		CheckIn:       r.CheckIn,
		CheckOut:      r.CheckOut,
		ExpiresAt:     r.ExpiresAt,
		PaymentRef:    r.PaymentRef,
		CancelReason:  r.CancelReason,
		ChangedBy:     changedBy,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", r.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, r *models.Reservation, taskType string) {
	if s.syncWorker == nil {
		return
	}

	if err := s.syncWorker.EnqueueTask(ctx, taskType, r.ID, r); err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", r.ID).Str("task", taskType).Msg("sync enqueue error")
	}
}

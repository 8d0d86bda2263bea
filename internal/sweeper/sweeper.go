package sweeper

import (
	"context"
	"errors"
	"time"

	"kurort/internal/database"
	"kurort/internal/domain"
	"kurort/internal/events"
	"kurort/internal/metrics"
	"kurort/internal/models"

	"github.com/rs/zerolog"
)

// Sweeper переводит просроченные pending брони в expired.
// Гонки с подтверждением решает условный UPDATE в хранилище: проигравшая
// сторона получает no-op.
type Sweeper struct {
	repo       domain.Repository
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	interval   time.Duration
	batchSize  int
	logger     *zerolog.Logger
}

func NewSweeper(repo domain.Repository, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, interval time.Duration, batchSize int, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = models.DefaultSweeperInterval
	}
	if batchSize <= 0 {
		batchSize = models.DefaultSweeperBatch
	}
	return &Sweeper{
		repo:       repo,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		interval:   interval,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Start запускает цикл; останавливается по ctx.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Int("batch", s.batchSize).Msg("Sweeper started")
	defer s.logger.Info().Msg("Sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Первый проход сразу, чтобы подобрать брони, истекшие за время простоя
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход. Ошибки не прерывают цикл: необработанные
// брони подберет следующий проход.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	now := time.Now()

	expired, err := s.repo.GetExpiredPending(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("Не удалось получить просроченные брони")
		metrics.IncSweeperCycle("error")
		return 0
	}

	if len(expired) == 0 {
		metrics.IncSweeperCycle("empty")
		return 0
	}

	swept := 0
	for _, r := range expired {
		if ctx.Err() != nil {
			break
		}

		if err := s.repo.ExpireReservation(ctx, r.ID); err != nil {
			// Живая pending означает, что кто-то успел продлить или подтвердить
			if errors.Is(err, database.ErrInvalidState) || errors.Is(err, database.ErrNotFound) {
				continue
			}
			s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("Не удалось истечь бронь")
			continue
		}

		// Проигранная гонка с confirm/cancel возвращает nil без перехода,
		// событие в этом случае не наше
		current, err := s.repo.GetReservation(ctx, r.ID)
		if err != nil || current.Status != models.StatusExpired {
			continue
		}

		swept++
		metrics.IncTransition(models.StatusExpired)
		s.publishExpired(r)
		s.enqueueSync(ctx, r)
	}

	if swept > 0 {
		s.logger.Info().Int("count", swept).Msg("Просроченные брони освобождены")
		metrics.AddSweeperExpired(swept)
	}
	metrics.IncSweeperCycle("ok")
	return swept
}

func (s *Sweeper) publishExpired(r *models.Reservation) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		RoomID:        r.RoomID,
		GuestID:       r.GuestID,
		Status:        models.StatusExpired,
		CheckIn:       r.CheckIn,
		CheckOut:      r.CheckOut,
		ChangedBy:     "sweeper",
	}

	if err := s.eventBus.PublishJSON(events.EventReservationExpired, payload); err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("publish event error")
	}
}

func (s *Sweeper) enqueueSync(ctx context.Context, r *models.Reservation) {
	if s.syncWorker == nil {
		return
	}

	snapshot := *r
	snapshot.Status = models.StatusExpired
	snapshot.ExpiresAt = nil

	if err := s.syncWorker.EnqueueTask(ctx, "update_status", r.ID, &snapshot); err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("sync enqueue error")
	}
}

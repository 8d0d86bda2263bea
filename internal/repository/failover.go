package repository

import (
	"context"
	"sync/atomic"
	"time"

	"kurort/internal/domain"
	"kurort/internal/models"

	"github.com/rs/zerolog"
)

const recoveryProbeInterval = time.Minute

// FailoverStateRepository оборачивает основной репозиторий (Redis) и при сбоях
// переключается на резервный в памяти. Раз в минуту пробует вернуться на основной.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastProbe atomic.Int64
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverStateRepository) active() domain.StateRepository {
	if !f.isDown.Load() {
		return f.primary
	}

	// основной лежит, но пора проверить восстановление
	last := f.lastProbe.Load()
	now := time.Now().UnixNano()
	if now-last > int64(recoveryProbeInterval) && f.lastProbe.CompareAndSwap(last, now) {
		return f.primary
	}

	return f.fallback
}

func (f *FailoverStateRepository) markFailure(err error) {
	if f.isDown.CompareAndSwap(false, true) {
		f.lastProbe.Store(time.Now().UnixNano())
		f.logger.Warn().Err(err).Msg("Основное хранилище состояний недоступно, переключаемся на резервное")
	}
}

func (f *FailoverStateRepository) markSuccess() {
	if f.isDown.CompareAndSwap(true, false) {
		f.logger.Info().Msg("Основное хранилище состояний восстановлено")
	}
}

func (f *FailoverStateRepository) GetState(ctx context.Context, sessionID string) (*models.SessionState, error) {
	repo := f.active()
	state, err := repo.GetState(ctx, sessionID)
	if repo == f.primary {
		if err != nil {
			f.markFailure(err)
			return f.fallback.GetState(ctx, sessionID)
		}
		f.markSuccess()
	}
	return state, err
}

func (f *FailoverStateRepository) SetState(ctx context.Context, state *models.SessionState) error {
	repo := f.active()
	err := repo.SetState(ctx, state)
	if repo == f.primary {
		if err != nil {
			f.markFailure(err)
			return f.fallback.SetState(ctx, state)
		}
		f.markSuccess()
	}
	return err
}

func (f *FailoverStateRepository) ClearState(ctx context.Context, sessionID string) error {
	repo := f.active()
	err := repo.ClearState(ctx, sessionID)
	if repo == f.primary {
		if err != nil {
			f.markFailure(err)
			return f.fallback.ClearState(ctx, sessionID)
		}
		f.markSuccess()
	}
	return err
}

func (f *FailoverStateRepository) CheckRateLimit(ctx context.Context, sessionID string, limit int, window time.Duration) (bool, error) {
	repo := f.active()
	ok, err := repo.CheckRateLimit(ctx, sessionID, limit, window)
	if repo == f.primary {
		if err != nil {
			f.markFailure(err)
			return f.fallback.CheckRateLimit(ctx, sessionID, limit, window)
		}
		f.markSuccess()
	}
	return ok, err
}

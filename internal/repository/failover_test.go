package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"kurort/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStateRepository struct{}

func (brokenStateRepository) GetState(ctx context.Context, sessionID string) (*models.SessionState, error) {
	return nil, errors.New("connection refused")
}

func (brokenStateRepository) SetState(ctx context.Context, state *models.SessionState) error {
	return errors.New("connection refused")
}

func (brokenStateRepository) ClearState(ctx context.Context, sessionID string) error {
	return errors.New("connection refused")
}

func (brokenStateRepository) CheckRateLimit(ctx context.Context, sessionID string, limit int, window time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestFailoverSwitchesToFallback(t *testing.T) {
	logger := zerolog.Nop()
	fallback := NewMemoryStateRepository()
	repo := NewFailoverStateRepository(brokenStateRepository{}, fallback, &logger)
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.SessionState{SessionID: "sess-1", GuestID: 9}))
	assert.True(t, repo.isDown.Load())

	// после сбоя запросы идут в резерв без повторных попыток основного
	got, err := repo.GetState(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(9), got.GuestID)
}

func TestFailoverHealthyPrimary(t *testing.T) {
	logger := zerolog.Nop()
	primary := NewMemoryStateRepository()
	fallback := NewMemoryStateRepository()
	repo := NewFailoverStateRepository(primary, fallback, &logger)
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.SessionState{SessionID: "sess-2"}))
	assert.False(t, repo.isDown.Load())

	got, err := primary.GetState(ctx, "sess-2")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

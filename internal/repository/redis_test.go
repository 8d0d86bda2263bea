package repository

import (
	"context"
	"testing"
	"time"

	"kurort/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisRepo(t *testing.T) (*RedisStateRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStateRepository(client, time.Hour), mr
}

func TestRedisStateRoundTrip(t *testing.T) {
	repo, _ := setupRedisRepo(t)
	ctx := context.Background()

	got, err := repo.GetState(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := &models.SessionState{
		SessionID: "sess-1",
		GuestID:   42,
		Favorites: map[int64]bool{101: true},
	}
	require.NoError(t, repo.SetState(ctx, state))

	got, err = repo.GetState(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.GuestID)
	assert.True(t, got.IsFavorite(101))

	require.NoError(t, repo.ClearState(ctx, "sess-1"))

	got, err = repo.GetState(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStateTTL(t *testing.T) {
	repo, mr := setupRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.SessionState{SessionID: "sess-2"}))

	mr.FastForward(2 * time.Hour)

	got, err := repo.GetState(ctx, "sess-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCheckRateLimit(t *testing.T) {
	repo, mr := setupRedisRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := repo.CheckRateLimit(ctx, "sess-3", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := repo.CheckRateLimit(ctx, "sess-3", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// окно истекло, счетчик сбрасывается
	mr.FastForward(2 * time.Minute)

	ok, err = repo.CheckRateLimit(ctx, "sess-3", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

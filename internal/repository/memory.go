package repository

import (
	"context"
	"sync"
	"time"

	"kurort/internal/models"
)

type rateLimitEntry struct {
	count     int
	windowEnd time.Time
}

// MemoryStateRepository хранит состояние сессий в памяти процесса.
// Используется в тестах и как резерв при недоступности Redis.
type MemoryStateRepository struct {
	mu     sync.RWMutex
	states map[string]*models.SessionState
	limits map[string]*rateLimitEntry
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{
		states: make(map[string]*models.SessionState),
		limits: make(map[string]*rateLimitEntry),
	}
}

func (m *MemoryStateRepository) GetState(ctx context.Context, sessionID string) (*models.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[sessionID]
	if !ok {
		return nil, nil
	}

	copied := *state
	copied.Favorites = make(map[int64]bool, len(state.Favorites))
	for k, v := range state.Favorites {
		copied.Favorites[k] = v
	}
	return &copied, nil
}

func (m *MemoryStateRepository) SetState(ctx context.Context, state *models.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *state
	copied.Favorites = make(map[int64]bool, len(state.Favorites))
	for k, v := range state.Favorites {
		copied.Favorites[k] = v
	}
	m.states[state.SessionID] = &copied
	return nil
}

func (m *MemoryStateRepository) ClearState(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, sessionID)
	return nil
}

func (m *MemoryStateRepository) CheckRateLimit(ctx context.Context, sessionID string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	entry, ok := m.limits[sessionID]
	if !ok || now.After(entry.windowEnd) {
		m.limits[sessionID] = &rateLimitEntry{count: 1, windowEnd: now.Add(window)}
		return true, nil
	}

	entry.count++
	return entry.count <= limit, nil
}

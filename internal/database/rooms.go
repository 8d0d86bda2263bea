package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kurort/internal/models"
)

// SetRooms primes the in-memory room cache from config-loaded rooms and
// upserts them into the rooms table so reservations can reference them.
func (db *DB) SetRooms(ctx context.Context, rooms []*models.Room) error {
	db.mu.Lock()
	db.roomsCache = make(map[int64]*models.Room, len(rooms))
	for _, room := range rooms {
		db.roomsCache[room.ID] = room
	}
	db.mu.Unlock()

	query := `INSERT INTO rooms (id, hotel_id, name, price_cents, capacity, sort_order, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                hotel_id = excluded.hotel_id,
                name = excluded.name,
                price_cents = excluded.price_cents,
                capacity = excluded.capacity,
                sort_order = excluded.sort_order,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`
	now := time.Now()
	for _, room := range rooms {
		if _, err := db.ExecContext(ctx, query,
			room.ID, room.HotelID, room.Name, room.PriceCents, room.Capacity,
			room.SortOrder, room.IsActive, now, now,
		); err != nil {
			return fmt.Errorf("failed to upsert room %d: %w", room.ID, err)
		}
	}
	return nil
}

func (db *DB) CreateRoom(ctx context.Context, room *models.Room) error {
	query := `INSERT INTO rooms (hotel_id, name, price_cents, capacity, sort_order, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		room.HotelID, room.Name, room.PriceCents, room.Capacity, room.SortOrder, room.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	room.ID = id
	room.CreatedAt = now
	room.UpdatedAt = now

	db.mu.Lock()
	db.roomsCache[id] = room
	db.mu.Unlock()

	return nil
}

func (db *DB) GetRoomByID(ctx context.Context, id int64) (*models.Room, error) {
	db.mu.RLock()
	if room, ok := db.roomsCache[id]; ok {
		db.mu.RUnlock()
		return room, nil
	}
	db.mu.RUnlock()

	var room models.Room
	query := `SELECT id, hotel_id, name, price_cents, capacity, sort_order, is_active, created_at, updated_at
              FROM rooms WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&room.ID, &room.HotelID, &room.Name, &room.PriceCents, &room.Capacity,
		&room.SortOrder, &room.IsActive, &room.CreatedAt, &room.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

func (db *DB) GetActiveRooms(ctx context.Context) ([]*models.Room, error) {
	query := `SELECT id, hotel_id, name, price_cents, capacity, sort_order, is_active, created_at, updated_at
              FROM rooms WHERE is_active = 1 ORDER BY sort_order, id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room := &models.Room{}
		if err := rows.Scan(
			&room.ID, &room.HotelID, &room.Name, &room.PriceCents, &room.Capacity,
			&room.SortOrder, &room.IsActive, &room.CreatedAt, &room.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (db *DB) DeactivateRoom(ctx context.Context, id int64) error {
	query := `UPDATE rooms SET is_active = 0, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate room: %w", err)
	}

	db.mu.Lock()
	if room, ok := db.roomsCache[id]; ok {
		room.IsActive = false
	}
	db.mu.Unlock()
	return nil
}

// GetRooms returns the cached room list.
func (db *DB) GetRooms() []*models.Room {
	db.mu.RLock()
	defer db.mu.RUnlock()
	rooms := make([]*models.Room, 0, len(db.roomsCache))
	for _, room := range db.roomsCache {
		rooms = append(rooms, room)
	}
	return rooms
}

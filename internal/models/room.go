package models

import "time"

type Room struct {
	ID         int64     `json:"id" yaml:"id"`
	HotelID    int64     `json:"hotel_id" yaml:"hotel_id"`
	Name       string    `json:"name" yaml:"name"`
	PriceCents int64     `json:"price_cents" yaml:"price_cents"`
	Capacity   int64     `json:"capacity" yaml:"capacity"`
	SortOrder  int64     `json:"sort_order" yaml:"sort_order"`
	IsActive   bool      `json:"is_active" yaml:"is_active"`
	CreatedAt  time.Time `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"-"`
}

// RangeAvailability описывает занятость комнаты на диапазон дат.
type RangeAvailability struct {
	RoomID    int64     `json:"room_id"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	Available bool      `json:"available"`
}

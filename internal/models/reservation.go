package models

import "time"

// Reservation is a guest's hold on a room for the half-open date range
// [CheckIn, CheckOut). ExpiresAt is set while the reservation is pending
// and cleared on every transition out of pending.
type Reservation struct {
	ID           int64      `json:"id"`
	RoomID       int64      `json:"room_id"`
	GuestID      int64      `json:"guest_id"`
	CheckIn      time.Time  `json:"check_in"`
	CheckOut     time.Time  `json:"check_out"`
	Status       string     `json:"status"` // pending, confirmed, cancelled, expired
	HoldToken    string     `json:"hold_token"`
	PaymentRef   string     `json:"payment_ref,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Version      int64      `json:"version"`
}

// IsTerminal reports whether no further transition is possible.
func (r *Reservation) IsTerminal() bool {
	return IsTerminalStatus(r.Status)
}

// Nights returns the number of nights covered by the range.
func (r *Reservation) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

func IsTerminalStatus(status string) bool {
	switch status {
	case StatusConfirmed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// Overlaps reports whether two half-open ranges [a,b) and [c,d) share a night.
func Overlaps(a, b, c, d time.Time) bool {
	return a.Before(d) && c.Before(b)
}

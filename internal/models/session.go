package models

// SessionState carries per-session client state that used to live in an
// ambient shared cache: the favorites toggle per hotel and nothing else.
// It is owned by the session, not by any global map.
type SessionState struct {
	SessionID string         `json:"session_id"`
	GuestID   int64          `json:"guest_id"`
	Favorites map[int64]bool `json:"favorites"` // hotel id -> favorite flag
}

func (s *SessionState) IsFavorite(hotelID int64) bool {
	if s.Favorites == nil {
		return false
	}
	return s.Favorites[hotelID]
}

func (s *SessionState) SetFavorite(hotelID int64, fav bool) {
	if s.Favorites == nil {
		s.Favorites = make(map[int64]bool)
	}
	if fav {
		s.Favorites[hotelID] = true
		return
	}
	delete(s.Favorites, hotelID)
}

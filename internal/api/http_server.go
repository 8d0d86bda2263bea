package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"kurort/internal/config"
	"kurort/internal/database"
	"kurort/internal/domain"
	"kurort/internal/metrics"
	"kurort/internal/models"

	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// ReservationExporter builds a report file for the admin export endpoint.
type ReservationExporter interface {
	ExportReservations(ctx context.Context, startDate, endDate time.Time) (string, error)
}

// HTTPServer exposes the reservation API.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings domain.BookingService
	repo     domain.Repository
	states   domain.StateRepository
	exporter ReservationExporter
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, bookings domain.BookingService, repo domain.Repository, exporter ReservationExporter, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, bookings: bookings, repo: repo, exporter: exporter, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/reservations", srv.handleReservations)
	mux.HandleFunc("/api/v1/reservations/", srv.handleReservationByID)
	mux.HandleFunc("/api/v1/rooms", srv.handleRooms)
	mux.HandleFunc("/api/v1/availability/", srv.handleAvailability)
	mux.HandleFunc("/api/v1/sessions/", srv.handleFavorites)
	mux.HandleFunc("/api/v1/admin/reservations/export", srv.handleExport)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the assembled handler chain, mostly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// SetStateRepository wires the session store for favorites and the per-guest
// write limit. Optional: without it both features are off.
func (s *HTTPServer) SetStateRepository(states domain.StateRepository) {
	s.states = states
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createReservation(w, r)
	case http.MethodGet:
		s.listGuestReservations(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createReservation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "guest id header is required")
		return
	}

	type request struct {
		RoomID   int64  `json:"room_id"`
		CheckIn  string `json:"check_in"`
		CheckOut string `json:"check_out"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.RoomID == 0 {
		writeError(w, http.StatusBadRequest, "room_id is required")
		return
	}

	checkIn, err := time.Parse(dateLayout, body.CheckIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_in; expected YYYY-MM-DD")
		return
	}
	checkOut, err := time.Parse(dateLayout, body.CheckOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_out; expected YYYY-MM-DD")
		return
	}

	if s.states != nil {
		key := fmt.Sprintf("guest:%d", actor.GuestID)
		ok, err := s.states.CheckRateLimit(r.Context(), key, models.RateLimitRequests, models.RateLimitWindow*time.Second)
		if err != nil {
			s.logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
		} else if !ok {
			writeError(w, http.StatusTooManyRequests, "too many reservation attempts")
			return
		}
	}

	reservation, err := s.bookings.CreateReservation(r.Context(), body.RoomID, actor.GuestID, checkIn, checkOut)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reservation)
}

func (s *HTTPServer) listGuestReservations(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "guest id header is required")
		return
	}

	reservations, err := s.bookings.GetGuestReservations(r.Context(), actor.GuestID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

func (s *HTTPServer) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/reservations/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.getReservation(w, r, id)
	case len(parts) == 2 && parts[1] == "confirm" && r.Method == http.MethodPost:
		s.confirmReservation(w, r, id)
	case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
		s.cancelReservation(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) getReservation(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "guest id header is required")
		return
	}

	reservation, err := s.bookings.GetReservation(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	// Чужая бронь для гостя неотличима от несуществующей
	if !actor.IsAdmin && reservation.GuestID != actor.GuestID {
		writeError(w, http.StatusNotFound, "reservation not found")
		return
	}

	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) confirmReservation(w http.ResponseWriter, r *http.Request, id int64) {
	type request struct {
		PaymentRef string `json:"payment_ref"`
	}

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.PaymentRef) == "" {
		writeError(w, http.StatusBadRequest, "payment_ref is required")
		return
	}

	reservation, err := s.bookings.ConfirmReservation(r.Context(), id, body.PaymentRef)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) cancelReservation(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "guest id header is required")
		return
	}

	type request struct {
		Reason string `json:"reason"`
	}

	var body request
	if r.Body != nil {
		// Тело необязательно
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	reservation, err := s.bookings.CancelReservation(r.Context(), id, actor, body.Reason)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rooms, err := s.repo.GetActiveRooms(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].SortOrder == rooms[j].SortOrder {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].SortOrder < rooms[j].SortOrder
	})

	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/v1/availability/"
	idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	roomID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || roomID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	from, err := time.Parse(dateLayout, strings.TrimSpace(r.URL.Query().Get("from")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from; expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse(dateLayout, strings.TrimSpace(r.URL.Query().Get("to")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to; expected YYYY-MM-DD")
		return
	}

	available, err := s.bookings.CheckRangeAvailable(r.Context(), roomID, from, to)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":   roomID,
		"from":      from.Format(dateLayout),
		"to":        to.Format(dateLayout),
		"available": available,
	})
}

// handleFavorites serves /api/v1/sessions/{sid}/favorites[/{roomID}].
// Избранные номера живут в состоянии сессии и не переживают его TTL.
func (s *HTTPServer) handleFavorites(w http.ResponseWriter, r *http.Request) {
	if s.states == nil {
		writeError(w, http.StatusNotImplemented, "session store is not configured")
		return
	}

	const prefix = "/api/v1/sessions/"
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != "favorites" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	sessionID := parts[0]

	ctx := r.Context()

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		state, err := s.states.GetState(ctx, sessionID)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}

		ids := make([]int64, 0)
		if state != nil {
			for id, fav := range state.Favorites {
				if fav {
					ids = append(ids, id)
				}
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		}
		writeJSON(w, http.StatusOK, map[string]any{"room_ids": ids})

	case len(parts) == 3 && (r.Method == http.MethodPut || r.Method == http.MethodDelete):
		roomID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil || roomID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid room id")
			return
		}

		if r.Method == http.MethodPut {
			if _, err := s.repo.GetRoomByID(ctx, roomID); err != nil {
				s.writeDomainError(w, err)
				return
			}
		}

		state, err := s.states.GetState(ctx, sessionID)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		if state == nil {
			state = &models.SessionState{SessionID: sessionID}
		}
		if actor, ok := actorFrom(r); ok {
			state.GuestID = actor.GuestID
		}

		state.SetFavorite(roomID, r.Method == http.MethodPut)
		if err := s.states.SetState(ctx, state); err != nil {
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"room_id": roomID, "favorite": r.Method == http.MethodPut})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	from, err := time.Parse(dateLayout, strings.TrimSpace(r.URL.Query().Get("from")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from; expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse(dateLayout, strings.TrimSpace(r.URL.Query().Get("to")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to; expected YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusUnprocessableEntity, "to precedes from")
		return
	}

	path, err := s.exporter.ExportReservations(r.Context(), from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("Экспорт не удался")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=reservations.xlsx")
	http.ServeFile(w, r, path)
}

// writeDomainError maps storage errors onto HTTP status codes.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrConflict):
		writeError(w, http.StatusConflict, "room is not available for the requested dates")
	case errors.Is(err, database.ErrInvalidRange):
		writeError(w, http.StatusUnprocessableEntity, "invalid date range")
	case errors.Is(err, database.ErrRoomInactive):
		writeError(w, http.StatusUnprocessableEntity, "room is not active")
	case errors.Is(err, database.ErrExpired):
		writeError(w, http.StatusGone, "reservation hold has expired")
	case errors.Is(err, database.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid reservation state for this operation")
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
	default:
		s.logger.Error().Err(err).Msg("Внутренняя ошибка API")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

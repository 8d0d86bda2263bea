package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"kurort/internal/config"
	"kurort/internal/domain"

	"golang.org/x/time/rate"
)

type actorContextKey struct{}

var errPermissionDenied = fmt.Errorf("permission denied")

// HTTPAuth provides API-key auth, actor extraction and per-key rate limiting.
type HTTPAuth struct {
	cfg      config.APIConfig
	clients  map[string]config.APIClientKey
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var client config.APIClientKey

		if a.cfg.Auth.Enabled {
			matched, err := a.checkAuth(r)
			if err != nil {
				statusCode := http.StatusUnauthorized
				if err == errPermissionDenied {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
			client = matched
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, a.withActor(r, client))
	})
}

// withActor parses the guest header and stamps the actor into the context.
func (a *HTTPAuth) withActor(r *http.Request, client config.APIClientKey) *http.Request {
	guestHeader := headerName(a.cfg.Auth.HeaderGuestID, "x-guest-id")

	raw := strings.TrimSpace(r.Header.Get(guestHeader))
	guestID, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" || err != nil || guestID <= 0 {
		return r
	}

	actor := domain.Actor{GuestID: guestID, IsAdmin: hasPermission(client, "admin")}
	return r.WithContext(context.WithValue(r.Context(), actorContextKey{}, actor))
}

// actorFrom returns the authenticated actor of the request.
func actorFrom(r *http.Request) (domain.Actor, bool) {
	actor, ok := r.Context().Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

func (a *HTTPAuth) checkAuth(r *http.Request) (config.APIClientKey, error) {
	apiKeyHeader := headerName(a.cfg.Auth.HeaderAPIKey, "x-api-key")
	extraHeader := headerName(a.cfg.Auth.HeaderExtra, "x-api-extra")

	apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader))
	extra := strings.TrimSpace(r.Header.Get(extraHeader))
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, fmt.Errorf("missing api key headers")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, fmt.Errorf("invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, fmt.Errorf("invalid extra header")
	}

	if err := a.checkPermissions(client, r); err != nil {
		return config.APIClientKey{}, err
	}

	return client, nil
}

func (a *HTTPAuth) checkPermissions(client config.APIClientKey, r *http.Request) error {
	required := requiredPermissionHTTP(r)
	if required == "" {
		return nil
	}
	// Ключ без списка разрешений имеет полный доступ
	if len(client.Permissions) == 0 {
		return nil
	}
	if hasPermission(client, required) {
		return nil
	}
	return errPermissionDenied
}

func hasPermission(client config.APIClientKey, required string) bool {
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/admin/"):
		return "admin"
	case strings.HasPrefix(path, "/api/v1/availability"):
		return "read:availability"
	case path == "/api/v1/rooms":
		return "read:rooms"
	case strings.HasPrefix(path, "/api/v1/reservations"):
		return "write:reservations"
	}
	return ""
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	key := a.clientKey(r)
	lim := a.getLimiter(key)
	if !lim.Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	apiKeyHeader := headerName(a.cfg.Auth.HeaderAPIKey, "x-api-key")

	if apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func headerName(configured, fallback string) string {
	if trimmed := strings.TrimSpace(strings.ToLower(configured)); trimmed != "" {
		return trimmed
	}
	return fallback
}

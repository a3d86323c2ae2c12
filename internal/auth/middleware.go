package auth

import (
	"net/http"
	"strings"
)

// Middleware attaches verified claims to the request context. Requests
// without a usable token pass through anonymous: guests may read and
// write their own session-scoped activities, so rejection happens at the
// handlers that genuinely require an account.
type Middleware struct {
	Config Config
}

// NewMiddleware constructs a Middleware.
func NewMiddleware(cfg Config) Middleware {
	return Middleware{Config: cfg}
}

// Wrap wraps an http.Handler with bearer-token extraction.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.parseRequest(r)
		if err == nil && claims != nil {
			r = r.WithContext(WithClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, ErrInvalidToken
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return Parse(token, m.Config)
}

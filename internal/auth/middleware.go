package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/modgate/modgate/internal/shared"
)

// Middleware authenticates bearer tokens and stores the resolved actor in
// the request context.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireToken rejects requests without a valid bearer token.
func (m Middleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		plaintext, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(plaintext) == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		actor, err := m.Service.Authenticate(r.Context(), plaintext)
		if err != nil {
			if m.Logger != nil && !errors.Is(err, shared.ErrInvalidCredentials) {
				m.Logger.Error("token authentication", slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

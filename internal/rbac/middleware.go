package rbac

import (
	"log/slog"
	"net/http"

	"github.com/modgate/modgate/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers. The checks go
// through Service.UserHasPermission so the owner and SuperAdmin bypasses
// apply to the admin API as well.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Metrics PermissionObserver
}

// PermissionObserver counts permission check outcomes.
type PermissionObserver interface {
	ObservePermissionCheck(allowed bool)
}

// RequireAny ensures the current actor has at least one of the required
// permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, perm := range normalized {
				granted, err := m.Service.UserHasPermission(r.Context(), actor.UserID, perm)
				if err != nil {
					m.logError("rbac require any", err)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				if granted {
					m.observe(true)
					next.ServeHTTP(w, r)
					return
				}
			}
			m.observe(false)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll ensures the current actor has every required permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, perm := range normalized {
				granted, err := m.Service.UserHasPermission(r.Context(), actor.UserID, perm)
				if err != nil {
					m.logError("rbac require all", err)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				if !granted {
					m.observe(false)
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			m.observe(true)
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) observe(allowed bool) {
	if m.Metrics != nil {
		m.Metrics.ObservePermissionCheck(allowed)
	}
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = shared.NormalizeName(p)
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}

package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modgate/modgate/internal/shared"
)

func TestRequireAny(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()
	require.NoError(t, svc.AssignRole(ctx, "user-1", RoleModerator))

	mw := Middleware{Service: svc}
	handler := mw.RequireAny(shared.PermUsersViewList, shared.PermUsersDelete)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	cases := []struct {
		name  string
		actor *shared.Actor
		want  int
	}{
		{"no actor", nil, http.StatusUnauthorized},
		{"granted via role", &shared.Actor{UserID: "user-1"}, http.StatusOK},
		{"no grants", &shared.Actor{UserID: "user-2"}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if tc.actor != nil {
				req = req.WithContext(shared.ContextWithActor(req.Context(), *tc.actor))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()
	require.NoError(t, svc.AssignRole(ctx, "user-1", RoleModerator))

	mw := Middleware{Service: svc}
	handler := mw.RequireAll(shared.PermUsersViewList, shared.PermUsersDelete)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{UserID: "user-1"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admins hold both.
	require.NoError(t, svc.AssignRole(ctx, "user-2", RoleAdmin))
	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{UserID: "user-2"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

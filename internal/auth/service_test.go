package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modgate/modgate/internal/shared"
)

func TestIssueAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	plaintext, token, err := svc.Issue(ctx, "user-1", "ci token")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plaintext, "mg_"))
	assert.NotEmpty(t, token.ID)

	actor, err := svc.Authenticate(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, "user-1", actor.UserID)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	plaintext, token, err := svc.Issue(ctx, "user-1", "ci token")
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"missing prefix", strings.TrimPrefix(plaintext, "mg_")},
		{"unknown id", "mg_does-not-exist.secret"},
		{"wrong secret", "mg_" + token.ID + ".0000000000000000000000000000000000000000000000increasing"},
		{"no separator", "mg_" + token.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tc.token)
			require.ErrorIs(t, err, shared.ErrInvalidCredentials)
		})
	}
}

func TestRevokedTokenStopsAuthenticating(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	plaintext, token, err := svc.Issue(ctx, "user-1", "ci token")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, token.ID))

	_, err = svc.Authenticate(ctx, plaintext)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	// Revoking again is a no-op.
	require.NoError(t, svc.Revoke(ctx, token.ID))
}

func TestRequireTokenMiddleware(t *testing.T) {
	svc := NewService(NewMemoryStore())
	plaintext, _, err := svc.Issue(context.Background(), "user-1", "ci token")
	require.NoError(t, err)

	var seen shared.Actor
	handler := Middleware{Service: svc}.RequireToken(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = shared.ActorFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	req.Header.Set("Authorization", "Bearer "+plaintext)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", seen.UserID)

	req = httptest.NewRequest(http.MethodGet, "/roles", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/roles", nil)
	req.Header.Set("Authorization", "Bearer mg_garbage.garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

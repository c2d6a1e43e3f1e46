package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/modgate/modgate/internal/shared"
)

const tokenPrefix = "mg_"

// Service issues and validates API tokens for the admin surface.
type Service struct {
	store Store
	clock func() time.Time
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store, clock: func() time.Time { return time.Now().UTC() }}
}

// Issue mints a token for a user and returns the plaintext exactly once.
// The plaintext is "mg_<id>.<secret>"; only the secret's bcrypt hash is
// persisted.
func (s *Service) Issue(ctx context.Context, userID, name string) (string, Token, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", Token{}, fmt.Errorf("auth: user id required: %w", shared.ErrInvalidInput)
	}
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", Token{}, fmt.Errorf("auth: generate secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", Token{}, fmt.Errorf("auth: hash secret: %w", err)
	}
	token := Token{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       strings.TrimSpace(name),
		SecretHash: hash,
		CreatedAt:  s.clock(),
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		return "", Token{}, err
	}
	return tokenPrefix + token.ID + "." + secret, token, nil
}

// Authenticate resolves a presented plaintext token to an actor. Every
// failure collapses to ErrInvalidCredentials so callers cannot probe which
// half was wrong.
func (s *Service) Authenticate(ctx context.Context, plaintext string) (shared.Actor, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(plaintext), tokenPrefix)
	if !ok {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	id, secret, ok := strings.Cut(raw, ".")
	if !ok || id == "" || secret == "" {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	token, err := s.store.GetToken(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Actor{}, shared.ErrInvalidCredentials
		}
		return shared.Actor{}, err
	}
	if token.Revoked() {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(token.SecretHash, []byte(secret)); err != nil {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	_ = s.store.TouchToken(ctx, token.ID)
	return shared.Actor{UserID: token.UserID, Name: token.Name}, nil
}

// Revoke permanently disables a token.
func (s *Service) Revoke(ctx context.Context, tokenID string) error {
	return s.store.RevokeToken(ctx, tokenID)
}

// Tokens lists a user's tokens, hashes omitted from the JSON form.
func (s *Service) Tokens(ctx context.Context, userID string) ([]Token, error) {
	return s.store.ListTokens(ctx, userID)
}

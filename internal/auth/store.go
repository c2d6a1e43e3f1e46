package auth

import "context"

// Store persists API tokens.
type Store interface {
	CreateToken(ctx context.Context, token Token) error
	GetToken(ctx context.Context, id string) (Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	RevokeToken(ctx context.Context, id string) error
	TouchToken(ctx context.Context, id string) error
}

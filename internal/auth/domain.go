package auth

import "time"

// Token is a long-lived API credential for the admin surface. Only the
// bcrypt hash of the secret half is stored; the plaintext is shown once at
// issue time.
type Token struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	SecretHash []byte     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt time.Time  `json:"last_used_at,omitzero"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the token has been revoked.
func (t Token) Revoked() bool {
	return t.RevokedAt != nil
}

package domain

import "time"

// TokenRevokedEvent is emitted when a token is deleted before its natural
// expiry. Natural TTL expiry emits nothing; only explicit deletion counts as
// revocation.
type TokenRevokedEvent struct {
	TokenID   string    `json:"token_id"`
	UserID    string    `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires"`
	RevokedAt time.Time `json:"revoked_at"`
}

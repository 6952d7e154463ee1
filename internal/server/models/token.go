package models

import "time"

// TokenKind mirrors the token families tracked by the revocation registry.
type TokenKind string

const (
	// TokenAccess records are a denylist of logged-out access tokens.
	TokenAccess TokenKind = "access"
	// TokenRefresh records are the allowlist of live refresh tokens.
	TokenRefresh TokenKind = "refresh"
)

type TokenRecord struct {
	Token     string
	Kind      TokenKind
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Package authx authenticates requests and sockets. Token verification,
// revocation and user lookup are ports so the HTTP layer and the gateway can
// share one authentication path regardless of backing store.
package authx

import (
	"context"
	"time"
)

// User is the authenticated principal attached to a request.
type User struct {
	ID        string `json:"id" db:"id"`
	PublicKey string `json:"publicKey" db:"public_key"`
	Email     string `json:"email,omitempty" db:"email"`
}

// Claims are the verified contents of an access token.
type Claims struct {
	Subject   string
	Email     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenVerifier validates an access token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// UserFinder resolves a token subject to a user.
type UserFinder interface {
	FindByIdentity(ctx context.Context, identity string) (*User, error)
}

// RevocationChecker answers whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenRevoker records a token id so subsequent checks reject it. expiresAt
// lets the store drop the entry once the token would have expired anyway.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

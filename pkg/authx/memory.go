package authx

import "context"

// TrustedFinder resolves any verified token subject to a user without a
// backing store. Used when no database is configured; the signed token is the
// source of truth.
type TrustedFinder struct{}

func (TrustedFinder) FindByIdentity(_ context.Context, identity string) (*User, error) {
	if identity == "" {
		return nil, nil
	}
	return &User{ID: identity, PublicKey: identity}, nil
}

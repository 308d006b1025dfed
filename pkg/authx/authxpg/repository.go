// Package authxpg implements the authx lookup ports over Postgres.
package authxpg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/astralabs/astra-backend/pkg/authx"
	"github.com/astralabs/astra-backend/pkg/errx"
)

var pgErrors = errx.NewRegistry("AUTHXPG")

var errQueryFailed = pgErrors.Register("QUERY_FAILED", errx.TypeExternal, 500, "User store query failed")

// Repository finds users and revoked tokens in Postgres. Implements
// authx.UserFinder and authx.RevocationChecker.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open connection pool.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// FindByIdentity looks a user up by wallet public key. Returns nil when no
// row matches.
func (r *Repository) FindByIdentity(ctx context.Context, identity string) (*authx.User, error) {
	var user authx.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, public_key, COALESCE(email, '') AS email
		 FROM users
		 WHERE public_key = $1`, identity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pgErrors.NewWithCause(errQueryFailed, err).WithDetail("identity", identity)
	}
	return &user, nil
}

// IsRevoked reports whether the token id appears in the revocation table.
func (r *Repository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := r.db.GetContext(ctx, &revoked,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`, tokenID)
	if err != nil {
		return false, pgErrors.NewWithCause(errQueryFailed, err).WithDetail("jti", tokenID)
	}
	return revoked, nil
}

// Revoke records a token id so subsequent checks reject it. expiresAt lets a
// cleanup job drop rows once the token would have expired anyway.
func (r *Repository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at, revoked_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (jti) DO NOTHING`, tokenID, expiresAt)
	if err != nil {
		return pgErrors.NewWithCause(errQueryFailed, err).WithDetail("jti", tokenID)
	}
	return nil
}

// CleanExpired deletes revocation rows whose tokens have already expired.
func (r *Repository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, pgErrors.NewWithCause(errQueryFailed, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

package authx

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/astralabs/astra-backend/pkg/logx"
)

const (
	// LocalsUserKey is where the middleware stores the authenticated user on
	// the fiber context.
	LocalsUserKey = "user"
	// LocalsClaimsKey holds the verified token claims.
	LocalsClaimsKey = "claims"
)

// NormalizeToken strips a Bearer prefix and URL-decodes percent-encoded
// tokens. Socket clients pass tokens through query strings, which encodes
// them; HTTP clients send them raw.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	token = strings.TrimPrefix(token, "Bearer ")
	if strings.Contains(token, "%") {
		if decoded, err := url.QueryUnescape(token); err == nil {
			token = decoded
		}
	}
	return token
}

// Middleware authenticates requests: verifies the bearer token, rejects
// revoked tokens, resolves the user and attaches both to the request context.
type Middleware struct {
	verifier TokenVerifier
	users    UserFinder
	revoked  RevocationChecker
}

// NewMiddleware wires the authentication ports. revoked may be nil when no
// revocation store is configured.
func NewMiddleware(verifier TokenVerifier, users UserFinder, revoked RevocationChecker) *Middleware {
	return &Middleware{verifier: verifier, users: users, revoked: revoked}
}

// Authenticate returns the fiber handler enforcing authentication.
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return authxErrors.New(ErrUnauthorized)
		}
		token := NormalizeToken(header)
		if token == "" {
			return authxErrors.New(ErrUnauthorized)
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			return err
		}

		if m.revoked != nil && claims.TokenID != "" {
			revoked, err := m.revoked.IsRevoked(c.Context(), claims.TokenID)
			if err != nil {
				logx.Warnf("authx: revocation check failed for %s: %v", claims.TokenID, err)
			} else if revoked {
				return authxErrors.New(ErrTokenRevoked)
			}
		}

		user, err := m.users.FindByIdentity(c.Context(), claims.Subject)
		if err != nil {
			return err
		}
		if user == nil {
			return authxErrors.New(ErrUserNotFound).WithDetail("identity", claims.Subject)
		}

		c.Locals(LocalsUserKey, user)
		c.Locals(LocalsClaimsKey, claims)
		return c.Next()
	}
}

// UserFromCtx returns the authenticated user set by Authenticate, or nil.
func UserFromCtx(c *fiber.Ctx) *User {
	user, _ := c.Locals(LocalsUserKey).(*User)
	return user
}

// LogoutHandler revokes the caller's current token so it is rejected from
// then on. Must run behind Authenticate, which puts the claims in locals.
// A nil revoker means no revocation store is configured.
func LogoutHandler(revoker TokenRevoker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, _ := c.Locals(LocalsClaimsKey).(*Claims)
		if claims == nil || claims.TokenID == "" {
			return authxErrors.New(ErrUnauthorized)
		}
		if revoker == nil {
			return authxErrors.New(ErrRevocationUnavailable)
		}
		if err := revoker.Revoke(c.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
			return err
		}
		logx.WithField("jti", claims.TokenID).Info("authx: token revoked on logout")
		return c.JSON(fiber.Map{"success": true})
	}
}

package authx

import "github.com/astralabs/astra-backend/pkg/errx"

var authxErrors = errx.NewRegistry("AUTHX")

var (
	ErrUnauthorized    = authxErrors.Register("UNAUTHORIZED", errx.TypeAuthorization, 401, "Authentication required")
	ErrInvalidToken    = authxErrors.Register("INVALID_TOKEN", errx.TypeAuthorization, 401, "Invalid or expired token")
	ErrTokenRevoked    = authxErrors.Register("TOKEN_REVOKED", errx.TypeAuthorization, 401, "Token has been revoked")
	ErrUserNotFound    = authxErrors.Register("USER_NOT_FOUND", errx.TypeNotFound, 404, "User not found")
	ErrTokenGeneration = authxErrors.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, 500, "Failed to generate token")

	ErrRevocationUnavailable = authxErrors.Register("REVOCATION_UNAVAILABLE", errx.TypeUnsupported, 501, "Token revocation is not configured")
)

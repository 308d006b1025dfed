package wsx

import "github.com/astralabs/astra-backend/pkg/errx"

var wsxErrors = errx.NewRegistry("WSX")

var (
	ErrUnauthorized  = wsxErrors.Register("UNAUTHORIZED", errx.TypeAuthorization, 401, "Socket authentication failed")
	ErrPersistFailed = wsxErrors.Register("PERSIST_FAILED", errx.TypeExternal, 500, "Failed to persist pending event")
	ErrRelayFailed   = wsxErrors.Register("RELAY_FAILED", errx.TypeExternal, 502, "Status relay subscription failed")
)

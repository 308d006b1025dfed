package statusx

import "github.com/astralabs/astra-backend/pkg/errx"

var statusxErrors = errx.NewRegistry("STATUSX")

var (
	ErrPersistFailed = statusxErrors.Register("PERSIST_FAILED", errx.TypeExternal, 500, "Failed to persist job record")
	ErrInvalidStatus = statusxErrors.Register("INVALID_STATUS", errx.TypeValidation, 400, "Invalid job status")
)

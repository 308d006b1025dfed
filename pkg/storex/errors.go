package storex

import "github.com/astralabs/astra-backend/pkg/errx"

var storexErrors = errx.NewRegistry("STOREX")

var (
	ErrUnavailable = storexErrors.Register("UNAVAILABLE", errx.TypeUnavailable, 503, "No store transport configured or reachable")
	ErrUnsupported = storexErrors.Register("UNSUPPORTED", errx.TypeUnsupported, 501, "Operation requires the persistent transport")
	ErrCommand     = storexErrors.Register("COMMAND_FAILED", errx.TypeExternal, 502, "Store command failed")
	ErrSerialize   = storexErrors.Register("SERIALIZE_FAILED", errx.TypeInternal, 500, "Failed to serialize value")
)

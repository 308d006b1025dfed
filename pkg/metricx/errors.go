package metricx

import "github.com/astralabs/astra-backend/pkg/errx"

var metricxErrors = errx.NewRegistry("METRICX")

// ErrRateLimited is returned to callers when admission control trips.
var ErrRateLimited = metricxErrors.Register("RATE_LIMITED", errx.TypeRateLimited, 429, "Too many requests. Please wait before trying again.")

// RateLimited builds the error handlers surface on a rejected request.
func RateLimited(retryAfter int) error {
	return metricxErrors.New(ErrRateLimited).WithDetail("retry_after_seconds", retryAfter)
}

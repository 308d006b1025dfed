package queuex

import "github.com/astralabs/astra-backend/pkg/errx"

var queuexErrors = errx.NewRegistry("QUEUEX")

var (
	ErrEnqueueFailed = queuexErrors.Register("ENQUEUE_FAILED", errx.TypeExternal, 500, "Failed to enqueue job")
	ErrDequeueFailed = queuexErrors.Register("DEQUEUE_FAILED", errx.TypeExternal, 500, "Failed to dequeue job")
	ErrUpdateFailed  = queuexErrors.Register("UPDATE_FAILED", errx.TypeExternal, 500, "Failed to update job envelope")
	ErrInvalidJob    = queuexErrors.Register("INVALID_JOB", errx.TypeValidation, 400, "Invalid job payload")
)

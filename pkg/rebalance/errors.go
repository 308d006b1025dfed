package rebalance

import "github.com/astralabs/astra-backend/pkg/errx"

var rebalanceErrors = errx.NewRegistry("REBALANCE")

var (
	ErrJobNotFound    = rebalanceErrors.Register("JOB_NOT_FOUND", errx.TypeNotFound, 404, "Rebalance job not found")
	ErrInvalidRequest = rebalanceErrors.Register("INVALID_REQUEST", errx.TypeValidation, 400, "Invalid rebalance request")
)

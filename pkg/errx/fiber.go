package errx

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// FiberErrorHandler converts errors into standard JSON responses. Registered
// *Error values keep their code, type and status; fiber errors keep their
// status; everything else becomes a 500.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"error":      fiberErr.Message,
			"code":       "FIBER_ERROR",
			"status":     fiberErr.Code,
			"request_id": c.Get("X-Request-ID"),
		})
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		response := fiber.Map{
			"error":      appErr.Message,
			"code":       appErr.Code,
			"type":       string(appErr.Type),
			"status":     appErr.HTTPStatus,
			"request_id": c.Get("X-Request-ID"),
		}
		if len(appErr.Details) > 0 {
			response["details"] = appErr.Details
		}
		return c.Status(appErr.HTTPStatus).JSON(response)
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "An unexpected error occurred",
		"code":       "INTERNAL_ERROR",
		"type":       string(TypeInternal),
		"status":     fiber.StatusInternalServerError,
		"request_id": c.Get("X-Request-ID"),
	})
}

package api

import (
	"github.com/gofiber/fiber/v3"
)

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"data":   data,
	})
}

// jsonAccepted returns a 202 response for work that continues in the background.
func jsonAccepted(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "ok",
		"data":   data,
	})
}

// jsonEmpty returns a 200 response with null data and an explanatory message.
func jsonEmpty(c fiber.Ctx, message string) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"data":    nil,
		"message": message,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}

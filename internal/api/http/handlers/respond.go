package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// respond writes the success envelope shared by all endpoints.
func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

func respondWithMeta(c *fiber.Ctx, status int, data, meta any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data, "meta": meta})
}

func respondMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "message": message})
}

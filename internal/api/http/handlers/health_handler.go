package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/persistence"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	postgres *persistence.Postgres
	redis    *persistence.Redis
	version  string
}

// NewHealthHandler constructs handler.
func NewHealthHandler(postgres *persistence.Postgres, redis *persistence.Redis, version string) *HealthHandler {
	return &HealthHandler{postgres: postgres, redis: redis, version: version}
}

// Live GET /health/live.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return respond(c, http.StatusOK, fiber.Map{"status": "ok", "version": h.version})
}

// Ready GET /health/ready. Reports each dependency independently.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	checks := fiber.Map{}
	status := http.StatusOK

	if err := h.postgres.Ping(c.UserContext()); err != nil {
		checks["postgres"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["postgres"] = "ok"
	}

	if err := h.redis.Ping(c.UserContext()); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["redis"] = "ok"
	}

	return c.Status(status).JSON(fiber.Map{
		"success": status == http.StatusOK,
		"data":    fiber.Map{"version": h.version, "checks": checks},
	})
}

package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/policy"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// RequireAdmin gates administrative routes.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !policy.IsAdmin(actor) {
			return apperrors.NewForbidden("admin access required")
		}
		return c.Next()
	}
}

// RequireAgentOrAdmin gates staff routes such as assignment.
func RequireAgentOrAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !policy.IsAgentOrAdmin(actor) {
			return apperrors.NewForbidden("agent or admin access required")
		}
		return c.Next()
	}
}

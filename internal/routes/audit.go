package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wager_escrow/internal/audit"
)

// RegisterAuditRoutes exposes the most recent submitted operations.
func RegisterAuditRoutes(r fiber.Router, store *audit.Store) {
	r.Get("/audit", func(c *fiber.Ctx) error {
		entries, err := store.Recent(c.UserContext(), c.QueryInt("limit", 50))
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"entries": entries})
	})
}

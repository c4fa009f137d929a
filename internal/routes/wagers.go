package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wager_escrow/internal/escrow"
)

// RegisterWagerReadRoutes wires unauthenticated wager inspection.
func RegisterWagerReadRoutes(r fiber.Router, h *escrow.Handler) {
	r.Get("/wagers/:wagerId", h.Get)
}

// RegisterWagerRoutes wires the signed wager lifecycle endpoints.
func RegisterWagerRoutes(r fiber.Router, h *escrow.Handler) {
	r.Post("/wagers", h.Create)
	r.Post("/wagers/:wagerId/join", h.Join)
	r.Post("/wagers/:wagerId/settle", h.Settle)
	r.Post("/wagers/:wagerId/refund", h.Refund)
}

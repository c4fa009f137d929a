package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wager_escrow/internal/accounts"
)

// RegisterAccountReadRoutes wires balance lookups for parties and vaults.
func RegisterAccountReadRoutes(r fiber.Router, h *accounts.Handler) {
	r.Get("/accounts/:address/balance", h.Balance)
}

// RegisterAccountRoutes wires account provisioning for the signer.
func RegisterAccountRoutes(r fiber.Router, h *accounts.Handler) {
	r.Post("/accounts", h.Open)
}

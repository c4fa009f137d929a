package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wager_escrow/internal/funding"
)

// RegisterFundingRoutes wires card funding/withdrawal endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/accounts/:address/fund/card", h.CardIn)
	r.Post("/accounts/:address/withdraw/card", h.CardOut)
}

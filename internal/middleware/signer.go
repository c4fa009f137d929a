package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wager_escrow/internal/address"
	"github.com/congo-pay/wager_escrow/internal/auth"
)

const signerLocal = "signer"

// SignerAuth requires a bearer caller token and stores the verified address
// for handlers to read with SignerFrom.
func SignerAuth(verifier auth.Verifier, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		caller, err := verifier.Verify(authz[len("Bearer "):])
		if err != nil {
			logger.Debug("caller token rejected", slog.String("path", c.Path()), slog.Any("error", err))
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(signerLocal, caller)
		return c.Next()
	}
}

// SignerFrom returns the authenticated caller, or the zero address when the
// request carried none.
func SignerFrom(c *fiber.Ctx) address.Address {
	caller, _ := c.Locals(signerLocal).(address.Address)
	return caller
}

package accounts

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wager_escrow/internal/address"
	"github.com/congo-pay/wager_escrow/internal/middleware"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type accountResponse struct {
	Address     string `json:"address"`
	AccountCode string `json:"account_code"`
}

// Open provisions the signer's account.
func (h *Handler) Open(c *fiber.Ctx) error {
	account, err := h.service.Open(c.UserContext(), middleware.SignerFrom(c))
	if err != nil {
		if errors.Is(err, address.ErrInvalidAddress) {
			return fiber.NewError(http.StatusUnauthorized, "signer required")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(accountResponse{
		Address:     account.Address.String(),
		AccountCode: account.AccountCode,
	})
}

// Balance returns the balance of any party or vault address.
func (h *Handler) Balance(c *fiber.Ctx) error {
	owner, err := address.Parse(c.Params("address"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid address")
	}
	balance, err := h.service.Balance(c.UserContext(), owner)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"address":   owner.String(),
		"balance":   balance.Amount,
		"timestamp": balance.AsOf,
	})
}

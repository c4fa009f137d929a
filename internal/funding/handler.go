package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wager_escrow/internal/accounts"
	"github.com/congo-pay/wager_escrow/internal/address"
	"github.com/congo-pay/wager_escrow/internal/ledger"
	"github.com/congo-pay/wager_escrow/internal/middleware"
)

// Handler exposes HTTP endpoints for card funding flows.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CardIn processes account top-ups funded by cards.
func (h *Handler) CardIn(c *fiber.Ctx) error {
	owner, err := ownedAddress(c)
	if err != nil {
		return err
	}
	var req CardInRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.CardIn(c.UserContext(), CardInInput{
		Owner:      owner,
		Amount:     req.Amount,
		ClientTxID: req.ClientTxID,
		CardNumber: req.CardNumber,
		Expiry:     req.Expiry,
		CVV:        req.CVV,
	})
	return respond(c, result, err)
}

// CardOut processes account withdrawals to cards.
func (h *Handler) CardOut(c *fiber.Ctx) error {
	owner, err := ownedAddress(c)
	if err != nil {
		return err
	}
	var req CardOutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.CardOut(c.UserContext(), CardOutInput{
		Owner:      owner,
		Amount:     req.Amount,
		ClientTxID: req.ClientTxID,
		CardNumber: req.CardNumber,
	})
	return respond(c, result, err)
}

// respond renders a funding outcome. A replayed client_tx_id returns the
// original result with 200.
func respond(c *fiber.Ctx, result FundingResult, err error) error {
	switch {
	case err == nil:
		return c.Status(http.StatusCreated).JSON(toResponse(result))
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return c.Status(http.StatusOK).JSON(toResponse(result))
	case errors.Is(err, ErrInvalidCard), errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrCardDeclined):
		return fiber.NewError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, accounts.ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func toResponse(result FundingResult) FundingResponse {
	return FundingResponse{
		TransactionID:     result.TransactionID,
		Status:            result.Status,
		Balance:           result.Balance,
		AcquirerReference: result.AcquirerReference,
	}
}

// ownedAddress parses the :address param and requires the signer to own it.
func ownedAddress(c *fiber.Ctx) (address.Address, error) {
	owner, err := address.Parse(c.Params("address"))
	if err != nil {
		return address.Address{}, fiber.NewError(http.StatusBadRequest, "invalid address")
	}
	if owner != middleware.SignerFrom(c) {
		return address.Address{}, fiber.NewError(http.StatusForbidden, "not owner of account")
	}
	return owner, nil
}

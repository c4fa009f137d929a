package escrow

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wager_escrow/internal/address"
	"github.com/congo-pay/wager_escrow/internal/middleware"
)

// Handler exposes wager endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a wager handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Create opens a wager funded by the signer.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	arbiter, err := address.ParseOptional(req.Arbiter)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid arbiter address")
	}

	snap, err := h.service.Create(c.UserContext(), CreateInput{
		WagerID:  req.WagerID,
		Caller:   middleware.SignerFrom(c),
		Amount:   req.Amount,
		Deadline: req.Deadline,
		Arbiter:  arbiter,
	})
	if err != nil {
		return h.fail(c, OpCreate, req.WagerID, err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(snap))
}

// Join matches the stake of an open wager.
func (h *Handler) Join(c *fiber.Ctx) error {
	wagerID, err := wagerIDParam(c)
	if err != nil {
		return err
	}
	snap, err := h.service.Join(c.UserContext(), JoinInput{WagerID: wagerID, Caller: middleware.SignerFrom(c)})
	if err != nil {
		return h.fail(c, OpJoin, wagerID, err)
	}
	return c.JSON(toResponse(snap))
}

// Settle records the arbiter's decision.
func (h *Handler) Settle(c *fiber.Ctx) error {
	wagerID, err := wagerIDParam(c)
	if err != nil {
		return err
	}
	var req settleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	winner, err := ParseWinner(string(req.Winner))
	if err != nil {
		return h.fail(c, OpSettle, wagerID, err)
	}
	creator, joiner, err := parseParties(req.Creator, req.Joiner)
	if err != nil {
		return err
	}

	snap, err := h.service.Settle(c.UserContext(), SettleInput{
		WagerID: wagerID,
		Caller:  middleware.SignerFrom(c),
		Winner:  winner,
		Creator: creator,
		Joiner:  joiner,
	})
	if err != nil {
		return h.fail(c, OpSettle, wagerID, err)
	}
	return c.JSON(toResponse(snap))
}

// Refund returns stakes after the deadline.
func (h *Handler) Refund(c *fiber.Ctx) error {
	wagerID, err := wagerIDParam(c)
	if err != nil {
		return err
	}
	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	creator, joiner, err := parseParties(req.Creator, req.Joiner)
	if err != nil {
		return err
	}

	snap, err := h.service.Refund(c.UserContext(), RefundInput{
		WagerID: wagerID,
		Caller:  middleware.SignerFrom(c),
		Creator: creator,
		Joiner:  joiner,
	})
	if err != nil {
		return h.fail(c, OpRefund, wagerID, err)
	}
	return c.JSON(toResponse(snap))
}

// Get returns the record and vault balance of a wager.
func (h *Handler) Get(c *fiber.Ctx) error {
	wagerID, err := wagerIDParam(c)
	if err != nil {
		return err
	}
	snap, err := h.service.Get(c.UserContext(), wagerID)
	if err != nil {
		return h.fail(c, "get", wagerID, err)
	}
	return c.JSON(toResponse(snap))
}

func (h *Handler) fail(c *fiber.Ctx, op Operation, wagerID uint64, err error) error {
	var e *Error
	if !errors.As(err, &e) {
		h.logger.Error("wager operation failed",
			slog.String("operation", string(op)),
			slog.Uint64("wager_id", wagerID),
			slog.String("request_id", middleware.RequestIDFrom(c)),
			slog.Any("error", err),
		)
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
	middleware.SetErrorCode(c, e.Code)
	return c.Status(StatusFor(e.Kind)).JSON(errorResponse{Error: e.Code, Message: e.Error()})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind Kind) int {
	switch kind {
	case KindInput:
		return http.StatusBadRequest
	case KindIdentity:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindState:
		return http.StatusConflict
	case KindResource:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func wagerIDParam(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params("wagerId"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid wager id")
	}
	return id, nil
}

func parseParties(creatorRaw, joinerRaw string) (address.Address, address.Address, error) {
	creator, err := address.ParseOptional(creatorRaw)
	if err != nil {
		return address.Address{}, address.Address{}, fiber.NewError(http.StatusBadRequest, "invalid creator address")
	}
	joiner, err := address.ParseOptional(joinerRaw)
	if err != nil {
		return address.Address{}, address.Address{}, fiber.NewError(http.StatusBadRequest, "invalid joiner address")
	}
	return creator, joiner, nil
}

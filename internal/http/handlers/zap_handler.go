package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/http/dto"
	"github.com/zapchat/backend/internal/services"
)

type ZapHandler struct {
	zapService *services.ZapService
	log        *zap.Logger
}

func NewZapHandler(zapService *services.ZapService, log *zap.Logger) *ZapHandler {
	return &ZapHandler{zapService: zapService, log: log}
}

// CreateZap dispatches a payment. A manual-settlement result is returned
// with 200 like any other outcome; only precondition failures are errors.
func (h *ZapHandler) CreateZap(c *fiber.Ctx) error {
	var req dto.CreateZapRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	res, err := h.zapService.Zap(c.Context(), services.ZapParams{
		Target:          req.Target,
		RecipientPubkey: req.RecipientPubkey,
		AmountSats:      req.AmountSats,
		Comment:         req.Comment,
	})
	if err != nil {
		h.log.Debug("zap dispatch rejected", zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/http/dto"
	"github.com/zapchat/backend/internal/middleware"
	"github.com/zapchat/backend/internal/services"
)

type ReceiptHandler struct {
	receiptService *services.ReceiptService
	log            *zap.Logger
}

func NewReceiptHandler(receiptService *services.ReceiptService, log *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService, log: log}
}

// GetReceipts returns the aggregated zap summary for a recipient, defaulting
// to the authenticated pubkey. Optional query params: recipient, sender,
// limit.
func (h *ReceiptHandler) GetReceipts(c *fiber.Ctx) error {
	recipient := c.Query("recipient")
	if recipient == "" {
		recipient = middleware.GetPubkey(c)
	}
	if recipient == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "recipient is required"})
	}

	summary, err := h.receiptService.Aggregate(c.Context(), recipient, c.Query("sender"), c.QueryInt("limit"))
	if err != nil {
		h.log.Error("failed to aggregate receipts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: summary})
}

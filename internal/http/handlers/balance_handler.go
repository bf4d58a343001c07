package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/http/dto"
	"github.com/zapchat/backend/internal/services"
)

type BalanceHandler struct {
	balanceService *services.BalanceService
	log            *zap.Logger
}

func NewBalanceHandler(balanceService *services.BalanceService, log *zap.Logger) *BalanceHandler {
	return &BalanceHandler{balanceService: balanceService, log: log}
}

// GetBalance reports the reconciled custodial balance. ?refresh=true skips
// the cache and polls the bot again.
func (h *BalanceHandler) GetBalance(c *fiber.Ctx) error {
	snap, err := h.balanceService.CurrentBalance(c.Context(), c.QueryBool("refresh"))
	if err != nil {
		h.log.Error("failed to load balance", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.BalanceResponse{
		BalanceSats:  snap.ValueSats,
		AsOf:         snap.AsOf.Unix(),
		Transactions: snap.Transactions,
	})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/http/dto"
	"github.com/zapchat/backend/internal/services"
)

type WalletHandler struct {
	walletService *services.WalletService
	log           *zap.Logger
}

func NewWalletHandler(walletService *services.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{walletService: walletService, log: log}
}

func (h *WalletHandler) ListWallets(c *fiber.Ctx) error {
	conns, err := h.walletService.Connections(c.Context())
	if err != nil {
		h.log.Error("failed to list wallets", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	active := ""
	if conn, err := h.walletService.ActiveConnection(c.Context()); err == nil && conn != nil {
		active = conn.ConnectionString
	}

	return c.JSON(dto.WalletListResponse{Connections: conns, Active: active})
}

func (h *WalletHandler) AddWallet(c *fiber.Ctx) error {
	var req dto.AddWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.ConnectionString == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "connection_string is required"})
	}

	conn, err := h.walletService.AddConnection(c.Context(), req.ConnectionString, req.Alias)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: conn})
}

func (h *WalletHandler) RemoveWallet(c *fiber.Ctx) error {
	var req dto.SetActiveWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.ConnectionString == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "connection_string is required"})
	}

	if err := h.walletService.RemoveConnection(c.Context(), req.ConnectionString); err != nil {
		h.log.Error("failed to remove wallet", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *WalletHandler) SetActiveWallet(c *fiber.Ctx) error {
	var req dto.SetActiveWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	if err := h.walletService.SetActiveConnection(c.Context(), req.ConnectionString); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

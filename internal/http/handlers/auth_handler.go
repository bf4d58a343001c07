package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/auth"
	"github.com/zapchat/backend/internal/config"
	"github.com/zapchat/backend/internal/http/dto"
)

type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

// CreateSession exchanges a signed auth event for a session token. Proving
// control of the key is the whole registration; there is no account store.
func (h *AuthHandler) CreateSession(c *fiber.Ctx) error {
	var req dto.AuthSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.AuthEvent == nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "auth_event is required"})
	}

	pubkey, err := auth.VerifyAuthEvent(req.AuthEvent, h.cfg.AuthEventMaxAge)
	if err != nil {
		h.log.Debug("auth event rejected", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, pubkey, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.AuthResponse{Token: token, Pubkey: pubkey})
}

package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/service"
)

// AuthHandler exposes the credential-authentication endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "name, email, password required")
	}

	if err := h.auth.Register(c.Context(), req.Name, req.Email, req.Password); err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "registered successfully, a confirmation email is on its way",
		"data":    nil,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	user, token, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "logged in successfully",
		"data":    dto.LoginResponse{User: user, Token: token},
	})
}

// RequestPasswordReset handles POST /auth/reset-password.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" {
		return fiber.NewError(http.StatusBadRequest, "email required")
	}

	if err := h.auth.RequestPasswordReset(c.Context(), req.Email); err != nil {
		return err
	}

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": "password change request sent",
		"data":    nil,
	})
}

// ChangePassword handles PATCH /auth/change-password/:token.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return fiber.NewError(http.StatusBadRequest, "token required")
	}

	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "password required")
	}

	if err := h.auth.ChangePassword(c.Context(), token, req.Password); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "password updated",
		"data":    nil,
	})
}

// ValidateEmail handles GET /auth/validate-email/:token.
func (h *AuthHandler) ValidateEmail(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return fiber.NewError(http.StatusBadRequest, "token required")
	}

	if err := h.auth.ValidateEmail(c.Context(), token); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "email verified",
		"data":    nil,
	})
}

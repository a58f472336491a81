package dto

import "github.com/spec-kit/auth-service/internal/domain"

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordResetRequest payload for requesting a reset link.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordChangeRequest carries the new password; the token travels in
// the URL path.
type PasswordChangeRequest struct {
	Password string `json:"password"`
}

// LoginResponse is the login payload: public user view plus token.
type LoginResponse struct {
	User  domain.PublicUser `json:"user"`
	Token string            `json:"token"`
}

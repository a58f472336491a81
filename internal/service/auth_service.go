package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/mail"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/pkg/util"
)

// AuthService coordinates login, registration, password reset and
// email verification flows. It holds no cross-request state; user
// records live exclusively in the repository.
type AuthService struct {
	users      repository.UserRepository
	notifier   mail.Notifier
	tokens     *auth.TokenCodec
	dispatcher events.Dispatcher
	logger     *zap.Logger
	appName    string
	baseURL    string
}

// AuthDependencies encapsulates collaborator requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Notifier   mail.Notifier
	TokenCodec *auth.TokenCodec
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		notifier:   deps.Notifier,
		tokens:     deps.TokenCodec,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		appName:    cfg.App.Name,
		baseURL:    cfg.App.BaseURL,
	}
}

// Login authenticates a user and returns the public view plus a
// session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.PublicUser, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PublicUser{}, "", util.NewNotFound("invalid email, try again")
		}
		return domain.PublicUser{}, "", util.MapError(err)
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return domain.PublicUser{}, "", util.NewUnauthorized("incorrect credentials")
	}

	token := s.issueToken(user)
	s.publish(ctx, events.NewEvent(events.EventUserLoggedIn, user.ID, user.Email, nil))
	return user.Public(), token, nil
}

// Register creates a new account and mails a confirmation link. The
// session token is delivered only through the confirmation email.
func (s *AuthService) Register(ctx context.Context, name, email, password string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return util.NewConflict("email already registered")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return util.MapError(err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return util.MapError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return util.MapError(err)
	}

	token := s.issueToken(user)
	if err := s.sendConfirmationEmail(ctx, user, token); err != nil {
		return util.MapError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventUserRegistered, user.ID, user.Email, nil))
	return nil
}

// RequestPasswordReset mails a password-change link to an existing user.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("user not found")
		}
		return util.MapError(err)
	}

	token := s.issueToken(user)
	if err := s.sendPasswordResetEmail(ctx, user, token); err != nil {
		return util.MapError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventPasswordResetRequested, user.ID, user.Email, nil))
	return nil
}

// ChangePassword verifies the supplied token and replaces the stored
// password hash for the user the token was issued to.
func (s *AuthService) ChangePassword(ctx context.Context, tokenStr, newPassword string) error {
	user, err := s.userFromToken(ctx, tokenStr)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return util.MapError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return util.MapError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventPasswordChanged, user.ID, user.Email, nil))
	return nil
}

// ValidateEmail marks the token's user as verified. Replaying a
// still-valid token is a no-op beyond re-setting the flag.
func (s *AuthService) ValidateEmail(ctx context.Context, tokenStr string) error {
	user, err := s.userFromToken(ctx, tokenStr)
	if err != nil {
		return err
	}

	user.IsEmailVerified = true
	if err := s.users.Update(ctx, user); err != nil {
		return util.MapError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventEmailVerified, user.ID, user.Email, nil))
	return nil
}

// issueToken signs a token over the user's identity. Issuance failures
// degrade to an empty token; the flows proceed regardless.
func (s *AuthService) issueToken(user *domain.User) string {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.logger.Warn("token issuance failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return ""
	}
	return token
}

// userFromToken verifies the token and resolves its email to a user.
// A token that verifies but names a vanished user is NotFound, keeping
// "bad token" distinct from "user no longer exists".
func (s *AuthService) userFromToken(ctx context.Context, tokenStr string) (*domain.User, error) {
	claims, err := s.tokens.Verify(tokenStr)
	if err != nil {
		return nil, util.NewInvalidToken(err)
	}
	if claims.Email == "" {
		return nil, util.NewInvalidToken(errors.New("claims missing email"))
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("user not found")
		}
		return nil, util.MapError(err)
	}
	return user, nil
}

func (s *AuthService) sendConfirmationEmail(ctx context.Context, user *domain.User, token string) error {
	subject := fmt.Sprintf("Welcome to %s", s.appName)
	body := fmt.Sprintf(`
        <h1>Hi %s, welcome to %s</h1>
        <p>Confirm your account to get started:</p>
        <a href="%s/register/%s">Confirm account</a>`,
		user.Name, s.appName, s.baseURL, token)
	return s.notifier.Send(ctx, user.Email, subject, body)
}

func (s *AuthService) sendPasswordResetEmail(ctx context.Context, user *domain.User, token string) error {
	body := fmt.Sprintf(`
        <h1>Password change</h1>
        <p>To change your password follow the link below</p>
        <a href="%s/change-password/%s">Change password</a>`,
		s.baseURL, token)
	return s.notifier.Send(ctx, user.Email, "Password change", body)
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

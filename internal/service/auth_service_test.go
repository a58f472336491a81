package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/pkg/util"
)

const testSecret = "test-secret"

type fakeUserRepo struct {
	byID   map[int64]domain.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[int64]domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.byID[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.byID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	r.byID[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.byID {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type recordingNotifier struct {
	sent []sentMail
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, to, subject, htmlBody string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func newTestService(repo *fakeUserRepo, notifier *recordingNotifier) *AuthService {
	cfg := config.Config{}
	cfg.App.Name = "auth-service"
	cfg.App.BaseURL = "http://localhost:3001"

	return NewAuthService(cfg, AuthDependencies{
		UserRepo:   repo,
		Notifier:   notifier,
		TokenCodec: auth.NewTokenCodec(testSecret),
		Logger:     zap.NewNop(),
	})
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *util.DomainError
	require.ErrorAs(t, err, &domainErr)
	return domainErr.Code
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newFakeUserRepo()
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Ana", "ana@x.com", "pw123"))

	stored, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123", stored.PasswordHash)
	assert.True(t, auth.VerifyPassword("pw123", stored.PasswordHash))
	assert.False(t, stored.IsEmailVerified)
	assert.Equal(t, domain.RoleUser, stored.Role)

	user, token, err := svc.Login(ctx, "ana@x.com", "pw123")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, stored.ID, user.ID)
	assert.Equal(t, "ana@x.com", user.Email)

	claims, err := auth.NewTokenCodec(testSecret).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.UserID)
	assert.Equal(t, "ana@x.com", claims.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo, &recordingNotifier{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Ana", "ana@x.com", "pw123"))

	_, _, err := svc.Login(ctx, "ana@x.com", "wrong")
	assert.Equal(t, "UNAUTHORIZED", errCode(t, err))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestService(newFakeUserRepo(), &recordingNotifier{})

	_, _, err := svc.Login(context.Background(), "ghost@x.com", "pw123")
	assert.Equal(t, "NOT_FOUND", errCode(t, err))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo, &recordingNotifier{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Ana", "ana@x.com", "pw123"))
	before, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)

	err = svc.Register(ctx, "Impostor", "ana@x.com", "other")
	assert.Equal(t, "CONFLICT", errCode(t, err))

	after, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, before.Name, after.Name)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestRegisterSendsConfirmationLink(t *testing.T) {
	repo := newFakeUserRepo()
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	require.NoError(t, svc.Register(context.Background(), "Ana", "ana@x.com", "pw123"))

	require.Len(t, notifier.sent, 1)
	mail := notifier.sent[0]
	assert.Equal(t, "ana@x.com", mail.To)
	assert.Contains(t, mail.Subject, "auth-service")
	require.Contains(t, mail.Body, "http://localhost:3001/register/")

	// the token embedded in the link must verify and name the user
	link := mail.Body[strings.Index(mail.Body, "/register/")+len("/register/"):]
	token := link[:strings.Index(link, `"`)]
	claims, err := auth.NewTokenCodec(testSecret).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ana@x.com", claims.Email)
}

func TestRegisterNotifierFailurePropagates(t *testing.T) {
	repo := newFakeUserRepo()
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	svc := newTestService(repo, notifier)
	ctx := context.Background()

	err := svc.Register(ctx, "Ana", "ana@x.com", "pw123")
	assert.Equal(t, "INTERNAL_ERROR", errCode(t, err))

	// the created user is not rolled back
	_, err = repo.GetByEmail(ctx, "ana@x.com")
	assert.NoError(t, err)
}

func TestRequestPasswordReset(t *testing.T) {
	repo := newFakeUserRepo()
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Ana", "ana@x.com", "pw123"))
	notifier.sent = nil

	require.NoError(t, svc.RequestPasswordReset(ctx, "ana@x.com"))
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0].Body, "http://localhost:3001/change-password/")

	err := svc.RequestPasswordReset(ctx, "ghost@x.com")
	assert.Equal(t, "NOT_FOUND", errCode(t, err))
}

func TestChangePassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo, &recordingNotifier{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Ana", "ana@x.com", "pw123"))

	token, err := auth.NewTokenCodec(testSecret).Issue(1, "ana@x.com")
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, token, "new-password"))

	updated, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword("new-password", updated.PasswordHash))
	assert.False(t, auth.VerifyPassword("pw123", updated.PasswordHash))
}

func TestChangePasswordExpiredToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo, &recordingNotifier{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Ana", "ana@x.com", "pw123"))
	before, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)

	expired := signedToken(t, &auth.Claims{
		UserID: before.ID,
		Email:  "ana@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-48 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-24 * time.Hour)),
		},
	})

	err = svc.ChangePassword(ctx, expired, "new-password")
	assert.Equal(t, "INVALID_TOKEN", errCode(t, err))

	after, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestChangePasswordTokenWithoutEmail(t *testing.T) {
	svc := newTestService(newFakeUserRepo(), &recordingNotifier{})

	token := signedToken(t, &auth.Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	err := svc.ChangePassword(context.Background(), token, "new-password")
	assert.Equal(t, "INVALID_TOKEN", errCode(t, err))
}

func TestChangePasswordVanishedUser(t *testing.T) {
	svc := newTestService(newFakeUserRepo(), &recordingNotifier{})

	// valid token for a user that no longer exists: NotFound, not an
	// authentication failure
	token, err := auth.NewTokenCodec(testSecret).Issue(99, "gone@x.com")
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), token, "new-password")
	assert.Equal(t, "NOT_FOUND", errCode(t, err))
}

func TestValidateEmailIdempotent(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo, &recordingNotifier{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Ana", "ana@x.com", "pw123"))

	token, err := auth.NewTokenCodec(testSecret).Issue(1, "ana@x.com")
	require.NoError(t, err)

	require.NoError(t, svc.ValidateEmail(ctx, token))
	verified, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified)

	// replaying the same still-valid token succeeds and changes nothing
	require.NoError(t, svc.ValidateEmail(ctx, token))
	replayed, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.True(t, replayed.IsEmailVerified)
}

func TestValidateEmailGarbageToken(t *testing.T) {
	svc := newTestService(newFakeUserRepo(), &recordingNotifier{})

	err := svc.ValidateEmail(context.Background(), "not.a.jwt")
	assert.Equal(t, "INVALID_TOKEN", errCode(t, err))
}

func TestRegisterLoginValidateScenario(t *testing.T) {
	repo := newFakeUserRepo()
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Ana", "ana@x.com", "pw123"))
	stored, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123", stored.PasswordHash)
	assert.False(t, stored.IsEmailVerified)

	_, token, err := svc.Login(ctx, "ana@x.com", "pw123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, svc.ValidateEmail(ctx, token))
	verified, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified)
}

func TestRegisterProceedsWhenIssuanceFails(t *testing.T) {
	repo := newFakeUserRepo()
	notifier := &recordingNotifier{}

	cfg := config.Config{}
	cfg.App.Name = "auth-service"
	cfg.App.BaseURL = "http://localhost:3001"
	svc := NewAuthService(cfg, AuthDependencies{
		UserRepo:   repo,
		Notifier:   notifier,
		TokenCodec: auth.NewTokenCodec(""), // unsigned: issuance always fails
		Logger:     zap.NewNop(),
	})
	ctx := context.Background()

	// issuance failure degrades to an empty token; the flow completes
	require.NoError(t, svc.Register(ctx, "Ana", "ana@x.com", "pw123"))
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0].Body, `/register/"`)

	_, err := repo.GetByEmail(ctx, "ana@x.com")
	assert.NoError(t, err)
}

func signedToken(t *testing.T, claims *auth.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AuthService coordinates login sessions and password changes.
type AuthService struct {
	users       repository.UserRepository
	sessions    auth.SessionStore
	tokenMgr    *auth.TokenManager
	sessionTTL  time.Duration
	bcryptCost  int
	minPassword int
	clock       clock.Clock
	logger      *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	Sessions          auth.SessionStore
	Tokens            *auth.TokenManager
	SessionTTL        time.Duration
	BcryptCost        int
	MinPasswordLength int
	Clock             clock.Clock
	Logger            *zap.Logger
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

var errInvalidCredentials = apperrors.NewUnauthorized("invalid email or password")

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.SessionTTL
	if ttl <= 0 && deps.Tokens != nil {
		ttl = deps.Tokens.TTL()
	}
	minPassword := deps.MinPasswordLength
	if minPassword <= 0 {
		minPassword = 8
	}
	return &AuthService{
		users:       deps.UserRepo,
		sessions:    deps.Sessions,
		tokenMgr:    deps.Tokens,
		sessionTTL:  ttl,
		bcryptCost:  deps.BcryptCost,
		minPassword: minPassword,
		clock:       clk,
		logger:      logger,
	}
}

// Login authenticates an active account and opens a session. Unknown emails
// and wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewFieldValidationError(map[string]string{"email": "required", "password": "required"})
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("unusable password hash", zap.String("user_id", user.ID), zap.Error(err))
		}
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("account is deactivated")
	}

	now := s.clock.Now()
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if s.sessions != nil {
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role, session.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record login time", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// Logout revokes the caller's session so its token stops working.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if s.sessions == nil || sessionID == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// Me returns the caller's current profile.
func (s *AuthService) Me(ctx context.Context, actor *domain.User) (*domain.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, notFoundOr(err, "user", map[string]any{"user_id": actor.ID})
	}
	return user, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.User, currentPassword, newPassword string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if len(newPassword) < s.minPassword {
		return apperrors.NewFieldValidationError(map[string]string{
			"newPassword": "must be at least " + strconv.Itoa(s.minPassword) + " characters",
		})
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return notFoundOr(err, "user", map[string]any{"user_id": actor.ID})
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewValidationError("current password is incorrect", map[string]any{
			"fields": map[string]string{"currentPassword": "incorrect"},
		})
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.clock.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

package service

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// UserService manages accounts and the self-registration approval workflow.
type UserService struct {
	users       repository.UserRepository
	pending     repository.PendingUserRepository
	bcryptCost  int
	minPassword int
	clock       clock.Clock
	logger      *zap.Logger
	events      eventPublisher
}

// UserDependencies bundles collaborators for user management.
type UserDependencies struct {
	UserRepo          repository.UserRepository
	PendingUserRepo   repository.PendingUserRepository
	Dispatcher        events.Dispatcher
	BcryptCost        int
	MinPasswordLength int
	Clock             clock.Clock
	Logger            *zap.Logger
}

// RegistrationInput is a public self-registration request.
type RegistrationInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	MiddleName string
	Phone      string
	Department string
	Position   string
	EmployeeID string
}

// UserListFilters define listing parameters.
type UserListFilters struct {
	Search *string
	Role   *domain.Role
	Active *bool
}

// UserInput describes an account created by an admin.
type UserInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	MiddleName string
	Phone      string
	Role       domain.Role
	Department string
	Position   string
	IsActive   *bool
}

// UserPatch is a partial account update. A non-empty Password resets it.
type UserPatch struct {
	Email      *string
	Password   *string
	FirstName  *string
	LastName   *string
	MiddleName *string
	Phone      *string
	Role       *domain.Role
	Department *string
	Position   *string
	IsActive   *bool
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	minPassword := deps.MinPasswordLength
	if minPassword <= 0 {
		minPassword = 8
	}
	return &UserService{
		users:       deps.UserRepo,
		pending:     deps.PendingUserRepo,
		bcryptCost:  deps.BcryptCost,
		minPassword: minPassword,
		clock:       clk,
		logger:      logger,
		events:      eventPublisher{dispatcher: deps.Dispatcher, clock: clk, logger: logger},
	}
}

func requireAdmin(actor *domain.User) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// Register stores a pending registration for admin review.
func (s *UserService) Register(ctx context.Context, input RegistrationInput) (*domain.PendingUser, error) {
	email := normalizeEmail(input.Email)
	fields := map[string]string{}
	validateEmail(fields, email)
	if strings.TrimSpace(input.FirstName) == "" {
		fields["firstName"] = "required"
	}
	if strings.TrimSpace(input.LastName) == "" {
		fields["lastName"] = "required"
	}
	s.validatePassword(fields, "password", input.Password)
	if len(fields) > 0 {
		return nil, apperrors.NewFieldValidationError(fields)
	}
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	pending := &domain.PendingUser{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		MiddleName:   strings.TrimSpace(input.MiddleName),
		Phone:        strings.TrimSpace(input.Phone),
		Department:   strings.TrimSpace(input.Department),
		Position:     strings.TrimSpace(input.Position),
		EmployeeID:   strings.TrimSpace(input.EmployeeID),
		PasswordHash: hash,
		Status:       domain.RegistrationPending,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.pending.Create(ctx, pending); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, emailTaken(email)
		}
		return nil, apperrors.MapError(err)
	}
	return pending, nil
}

// ListPending returns registrations, by default only those awaiting a decision.
func (s *UserService) ListPending(ctx context.Context, actor *domain.User, status *domain.RegistrationStatus) ([]domain.PendingUser, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if status == nil {
		pending := domain.RegistrationPending
		status = &pending
	}
	list, err := s.pending.List(ctx, status)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if list == nil {
		list = []domain.PendingUser{}
	}
	return list, nil
}

// Approve turns a pending registration into an active client account and
// announces it to staff.
func (s *UserService) Approve(ctx context.Context, actor *domain.User, pendingID string) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	pending, err := s.loadUndecided(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, pending.Email, pending.ID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.decide(ctx, pendingID, domain.RegistrationApproved, actor.ID); err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        pending.Email,
		FirstName:    pending.FirstName,
		LastName:     pending.LastName,
		MiddleName:   pending.MiddleName,
		Phone:        pending.Phone,
		Role:         domain.RoleClient,
		Department:   pending.Department,
		Position:     pending.Position,
		IsActive:     true,
		PasswordHash: pending.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Put the registration back so the approval can be retried.
		if reopenErr := s.pending.Reopen(ctx, pendingID, domain.RegistrationApproved); reopenErr != nil {
			s.logger.Error("approved registration left without an account",
				zap.String("pending_id", pendingID), zap.Error(err), zap.NamedError("reopen_error", reopenErr))
		} else {
			s.logger.Warn("approval rolled back; account could not be created",
				zap.String("pending_id", pendingID), zap.Error(err))
		}
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, emailTaken(user.Email)
		}
		return nil, apperrors.MapError(err)
	}

	s.events.publish(ctx, events.Event{
		Type:      events.EventUserRegistered,
		RelatedID: user.ID,
		Actor:     actorOf(actor),
		Payload: events.UserRegisteredPayload{
			UserID:   user.ID,
			Email:    user.Email,
			FullName: user.FullName(),
		},
	})
	return user, nil
}

// Reject declines a pending registration.
func (s *UserService) Reject(ctx context.Context, actor *domain.User, pendingID string) (*domain.PendingUser, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.loadUndecided(ctx, pendingID); err != nil {
		return nil, err
	}
	if err := s.decide(ctx, pendingID, domain.RegistrationRejected, actor.ID); err != nil {
		return nil, err
	}
	pending, err := s.pending.GetByID(ctx, pendingID)
	if err != nil {
		return nil, notFoundOr(err, "registration", map[string]any{"registration_id": pendingID})
	}
	return pending, nil
}

// ListUsers returns accounts matching the filters.
func (s *UserService) ListUsers(ctx context.Context, actor *domain.User, filters UserListFilters) ([]domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, repository.UserFilter{
		Search: trimmedPtr(filters.Search),
		Role:   filters.Role,
		Active: filters.Active,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// GetUser fetches one account.
func (s *UserService) GetUser(ctx context.Context, actor *domain.User, userID string) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user", map[string]any{"user_id": userID})
	}
	return user, nil
}

// CreateUser adds an account directly, bypassing approval.
func (s *UserService) CreateUser(ctx context.Context, actor *domain.User, input UserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	email := normalizeEmail(input.Email)
	fields := map[string]string{}
	validateEmail(fields, email)
	if strings.TrimSpace(input.FirstName) == "" {
		fields["firstName"] = "required"
	}
	if strings.TrimSpace(input.LastName) == "" {
		fields["lastName"] = "required"
	}
	role, ok := domain.ParseRole(string(input.Role))
	if !ok {
		fields["role"] = "must be one of client, support, admin"
	}
	s.validatePassword(fields, "password", input.Password)
	if len(fields) > 0 {
		return nil, apperrors.NewFieldValidationError(fields)
	}
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	now := s.clock.Now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		MiddleName:   strings.TrimSpace(input.MiddleName),
		Phone:        strings.TrimSpace(input.Phone),
		Role:         role,
		Department:   strings.TrimSpace(input.Department),
		Position:     strings.TrimSpace(input.Position),
		IsActive:     active,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, emailTaken(email)
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// UpdateUser edits an account. Admins cannot deactivate or demote themselves.
func (s *UserService) UpdateUser(ctx context.Context, actor *domain.User, userID string, patch UserPatch) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user", map[string]any{"user_id": userID})
	}

	fields := map[string]string{}
	var email string
	if patch.Email != nil {
		email = normalizeEmail(*patch.Email)
		validateEmail(fields, email)
	}
	if patch.FirstName != nil && strings.TrimSpace(*patch.FirstName) == "" {
		fields["firstName"] = "must not be empty"
	}
	if patch.LastName != nil && strings.TrimSpace(*patch.LastName) == "" {
		fields["lastName"] = "must not be empty"
	}
	var role domain.Role
	if patch.Role != nil {
		parsed, ok := domain.ParseRole(string(*patch.Role))
		if !ok {
			fields["role"] = "must be one of client, support, admin"
		} else if user.ID == actor.ID && parsed != domain.RoleAdmin {
			fields["role"] = "you cannot remove your own admin role"
		}
		role = parsed
	}
	if patch.IsActive != nil && !*patch.IsActive && user.ID == actor.ID {
		fields["isActive"] = "you cannot deactivate your own account"
	}
	if patch.Password != nil && *patch.Password != "" {
		s.validatePassword(fields, "password", *patch.Password)
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldValidationError(fields)
	}

	if patch.Email != nil && email != user.Email {
		if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if patch.FirstName != nil {
		user.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		user.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.MiddleName != nil {
		user.MiddleName = strings.TrimSpace(*patch.MiddleName)
	}
	if patch.Phone != nil {
		user.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Role != nil {
		user.Role = role
	}
	if patch.Department != nil {
		user.Department = strings.TrimSpace(*patch.Department)
	}
	if patch.Position != nil {
		user.Position = strings.TrimSpace(*patch.Position)
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}
	if patch.Password != nil && *patch.Password != "" {
		hash, err := auth.HashPassword(*patch.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = s.clock.Now()

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, emailTaken(user.Email)
		}
		return nil, notFoundOr(err, "user", map[string]any{"user_id": userID})
	}
	return user, nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, actor *domain.User, userID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if userID == actor.ID {
		return apperrors.NewValidationError("you cannot delete your own account", nil)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserInUse) {
			return apperrors.NewConflictWithCause(apperrors.CodeConflict,
				"user still owns tickets; deactivate the account instead", err,
				map[string]any{"user_id": userID})
		}
		return notFoundOr(err, "user", map[string]any{"user_id": userID})
	}
	return nil
}

func (s *UserService) loadUndecided(ctx context.Context, pendingID string) (*domain.PendingUser, error) {
	pending, err := s.pending.GetByID(ctx, pendingID)
	if err != nil {
		return nil, notFoundOr(err, "registration", map[string]any{"registration_id": pendingID})
	}
	if pending.Status != domain.RegistrationPending {
		return nil, registrationDecided(pendingID, pending.Status)
	}
	return pending, nil
}

func (s *UserService) decide(ctx context.Context, pendingID string, status domain.RegistrationStatus, adminID string) error {
	err := s.pending.UpdateStatus(ctx, pendingID, status, adminID, s.clock.Now())
	if errors.Is(err, repository.ErrStaleState) {
		return registrationDecided(pendingID, "")
	}
	if err != nil {
		return notFoundOr(err, "registration", map[string]any{"registration_id": pendingID})
	}
	return nil
}

// ensureEmailFree checks accounts and pending registrations other than exceptPendingID.
func (s *UserService) ensureEmailFree(ctx context.Context, email, exceptPendingID string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return emailTaken(email)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return apperrors.MapError(err)
	}
	if s.pending == nil {
		return nil
	}
	p, err := s.pending.GetByEmail(ctx, email)
	if err == nil && p.ID != exceptPendingID {
		return emailTaken(email)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *UserService) validatePassword(fields map[string]string, key, password string) {
	if len(password) < s.minPassword {
		fields[key] = "must be at least " + strconv.Itoa(s.minPassword) + " characters"
	}
}

func validateEmail(fields map[string]string, email string) {
	if email == "" {
		fields["email"] = "required"
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "invalid email address"
	}
}

func emailTaken(email string) error {
	return apperrors.NewConflict("email already registered", map[string]any{"email": email})
}

func registrationDecided(id string, status domain.RegistrationStatus) error {
	details := map[string]any{"registration_id": id}
	if status != "" {
		details["status"] = status
	}
	return apperrors.NewConflictWithCause(apperrors.CodeRegistrationClosed,
		"registration has already been decided", nil, details)
}

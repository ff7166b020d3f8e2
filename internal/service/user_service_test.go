package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func registration(email string) RegistrationInput {
	return RegistrationInput{
		Email:      email,
		Password:   "s3cure-pass",
		FirstName:  "Nina",
		LastName:   "Lee",
		Department: "Finance",
		EmployeeID: "E-100",
	}
}

func TestRegistrationApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pending, err := env.users.Register(ctx, registration("  Nina@Example.com "))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if pending.Status != domain.RegistrationPending || pending.Email != "nina@example.com" {
		t.Fatalf("pending = %+v", pending)
	}
	if pending.PasswordHash == "s3cure-pass" || pending.PasswordHash == "" {
		t.Fatal("password stored without hashing")
	}

	_, err = env.users.Register(ctx, registration("nina@example.com"))
	wantCode(t, err, apperrors.CodeConflict)
	_, err = env.users.Register(ctx, registration(env.client.Email))
	wantCode(t, err, apperrors.CodeConflict)

	// Pending accounts cannot sign in yet.
	_, err = env.auth.Login(ctx, "nina@example.com", "s3cure-pass")
	wantCode(t, err, apperrors.CodeUnauthorized)

	list, err := env.users.ListPending(ctx, env.admin, nil)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("pending list = %d, want 1", len(list))
	}

	user, err := env.users.Approve(ctx, env.admin, pending.ID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if user.Role != domain.RoleClient || !user.IsActive || user.Email != pending.Email {
		t.Fatalf("approved user = %+v", user)
	}

	if _, err := env.auth.Login(ctx, "nina@example.com", "s3cure-pass"); err != nil {
		t.Fatalf("Login() after approval error = %v", err)
	}

	var announced bool
	for _, n := range env.inbox(t, env.support) {
		if n.Type == domain.NotificationUserRegistered && n.RelatedID == user.ID {
			announced = true
		}
	}
	if !announced {
		t.Fatal("approval did not broadcast user_registered")
	}

	_, err = env.users.Approve(ctx, env.admin, pending.ID)
	wantCode(t, err, apperrors.CodeRegistrationClosed)
	_, err = env.users.Reject(ctx, env.admin, pending.ID)
	wantCode(t, err, apperrors.CodeRegistrationClosed)
}

func TestConcurrentApprovalDecidesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pending, err := env.users.Register(ctx, registration("race@example.com"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.users.Approve(ctx, env.admin, pending.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if !apperrors.HasCode(err, apperrors.CodeRegistrationClosed) && !apperrors.HasCode(err, apperrors.CodeConflict) {
				t.Errorf("Approve() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("successes = %d, want 1", successes)
	}
}

// failingUserCreate rejects every new account with err.
type failingUserCreate struct {
	repository.UserRepository
	err error
}

func (f failingUserCreate) Create(context.Context, *domain.User) error { return f.err }

func TestApproveRollsBackWhenAccountCreationFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pending, err := env.users.Register(ctx, registration("nina@example.com"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	broken := NewUserService(UserDependencies{
		UserRepo:        failingUserCreate{UserRepository: env.store.Users(), err: errors.New("connection reset")},
		PendingUserRepo: env.store.PendingUsers(),
		BcryptCost:      bcrypt.MinCost,
		Clock:           env.clock,
	})
	_, err = broken.Approve(ctx, env.admin, pending.ID)
	wantCode(t, err, apperrors.CodeInternal)

	stored, err := env.store.PendingUsers().GetByID(ctx, pending.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != domain.RegistrationPending || stored.DecidedAt != nil || stored.DecidedBy != nil {
		t.Fatalf("registration after failed approval = %+v, want pending and undecided", stored)
	}

	user, err := env.users.Approve(ctx, env.admin, pending.ID)
	if err != nil {
		t.Fatalf("retried Approve() error = %v", err)
	}
	if user.Email != "nina@example.com" {
		t.Fatalf("approved user = %+v", user)
	}
}

func TestRejectRegistration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pending, err := env.users.Register(ctx, registration("no@example.com"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err = env.users.Reject(ctx, env.support, pending.ID)
	wantCode(t, err, apperrors.CodeForbidden)

	rejected, err := env.users.Reject(ctx, env.admin, pending.ID)
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if rejected.Status != domain.RegistrationRejected || rejected.DecidedBy == nil || *rejected.DecidedBy != env.admin.ID {
		t.Fatalf("rejected = %+v", rejected)
	}

	open, err := env.users.ListPending(ctx, env.admin, nil)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("open registrations = %d, want 0", len(open))
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	input := registration("not-an-email")
	input.Password = "short"
	input.FirstName = ""

	_, err := env.users.Register(context.Background(), input)
	wantCode(t, err, apperrors.CodeValidation)
	fields, _ := apperrors.ToDomainError(err).Details["fields"].(map[string]string)
	for _, key := range []string{"email", "password", "firstName"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing field error for %s in %v", key, fields)
		}
	}
}

func TestAdminUserManagement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.users.CreateUser(ctx, env.admin, UserInput{
		Email:     "tech@example.com",
		Password:  "password123",
		FirstName: "Tom",
		LastName:  "Tech",
		Role:      domain.RoleSupport,
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if !created.IsActive || created.Role != domain.RoleSupport {
		t.Fatalf("created = %+v", created)
	}

	_, err = env.users.CreateUser(ctx, env.admin, UserInput{
		Email: "TECH@example.com", Password: "password123", FirstName: "T", LastName: "T", Role: domain.RoleClient,
	})
	wantCode(t, err, apperrors.CodeConflict)

	_, err = env.users.UpdateUser(ctx, env.admin, created.ID, UserPatch{Email: ptr(env.client.Email)})
	wantCode(t, err, apperrors.CodeConflict)

	updated, err := env.users.UpdateUser(ctx, env.admin, created.ID, UserPatch{
		IsActive: ptr(false),
		Password: ptr("new-password-1"),
	})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if updated.IsActive {
		t.Fatal("user still active")
	}
	_, err = env.auth.Login(ctx, "tech@example.com", "new-password-1")
	wantCode(t, err, apperrors.CodeUnauthorized)

	role := domain.RoleSupport
	list, err := env.users.ListUsers(ctx, env.admin, UserListFilters{Role: &role})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("support users = %d, want 3", len(list))
	}

	_, err = env.users.ListUsers(ctx, env.support, UserListFilters{})
	wantCode(t, err, apperrors.CodeForbidden)
}

func TestAdminCannotLockThemselvesOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wantCode(t, env.users.DeleteUser(ctx, env.admin, env.admin.ID), apperrors.CodeValidation)
	_, err := env.users.UpdateUser(ctx, env.admin, env.admin.ID, UserPatch{IsActive: ptr(false)})
	wantCode(t, err, apperrors.CodeValidation)
	_, err = env.users.UpdateUser(ctx, env.admin, env.admin.ID, UserPatch{Role: ptr(domain.RoleSupport)})
	wantCode(t, err, apperrors.CodeValidation)
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t, env.client, "Badge")
	if _, err := env.assignment.TakeTicket(ctx, env.support, ticket.ID); err != nil {
		t.Fatalf("TakeTicket() error = %v", err)
	}

	wantCode(t, env.users.DeleteUser(ctx, env.admin, env.client.ID), apperrors.CodeConflict)

	if err := env.users.DeleteUser(ctx, env.admin, env.support.ID); err != nil {
		t.Fatalf("DeleteUser(support) error = %v", err)
	}
	stored, err := env.tickets.GetTicket(ctx, env.admin, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket() error = %v", err)
	}
	if stored.AssigneeID != nil {
		t.Fatalf("assignee = %s after deleting the user, want nil", *stored.AssigneeID)
	}

	wantCode(t, env.users.DeleteUser(ctx, env.admin, "ghost"), apperrors.CodeNotFound)
}

package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

const testPassword = "correct-horse"

type testEnv struct {
	store    *memory.Store
	clock    *clock.Fake
	sessions *auth.MemorySessionStore

	tickets       *TicketService
	assignment    *AssignmentService
	notifications *NotificationService
	knowledge     *KnowledgeService
	users         *UserService
	auth          *AuthService
	analytics     *AnalyticsService

	client   *domain.User // u1
	client2  *domain.User // u3
	support  *domain.User // u2
	support2 *domain.User
	admin    *domain.User
}

type envOption func(*envConfig)

type envConfig struct {
	strict bool
	cache  SnapshotCache
}

func withStrictTransitions() envOption { return func(c *envConfig) { c.strict = true } }

func withCache(cache SnapshotCache) envOption { return func(c *envConfig) { c.cache = cache } }

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	var cfg envConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	store := memory.NewStore()
	clk := clock.NewFake(epoch)
	dispatcher := events.NewInMemoryDispatcher()
	sessions := auth.NewMemorySessionStore(clk)

	env := &testEnv{store: store, clock: clk, sessions: sessions}
	env.notifications = NewNotificationService(NotificationDependencies{
		Dispatcher:       dispatcher,
		NotificationRepo: store.Notifications(),
		UserRepo:         store.Users(),
		Clock:            clk,
		Config:           config.NotificationConfig{},
	})
	env.notifications.RegisterHandlers()

	env.tickets = NewTicketService(TicketDependencies{
		TicketRepo:  store.Tickets(),
		CommentRepo: store.Comments(),
		UserRepo:    store.Users(),
		Dispatcher:  dispatcher,
		Policy:      TransitionPolicy{Strict: cfg.strict},
		Clock:       clk,
	})
	env.assignment = NewAssignmentService(AssignmentDependencies{
		TicketRepo: store.Tickets(),
		UserRepo:   store.Users(),
		Dispatcher: dispatcher,
		Clock:      clk,
	})
	env.knowledge = NewKnowledgeService(KnowledgeDependencies{
		ArticleRepo: store.Articles(),
		Dispatcher:  dispatcher,
		Clock:       clk,
	})
	env.users = NewUserService(UserDependencies{
		UserRepo:        store.Users(),
		PendingUserRepo: store.PendingUsers(),
		Dispatcher:      dispatcher,
		BcryptCost:      bcrypt.MinCost,
		Clock:           clk,
	})
	env.auth = NewAuthService(AuthDependencies{
		UserRepo:   store.Users(),
		Sessions:   sessions,
		Tokens:     auth.NewTokenManager("test-secret", time.Hour),
		BcryptCost: bcrypt.MinCost,
		Clock:      clk,
	})
	env.analytics = NewAnalyticsService(AnalyticsDependencies{
		TicketRepo:  store.Tickets(),
		UserRepo:    store.Users(),
		ArticleRepo: store.Articles(),
		Cache:       cfg.cache,
		CacheTTL:    time.Minute,
		Clock:       clk,
	})

	env.client = env.seedUser(t, "u1", "ann@example.com", domain.RoleClient)
	env.support = env.seedUser(t, "u2", "sam@example.com", domain.RoleSupport)
	env.client2 = env.seedUser(t, "u3", "cid@example.com", domain.RoleClient)
	env.support2 = env.seedUser(t, "u4", "sue@example.com", domain.RoleSupport)
	env.admin = env.seedUser(t, "a1", "ada@example.com", domain.RoleAdmin)
	return env
}

func (e *testEnv) seedUser(t *testing.T, id, email string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	user := &domain.User{
		ID:           id,
		Email:        email,
		FirstName:    "Test",
		LastName:     id,
		Role:         role,
		IsActive:     true,
		PasswordHash: hash,
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
	if err := e.store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return user
}

func (e *testEnv) createTicket(t *testing.T, actor *domain.User, title string) *domain.Ticket {
	t.Helper()
	ticket, err := e.tickets.CreateTicket(context.Background(), actor, TicketCreateInput{
		Title:       title,
		Description: "it does not work",
		Priority:    domain.TicketPriorityMedium,
		Category:    "hardware",
	})
	if err != nil {
		t.Fatalf("CreateTicket() error = %v", err)
	}
	return ticket
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %s", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

func ptr[T any](v T) *T { return &v }

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/seed"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
)

const password = "routerPassword"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	clk := clock.Real()
	store := memory.NewStore()

	fixtures := &seed.Fixtures{Users: []seed.UserFixture{
		{Email: "client@example.com", Password: password, FirstName: "Cleo", LastName: "Client", Role: "client"},
		{Email: "support@example.com", Password: password, FirstName: "Sam", LastName: "Support", Role: "support"},
		{Email: "admin@example.com", Password: password, FirstName: "Ada", LastName: "Admin", Role: "admin"},
	}}
	seeder := &seed.Seeder{
		Users:      store.Users(),
		Tickets:    store.Tickets(),
		Articles:   store.Articles(),
		BcryptCost: bcrypt.MinCost,
		Clock:      clk,
	}
	if _, err := seeder.Apply(context.Background(), fixtures); err != nil {
		t.Fatalf("seed users: %v", err)
	}

	dispatcher := events.NewInMemoryDispatcher()
	sessions := auth.NewMemorySessionStore(clk)
	tokens := auth.NewTokenManager("router-secret", 0)

	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:       dispatcher,
		NotificationRepo: store.Notifications(),
		UserRepo:         store.Users(),
		Clock:            clk,
		Logger:           logger,
	})
	worker.StartNotificationWorker(notifications, logger)

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  store.Tickets(),
		CommentRepo: store.Comments(),
		UserRepo:    store.Users(),
		Dispatcher:  dispatcher,
		Clock:       clk,
		Logger:      logger,
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: store.Tickets(),
		UserRepo:   store.Users(),
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
	})
	knowledge := service.NewKnowledgeService(service.KnowledgeDependencies{
		ArticleRepo: store.Articles(),
		Dispatcher:  dispatcher,
		Clock:       clk,
		Logger:      logger,
	})
	users := service.NewUserService(service.UserDependencies{
		UserRepo:          store.Users(),
		PendingUserRepo:   store.PendingUsers(),
		Dispatcher:        dispatcher,
		BcryptCost:        bcrypt.MinCost,
		MinPasswordLength: 8,
		Clock:             clk,
		Logger:            logger,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:          store.Users(),
		Sessions:          sessions,
		Tokens:            tokens,
		BcryptCost:        bcrypt.MinCost,
		MinPasswordLength: 8,
		Clock:             clk,
		Logger:            logger,
	})
	analytics := service.NewAnalyticsService(service.AnalyticsDependencies{
		TicketRepo:  store.Tickets(),
		UserRepo:    store.Users(),
		ArticleRepo: store.Articles(),
		Clock:       clk,
		Logger:      logger,
	})

	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-test", "test", map[string]handlers.Pinger{"postgres": nil}, metrics),
		Auth:           handlers.NewAuthHandler(authService, users),
		Tickets:        handlers.NewTicketsHandler(tickets, assignments),
		Knowledge:      handlers.NewKnowledgeHandler(knowledge),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		Users:          handlers.NewUsersHandler(users),
		Analytics:      handlers.NewAnalyticsHandler(analytics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users(), sessions),
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, env
}

func login(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	status, env := call(t, app, fiber.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	if status != fiber.StatusOK {
		t.Fatalf("login %s: status %d, error %+v", email, status, env.Error)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("login %s: no token in %s", email, env.Data)
	}
	return data.Token
}

func TestTicketFlowOverHTTP(t *testing.T) {
	app := newTestApp(t)
	client := login(t, app, "client@example.com")
	support := login(t, app, "support@example.com")

	status, env := call(t, app, fiber.MethodPost, "/tickets", client, map[string]string{
		"title":       "VPN drops",
		"description": "The tunnel drops every ten minutes.",
		"priority":    "high",
		"category":    "network",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create ticket: status %d, error %+v", status, env.Error)
	}
	var ticket struct {
		ID         string  `json:"id"`
		Status     string  `json:"status"`
		AssigneeID *string `json:"assigneeId"`
	}
	if err := json.Unmarshal(env.Data, &ticket); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if ticket.Status != "new" || ticket.AssigneeID != nil {
		t.Fatalf("new ticket = %+v", ticket)
	}

	if status, env = call(t, app, fiber.MethodPost, "/tickets/"+ticket.ID+"/take", client, nil); status != fiber.StatusForbidden {
		t.Errorf("client take: status %d, want 403 (%+v)", status, env.Error)
	}

	status, env = call(t, app, fiber.MethodPost, "/tickets/"+ticket.ID+"/take", support, nil)
	if status != fiber.StatusOK {
		t.Fatalf("take: status %d, error %+v", status, env.Error)
	}
	if err := json.Unmarshal(env.Data, &ticket); err != nil {
		t.Fatalf("decode taken ticket: %v", err)
	}
	if ticket.Status != "in_progress" || ticket.AssigneeID == nil {
		t.Errorf("taken ticket = %+v, want in_progress with assignee", ticket)
	}

	status, env = call(t, app, fiber.MethodPost, "/tickets/"+ticket.ID+"/take", support, nil)
	if status != fiber.StatusConflict || env.Error == nil || env.Error.Code != "TICKET_ALREADY_TAKEN" {
		t.Errorf("second take: status %d, error %+v", status, env.Error)
	}

	status, env = call(t, app, fiber.MethodGet, "/notifications/unread-count", client, nil)
	if status != fiber.StatusOK {
		t.Fatalf("unread count: status %d", status)
	}
	var count struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &count); err != nil || count.Count == 0 {
		t.Errorf("client unread count = %s, want a notification about the take", env.Data)
	}
}

func TestVoteOnceOverHTTP(t *testing.T) {
	app := newTestApp(t)
	support := login(t, app, "support@example.com")
	client := login(t, app, "client@example.com")

	status, env := call(t, app, fiber.MethodPost, "/knowledge-base", support, map[string]any{
		"title":       "Reset a VPN token",
		"content":     "Open the portal and press reset.",
		"category":    "network",
		"isPublished": true,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create article: status %d, error %+v", status, env.Error)
	}
	var article struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &article); err != nil {
		t.Fatalf("decode article: %v", err)
	}

	path := "/knowledge-base/" + article.ID + "/vote"
	if status, env = call(t, app, fiber.MethodPost, path, client, map[string]bool{"isHelpful": true}); status != fiber.StatusOK {
		t.Fatalf("first vote: status %d, error %+v", status, env.Error)
	}
	status, env = call(t, app, fiber.MethodPost, path, client, map[string]bool{"isHelpful": false})
	if status != fiber.StatusConflict || env.Error == nil || env.Error.Code != "ALREADY_VOTED" {
		t.Fatalf("second vote: status %d, error %+v", status, env.Error)
	}

	status, env = call(t, app, fiber.MethodGet, "/knowledge-base/"+article.ID, client, nil)
	if status != fiber.StatusOK {
		t.Fatalf("get article: status %d", status)
	}
	var counters struct {
		HelpfulCount    int64 `json:"helpfulCount"`
		NotHelpfulCount int64 `json:"notHelpfulCount"`
	}
	if err := json.Unmarshal(env.Data, &counters); err != nil {
		t.Fatalf("decode counters: %v", err)
	}
	if counters.HelpfulCount != 1 || counters.NotHelpfulCount != 0 {
		t.Errorf("counters = %+v, want 1/0", counters)
	}
}

func TestErrorEnvelopes(t *testing.T) {
	app := newTestApp(t)
	client := login(t, app, "client@example.com")

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		body     any
		wantCode string
		status   int
	}{
		{"missing token", fiber.MethodGet, "/tickets", "", nil, "UNAUTHORIZED", fiber.StatusUnauthorized},
		{"garbage token", fiber.MethodGet, "/tickets", "not-a-jwt", nil, "UNAUTHORIZED", fiber.StatusUnauthorized},
		{"unknown route", fiber.MethodGet, "/nope", client, nil, "NOT_FOUND", fiber.StatusNotFound},
		{"unknown ticket", fiber.MethodGet, "/tickets/TK-999999", client, nil, "NOT_FOUND", fiber.StatusNotFound},
		{"missing title", fiber.MethodPost, "/tickets", client, map[string]string{"description": "d", "priority": "low"}, "VALIDATION_FAILED", fiber.StatusBadRequest},
		{"admin only", fiber.MethodGet, "/users", client, nil, "FORBIDDEN", fiber.StatusForbidden},
		{"bad login", fiber.MethodPost, "/auth/login", "", map[string]string{"email": "client@example.com", "password": "wrong"}, "UNAUTHORIZED", fiber.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, env := call(t, app, tc.method, tc.path, tc.token, tc.body)
			if status != tc.status {
				t.Errorf("status = %d, want %d", status, tc.status)
			}
			if env.Error == nil || env.Error.Code != tc.wantCode {
				t.Errorf("error = %+v, want code %s", env.Error, tc.wantCode)
			}
			if env.Data != nil {
				t.Errorf("data = %s, want absent on error", env.Data)
			}
		})
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app, "admin@example.com")

	if status, _ := call(t, app, fiber.MethodGet, "/auth/me", token, nil); status != fiber.StatusOK {
		t.Fatalf("me: status %d", status)
	}
	if status, _ := call(t, app, fiber.MethodPost, "/auth/logout", token, nil); status != fiber.StatusNoContent {
		t.Fatalf("logout: status %d", status)
	}
	if status, _ := call(t, app, fiber.MethodGet, "/auth/me", token, nil); status != fiber.StatusUnauthorized {
		t.Errorf("me after logout: status %d, want 401", status)
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		req := httptest.NewRequest(fiber.MethodGet, path, nil)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("GET %s: status %d, want 200", path, resp.StatusCode)
		}
	}
}

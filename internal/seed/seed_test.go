package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
)

const fixtureYAML = `
users:
  - email: Admin@Example.com
    password: adminPassword
    first_name: Ada
    last_name: Admin
    role: admin
  - email: support@example.com
    password: supportPassword
    first_name: Sam
    last_name: Support
    role: support
  - email: client@example.com
    password: clientPassword
    first_name: Cleo
    last_name: Client
    role: client
articles:
  - title: Reset your VPN token
    content: Open the portal and press reset.
    category: network
    tags: [vpn]
    author: support@example.com
    published: true
tickets:
  - title: Printer jams
    description: Second floor printer jams on every job.
    priority: high
    category: hardware
    client: client@example.com
  - title: Old laptop
    description: Replace the laptop.
    priority: low
    status: closed
    client: client@example.com
    assignee: support@example.com
`

func newSeeder(store *memory.Store) *Seeder {
	return &Seeder{
		Users:      store.Users(),
		Tickets:    store.Tickets(),
		Articles:   store.Articles(),
		BcryptCost: bcrypt.MinCost,
		Clock:      clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
}

func TestLoadAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	if err := os.WriteFile(path, []byte(fixtureYAML), 0o600); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := f.Validate(8); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	store := memory.NewStore()
	ctx := context.Background()
	res, err := newSeeder(store).Apply(ctx, f)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.UsersCreated != 3 || res.ArticlesCreated != 1 || res.TicketsCreated != 2 {
		t.Fatalf("Apply() result = %+v", res)
	}

	admin, err := store.Users().GetByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("admin lookup: %v", err)
	}
	if admin.Role != domain.RoleAdmin || !admin.IsActive {
		t.Errorf("admin = %+v, want active admin", admin)
	}
	if err := auth.ComparePassword(admin.PasswordHash, "adminPassword"); err != nil {
		t.Error("admin password hash does not match fixture password")
	}

	tickets, err := store.Tickets().List(ctx, repository.TicketFilter{})
	if err != nil {
		t.Fatalf("list tickets: %v", err)
	}
	for _, ticket := range tickets {
		if ticket.Title != "Old laptop" {
			continue
		}
		if ticket.Status != domain.TicketStatusClosed || ticket.ClosedAt == nil || ticket.ResolvedAt == nil {
			t.Errorf("closed fixture ticket = %+v, want closedAt and resolvedAt set", ticket)
		}
		if ticket.AssigneeID == nil {
			t.Error("closed fixture ticket has no assignee")
		}
	}

	again, err := newSeeder(store).Apply(ctx, f)
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if again.UsersCreated != 0 || again.UsersSkipped != 3 || again.ArticlesCreated != 0 || again.TicketsCreated != 0 {
		t.Errorf("second Apply() result = %+v, want nothing new", again)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("users:\n  - email: a@example.com\n    nickname: a\n"))
	if err == nil {
		t.Fatal("Parse() error = nil, want unknown field error")
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	f := &Fixtures{
		Users: []UserFixture{
			{Email: "c@example.com", Password: "short", Role: "client"},
			{Email: "c@example.com", Password: "longEnough", Role: "wizard"},
		},
		Articles: []ArticleFixture{{Title: "T", Content: "C", Author: "c@example.com"}},
		Tickets: []TicketFixture{
			{Title: "T", Description: "D", Priority: "urgent", Status: "open", Client: "nobody@example.com"},
		},
	}
	err := f.Validate(8)
	if err == nil {
		t.Fatal("Validate() error = nil, want problems")
	}
	for _, want := range []string{
		"password shorter than 8",
		"duplicate email",
		`unknown role "wizard"`,
		"is not a staff fixture user",
		`unknown status "open"`,
		"is not a fixture user",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q:\n%v", want, err)
		}
	}
}

// Package seed loads demo fixtures (users, articles, tickets) from YAML and
// inserts them through the repositories. Applying the same file twice is a no-op.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// Fixtures is the root of a fixture file.
type Fixtures struct {
	Users    []UserFixture    `yaml:"users"`
	Articles []ArticleFixture `yaml:"articles"`
	Tickets  []TicketFixture  `yaml:"tickets"`
}

// UserFixture describes an account. Active defaults to true.
type UserFixture struct {
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	Phone      string `yaml:"phone"`
	Role       string `yaml:"role"`
	Department string `yaml:"department"`
	Position   string `yaml:"position"`
	Active     *bool  `yaml:"active"`
}

// ArticleFixture describes a knowledge-base article. Author is an email.
type ArticleFixture struct {
	Title     string   `yaml:"title"`
	Content   string   `yaml:"content"`
	Category  string   `yaml:"category"`
	Tags      []string `yaml:"tags"`
	Author    string   `yaml:"author"`
	Published bool     `yaml:"published"`
}

// TicketFixture describes a ticket. Client and Assignee are emails.
type TicketFixture struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Priority    string `yaml:"priority"`
	Category    string `yaml:"category"`
	Status      string `yaml:"status"`
	Client      string `yaml:"client"`
	Assignee    string `yaml:"assignee"`
}

// Load reads and strictly decodes a fixture file. Unknown keys are errors.
func Load(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(data)
}

// Parse decodes fixture YAML.
func Parse(data []byte) (*Fixtures, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var f Fixtures
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// Validate checks enum values and cross references. All problems are reported together.
func (f *Fixtures) Validate(minPasswordLength int) error {
	var errs []error
	roles := make(map[string]domain.Role, len(f.Users))
	for i, u := range f.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			errs = append(errs, fmt.Errorf("users[%d]: email required", i))
			continue
		}
		if _, dup := roles[email]; dup {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate email %s", i, email))
		}
		role, ok := domain.ParseRole(u.Role)
		if !ok {
			errs = append(errs, fmt.Errorf("users[%d]: unknown role %q", i, u.Role))
		}
		if len(u.Password) < minPasswordLength {
			errs = append(errs, fmt.Errorf("users[%d]: password shorter than %d", i, minPasswordLength))
		}
		roles[email] = role
	}

	for i, a := range f.Articles {
		if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Content) == "" {
			errs = append(errs, fmt.Errorf("articles[%d]: title and content required", i))
		}
		if role, ok := roles[strings.ToLower(a.Author)]; !ok || !role.IsStaff() {
			errs = append(errs, fmt.Errorf("articles[%d]: author %q is not a staff fixture user", i, a.Author))
		}
	}

	for i, t := range f.Tickets {
		if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.Description) == "" {
			errs = append(errs, fmt.Errorf("tickets[%d]: title and description required", i))
		}
		if _, ok := domain.ParseTicketPriority(t.Priority); !ok {
			errs = append(errs, fmt.Errorf("tickets[%d]: unknown priority %q", i, t.Priority))
		}
		if t.Status != "" {
			if _, ok := domain.ParseTicketStatus(t.Status); !ok {
				errs = append(errs, fmt.Errorf("tickets[%d]: unknown status %q", i, t.Status))
			}
		}
		if _, ok := roles[strings.ToLower(t.Client)]; !ok {
			errs = append(errs, fmt.Errorf("tickets[%d]: client %q is not a fixture user", i, t.Client))
		}
		if t.Assignee != "" {
			if role, ok := roles[strings.ToLower(t.Assignee)]; !ok || !role.IsStaff() {
				errs = append(errs, fmt.Errorf("tickets[%d]: assignee %q is not a staff fixture user", i, t.Assignee))
			}
		}
	}
	return errors.Join(errs...)
}

// Result counts what Apply inserted.
type Result struct {
	UsersCreated    int
	UsersSkipped    int
	ArticlesCreated int
	TicketsCreated  int
}

// Seeder writes fixtures through the repositories.
type Seeder struct {
	Users      repository.UserRepository
	Tickets    repository.TicketRepository
	Articles   repository.ArticleRepository
	BcryptCost int
	Clock      clock.Clock
	Logger     *zap.Logger
}

// Apply inserts fixtures. Existing users (by email), articles (by title) and
// tickets (by client and title) are left alone.
func (s *Seeder) Apply(ctx context.Context, f *Fixtures) (Result, error) {
	var res Result
	clk := s.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	// Postgres keeps microseconds; the Update guard compares against the stored value.
	now := clk.Now().Truncate(time.Microsecond)

	ids := make(map[string]string, len(f.Users))
	for _, u := range f.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		existing, err := s.Users.GetByEmail(ctx, email)
		if err == nil {
			ids[email] = existing.ID
			res.UsersSkipped++
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return res, err
		}
		hash, err := auth.HashPassword(u.Password, s.BcryptCost)
		if err != nil {
			return res, err
		}
		role, _ := domain.ParseRole(u.Role)
		active := u.Active == nil || *u.Active
		user := &domain.User{
			ID:           uuid.NewString(),
			Email:        email,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Phone:        u.Phone,
			Role:         role,
			Department:   u.Department,
			Position:     u.Position,
			IsActive:     active,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.Users.Create(ctx, user); err != nil {
			return res, fmt.Errorf("create user %s: %w", email, err)
		}
		ids[email] = user.ID
		res.UsersCreated++
		logger.Info("seeded user", zap.String("email", email), zap.String("role", string(role)))
	}

	for _, a := range f.Articles {
		exists, err := s.articleExists(ctx, a.Title)
		if err != nil {
			return res, err
		}
		if exists {
			continue
		}
		article := &domain.Article{
			ID:          uuid.NewString(),
			Title:       a.Title,
			Content:     a.Content,
			Category:    a.Category,
			Tags:        a.Tags,
			AuthorID:    ids[strings.ToLower(a.Author)],
			IsPublished: a.Published,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Articles.Create(ctx, article); err != nil {
			return res, fmt.Errorf("create article %q: %w", a.Title, err)
		}
		res.ArticlesCreated++
	}

	for _, t := range f.Tickets {
		clientID := ids[strings.ToLower(t.Client)]
		exists, err := s.ticketExists(ctx, clientID, t.Title)
		if err != nil {
			return res, err
		}
		if exists {
			continue
		}
		priority, _ := domain.ParseTicketPriority(t.Priority)
		status := domain.TicketStatusNew
		if t.Status != "" {
			status, _ = domain.ParseTicketStatus(t.Status)
		}
		ticket := &domain.Ticket{
			Title:       t.Title,
			Description: t.Description,
			Status:      status,
			Priority:    priority,
			Category:    t.Category,
			ClientID:    clientID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if t.Assignee != "" {
			assignee := ids[strings.ToLower(t.Assignee)]
			ticket.AssigneeID = &assignee
		}
		if err := s.Tickets.Create(ctx, ticket); err != nil {
			return res, fmt.Errorf("create ticket %q: %w", t.Title, err)
		}
		// Create only writes the open columns; terminal timestamps go through Update.
		if status == domain.TicketStatusResolved || status == domain.TicketStatusClosed {
			created := ticket.UpdatedAt
			ticket.ResolvedAt = &now
			if status == domain.TicketStatusClosed {
				ticket.ClosedAt = &now
			}
			if err := s.Tickets.Update(ctx, ticket, created); err != nil {
				return res, fmt.Errorf("finish ticket %q: %w", t.Title, err)
			}
		}
		res.TicketsCreated++
	}
	return res, nil
}

func (s *Seeder) articleExists(ctx context.Context, title string) (bool, error) {
	list, err := s.Articles.List(ctx, repository.ArticleFilter{Search: &title})
	if err != nil {
		return false, err
	}
	for _, a := range list {
		if a.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (s *Seeder) ticketExists(ctx context.Context, clientID, title string) (bool, error) {
	list, err := s.Tickets.List(ctx, repository.TicketFilter{ClientID: &clientID, SearchTerm: &title})
	if err != nil {
		return false, err
	}
	for _, t := range list {
		if t.Title == title {
			return true, nil
		}
	}
	return false, nil
}

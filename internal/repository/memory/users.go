package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// UserRepository is the in-memory account table.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) emailTaken(email, exceptID string) bool {
	for id, u := range r.s.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.emailTaken(user.Email, "") {
		return repository.ErrDuplicateEmail
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepository) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return repository.ErrDuplicateEmail
	}
	updated := *user
	updated.CreatedAt = existing.CreatedAt
	updated.LastLoginAt = existing.LastLoginAt
	r.s.users[user.ID] = updated
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var term string
	if filter.Search != nil {
		term = strings.ToLower(strings.TrimSpace(*filter.Search))
	}

	var result []domain.User
	for _, u := range r.s.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && u.IsActive != *filter.Active {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(u.FirstName), term) &&
			!strings.Contains(strings.ToLower(u.LastName), term) &&
			!strings.Contains(strings.ToLower(u.Email), term) &&
			!strings.Contains(strings.ToLower(u.Department), term) {
			continue
		}
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	for _, t := range r.s.tickets {
		if t.ClientID == id {
			return repository.ErrUserInUse
		}
	}
	for key, t := range r.s.tickets {
		if t.AssigneeID != nil && *t.AssigneeID == id {
			t.AssigneeID = nil
			r.s.tickets[key] = t
		}
	}
	delete(r.s.users, id)
	return nil
}

func (r *UserRepository) TouchLogin(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLoginAt = &at
	r.s.users[id] = u
	return nil
}

// PendingUserRepository is the in-memory registration table.
type PendingUserRepository struct {
	s *Store
}

func (r *PendingUserRepository) Create(_ context.Context, pending *domain.PendingUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.pendingUsers {
		if strings.EqualFold(p.Email, pending.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	r.s.pendingUsers[pending.ID] = *pending
	return nil
}

func (r *PendingUserRepository) GetByID(_ context.Context, id string) (*domain.PendingUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.pendingUsers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *PendingUserRepository) GetByEmail(_ context.Context, email string) (*domain.PendingUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.pendingUsers {
		if strings.EqualFold(p.Email, email) {
			out := p
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *PendingUserRepository) List(_ context.Context, status *domain.RegistrationStatus) ([]domain.PendingUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []domain.PendingUser
	for _, p := range r.s.pendingUsers {
		if status != nil && p.Status != *status {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *PendingUserRepository) UpdateStatus(_ context.Context, id string, status domain.RegistrationStatus, decidedBy string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.pendingUsers[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Status != domain.RegistrationPending {
		return repository.ErrStaleState
	}
	by := decidedBy
	p.Status = status
	p.DecidedBy = &by
	p.DecidedAt = &at
	r.s.pendingUsers[id] = p
	return nil
}

func (r *PendingUserRepository) Reopen(_ context.Context, id string, from domain.RegistrationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.pendingUsers[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Status != from {
		return repository.ErrStaleState
	}
	p.Status = domain.RegistrationPending
	p.DecidedBy = nil
	p.DecidedAt = nil
	r.s.pendingUsers[id] = p
	return nil
}

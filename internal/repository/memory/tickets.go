package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// TicketRepository is the in-memory ticket table.
type TicketRepository struct {
	s *Store
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.AssigneeID = copyStringPtr(t.AssigneeID)
	if t.ResolvedAt != nil {
		v := *t.ResolvedAt
		t.ResolvedAt = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		t.ClosedAt = &v
	}
	t.Comments = nil
	return t
}

func (r *TicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.ticketSeq++
	ticket.ID = fmt.Sprintf("TK-%06d", r.s.ticketSeq)
	r.s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *TicketRepository) Update(_ context.Context, ticket *domain.Ticket, prevUpdatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if !existing.UpdatedAt.Equal(prevUpdatedAt) {
		return repository.ErrStaleState
	}
	updated := cloneTicket(*ticket)
	updated.ClientID = existing.ClientID
	updated.CreatedAt = existing.CreatedAt
	r.s.tickets[ticket.ID] = updated
	return nil
}

func (r *TicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneTicket(t)
	return &out, nil
}

func (r *TicketRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.tickets, id)
	delete(r.s.comments, id)
	return nil
}

func (r *TicketRepository) Claim(_ context.Context, id, assigneeID string, at time.Time) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if t.AssigneeID != nil || t.Status != domain.TicketStatusNew {
		return nil, repository.ErrTicketTaken
	}
	assignee := assigneeID
	t.AssigneeID = &assignee
	t.Status = domain.TicketStatusInProgress
	t.UpdatedAt = at
	r.s.tickets[id] = t

	out := cloneTicket(t)
	return &out, nil
}

func (r *TicketRepository) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []domain.Ticket
	for _, t := range r.s.tickets {
		if matchesTicket(t, filter) {
			result = append(result, cloneTicket(t))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matchesTicket(t domain.Ticket, f repository.TicketFilter) bool {
	if f.ClientID != nil && t.ClientID != *f.ClientID {
		return false
	}
	if f.Unassigned {
		if t.AssigneeID != nil {
			return false
		}
	} else if f.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *f.AssigneeID) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	if f.Category != nil && strings.TrimSpace(*f.Category) != "" &&
		!strings.EqualFold(t.Category, strings.TrimSpace(*f.Category)) {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.ID), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

// CommentRepository is the in-memory comment table.
type CommentRepository struct {
	s *Store
}

func (r *CommentRepository) Create(_ context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tickets[comment.TicketID]
	if !ok {
		return repository.ErrNotFound
	}
	t.UpdatedAt = comment.CreatedAt
	r.s.tickets[t.ID] = t
	r.s.comments[comment.TicketID] = append(r.s.comments[comment.TicketID], *comment)
	return nil
}

func (r *CommentRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	src := r.s.comments[ticketID]
	if len(src) == 0 {
		return nil, nil
	}
	out := make([]domain.Comment, len(src))
	copy(out, src)
	return out, nil
}

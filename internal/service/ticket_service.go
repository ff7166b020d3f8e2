package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets  repository.TicketRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	policy   TransitionPolicy
	clock    clock.Clock
	events   eventPublisher
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	Policy      TransitionPolicy
	Clock       clock.Clock
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    string
	// ClientID lets staff file a ticket on behalf of a client. Ignored for clients.
	ClientID *string
}

// TicketListFilter describes listing filters. AssigneeID "unassigned" selects
// tickets without an assignee.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	AssigneeID *string
	Category   *string
	Search     *string
	Limit      int
	Offset     int
}

// UnassignedKeyword is the assignee filter value for tickets nobody owns.
const UnassignedKeyword = "unassigned"

// TicketPatch is a partial update. AssigneeSet distinguishes "leave the
// assignee alone" from "set it to AssigneeID", where a nil AssigneeID unassigns.
type TicketPatch struct {
	Title       *string
	Description *string
	Category    *string
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	AssigneeSet bool
	AssigneeID  *string
}

func (p TicketPatch) isEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Status == nil && p.Priority == nil && !p.AssigneeSet
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &TicketService{
		tickets:  deps.TicketRepo,
		comments: deps.CommentRepo,
		users:    deps.UserRepo,
		policy:   deps.Policy,
		clock:    clk,
		events:   eventPublisher{dispatcher: deps.Dispatcher, clock: clk, logger: deps.Logger},
	}
}

// CreateTicket files a new ticket in status new with no assignee.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	fields := map[string]string{}
	if title == "" {
		fields["title"] = "required"
	}
	if description == "" {
		fields["description"] = "required"
	}
	priority, ok := domain.ParseTicketPriority(string(input.Priority))
	switch {
	case strings.TrimSpace(string(input.Priority)) == "":
		fields["priority"] = "required"
	case !ok:
		fields["priority"] = "must be one of low, medium, high, urgent"
	}

	clientID := actor.ID
	if actor.Role.IsStaff() && input.ClientID != nil && strings.TrimSpace(*input.ClientID) != "" {
		requested := strings.TrimSpace(*input.ClientID)
		if _, err := s.users.GetByID(ctx, requested); err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.MapError(err)
			}
			fields["clientId"] = "unknown user"
		}
		clientID = requested
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldValidationError(fields)
	}

	now := s.clock.Now()
	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusNew,
		Priority:    priority,
		Category:    strings.TrimSpace(input.Category),
		ClientID:    clientID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.Comments = []domain.Comment{}

	s.events.publish(ctx, events.Event{
		Type:      events.EventTicketCreated,
		RelatedID: ticket.ID,
		Actor:     actorOf(actor),
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Priority: ticket.Priority,
			ClientID: ticket.ClientID,
		},
	})
	return ticket, nil
}

// GetTicket returns a ticket with its comment thread. Clients only see their
// own tickets, never see internal comments, and get NotFound for anything else.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.attachComments(ctx, actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListTickets returns tickets newest first. Clients are scoped to their own tickets.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Category:   trimmedPtr(filter.Category),
		SearchTerm: trimmedPtr(filter.Search),
		Limit:      clampLimit(filter.Limit),
		Offset:     filter.Offset,
	}
	if filter.AssigneeID != nil {
		assignee := strings.TrimSpace(*filter.AssigneeID)
		if strings.EqualFold(assignee, UnassignedKeyword) {
			repoFilter.Unassigned = true
		} else if assignee != "" {
			repoFilter.AssigneeID = &assignee
		}
	}
	if !actor.Role.IsStaff() {
		self := actor.ID
		repoFilter.ClientID = &self
	}

	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// UpdateTicket applies a staff edit: fields, status, priority and assignee.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, patch TicketPatch) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only support staff can update tickets")
	}
	if patch.isEmpty() {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}

	fields := map[string]string{}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		fields["title"] = "must not be empty"
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		fields["description"] = "must not be empty"
	}
	var nextStatus *domain.TicketStatus
	if patch.Status != nil {
		parsed, ok := domain.ParseTicketStatus(string(*patch.Status))
		if !ok {
			fields["status"] = "must be one of new, in_progress, resolved, closed"
		}
		nextStatus = &parsed
	}
	var nextPriority *domain.TicketPriority
	if patch.Priority != nil {
		parsed, ok := domain.ParseTicketPriority(string(*patch.Priority))
		if !ok {
			fields["priority"] = "must be one of low, medium, high, urgent"
		}
		nextPriority = &parsed
	}
	var nextAssignee *string
	if patch.AssigneeSet && patch.AssigneeID != nil && strings.TrimSpace(*patch.AssigneeID) != "" {
		id := strings.TrimSpace(*patch.AssigneeID)
		if msg, err := checkAssignee(ctx, s.users, id); err != nil {
			return nil, err
		} else if msg != "" {
			fields["assigneeId"] = msg
		}
		nextAssignee = &id
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldValidationError(fields)
	}

	oldStatus := ticket.Status
	oldPriority := ticket.Priority
	if nextStatus != nil && !s.policy.Allows(actor.Role, oldStatus, *nextStatus) {
		return nil, apperrors.NewConflictWithCause(apperrors.CodeInvalidTransition,
			"status transition not allowed", nil,
			map[string]any{"from": oldStatus, "to": *nextStatus})
	}

	now := s.clock.Now()
	prevUpdatedAt := ticket.UpdatedAt
	if patch.Title != nil {
		ticket.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		ticket.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		ticket.Category = strings.TrimSpace(*patch.Category)
	}
	if nextPriority != nil {
		ticket.Priority = *nextPriority
	}

	assigneeChanged := false
	if patch.AssigneeSet {
		assigneeChanged = !sameAssignee(ticket.AssigneeID, nextAssignee)
		ticket.AssigneeID = nextAssignee
		// An explicit status in the same edit takes precedence over the
		// implicit advance.
		if nextAssignee != nil && oldStatus == domain.TicketStatusNew && nextStatus == nil {
			applyStatus(ticket, domain.TicketStatusInProgress, now)
		}
	}
	if nextStatus != nil && *nextStatus != oldStatus {
		applyStatus(ticket, *nextStatus, now)
	}
	ticket.UpdatedAt = now

	if err := s.tickets.Update(ctx, ticket, prevUpdatedAt); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, apperrors.NewConflict("ticket was changed by someone else; reload and retry",
				map[string]any{"ticket_id": ticketID})
		}
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	if ticket.Status != oldStatus || ticket.Priority != oldPriority || assigneeChanged {
		s.events.publish(ctx, events.Event{
			Type:      events.EventTicketUpdated,
			RelatedID: ticket.ID,
			Actor:     actorOf(actor),
			Payload: events.TicketUpdatedPayload{
				ClientID:       ticket.ClientID,
				Title:          ticket.Title,
				OldStatus:      oldStatus,
				NewStatus:      ticket.Status,
				OldPriority:    oldPriority,
				NewPriority:    ticket.Priority,
				AssigneeChange: assigneeChanged,
			},
		})
	}
	if assigneeChanged {
		s.events.publish(ctx, events.Event{
			Type:      events.EventTicketAssigned,
			RelatedID: ticket.ID,
			Actor:     actorOf(actor),
			Payload: events.TicketAssignedPayload{
				ClientID:   ticket.ClientID,
				Title:      ticket.Title,
				AssigneeID: ticket.AssigneeID,
			},
		})
	}

	if err := s.attachComments(ctx, actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// DeleteTicket permanently removes a ticket and its comments. Admin only.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.User, ticketID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("only admins can delete tickets")
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return nil
}

// AddComment appends a comment to the ticket thread. Client comments are never internal.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID, content string, isInternal bool) (*domain.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(content)
	if body == "" {
		return nil, apperrors.NewFieldValidationError(map[string]string{"content": "required"})
	}
	if !actor.Role.IsStaff() {
		isInternal = false
	}

	comment := &domain.Comment{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		AuthorID:   actor.ID,
		Content:    body,
		IsInternal: isInternal,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	s.events.publish(ctx, events.Event{
		Type:      events.EventTicketCommented,
		RelatedID: ticket.ID,
		Actor:     actorOf(actor),
		Payload: events.TicketCommentedPayload{
			ClientID:    ticket.ClientID,
			AssigneeID:  ticket.AssigneeID,
			Title:       ticket.Title,
			CommentID:   comment.ID,
			IsInternal:  comment.IsInternal,
			BodyPreview: stringPreview(comment.Content, 120),
		},
	})
	return comment, nil
}

// loadVisible fetches a ticket, masking other clients' tickets as NotFound.
func (s *TicketService) loadVisible(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	details := map[string]any{"ticket_id": ticketID}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", details)
	}
	if !actor.Role.IsStaff() && !ticket.IsOwnedBy(actor.ID) {
		return nil, apperrors.NewNotFound("ticket", details)
	}
	return ticket, nil
}

func (s *TicketService) attachComments(ctx context.Context, actor *domain.User, ticket *domain.Ticket) error {
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	visible := make([]domain.Comment, 0, len(comments))
	for _, c := range comments {
		if c.IsInternal && !actor.Role.IsStaff() {
			continue
		}
		visible = append(visible, c)
	}
	ticket.Comments = visible
	return nil
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

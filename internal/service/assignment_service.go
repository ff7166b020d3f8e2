package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AssignmentService handles ticket claiming and the assignee directory.
type AssignmentService struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
	clock   clock.Clock
	events  eventPublisher
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &AssignmentService{
		tickets: deps.TicketRepo,
		users:   deps.UserRepo,
		clock:   clk,
		events:  eventPublisher{dispatcher: deps.Dispatcher, clock: clk, logger: deps.Logger},
	}
}

// TakeTicket lets support staff claim an unassigned ticket in status new.
// The claim is a compare-and-set, so of two concurrent callers exactly one
// wins and the other gets a TICKET_ALREADY_TAKEN conflict.
func (s *AssignmentService) TakeTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only support staff can take tickets")
	}

	details := map[string]any{"ticket_id": ticketID}
	ticket, err := s.tickets.Claim(ctx, ticketID, actor.ID, s.clock.Now())
	if err != nil {
		if errors.Is(err, repository.ErrTicketTaken) {
			return nil, apperrors.NewConflictWithCause(apperrors.CodeTicketTaken,
				"ticket is already assigned or no longer new", err, details)
		}
		return nil, notFoundOr(err, "ticket", details)
	}

	s.events.publish(ctx, events.Event{
		Type:      events.EventTicketAssigned,
		RelatedID: ticket.ID,
		Actor:     actorOf(actor),
		Payload: events.TicketAssignedPayload{
			ClientID:   ticket.ClientID,
			Title:      ticket.Title,
			AssigneeID: ticket.AssigneeID,
			Claimed:    true,
		},
	})
	return ticket, nil
}

// ListAssignees returns active support and admin users, the valid assignment targets.
func (s *AssignmentService) ListAssignees(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only support staff can list assignees")
	}
	active := true
	users, err := s.users.List(ctx, repository.UserFilter{Active: &active})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	assignees := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.Role.IsStaff() {
			assignees = append(assignees, u)
		}
	}
	return assignees, nil
}

// checkAssignee returns a validation message when userID cannot hold tickets.
func checkAssignee(ctx context.Context, users repository.UserRepository, userID string) (string, error) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "unknown user", nil
		}
		return "", apperrors.MapError(err)
	}
	if !user.Role.IsStaff() {
		return "must be a support or admin user", nil
	}
	if !user.IsActive {
		return "user is deactivated", nil
	}
	return "", nil
}

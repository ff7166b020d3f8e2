package service

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// forwardTransitions are the edges of the normal ticket lifecycle. resolved
// may reopen into in_progress.
var forwardTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew:        {domain.TicketStatusInProgress},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:     {},
}

// TransitionPolicy decides which explicit status changes staff may make.
// When Strict is false any status may move to any other. When Strict is true
// support staff follow forwardTransitions and admins keep the override.
type TransitionPolicy struct {
	Strict bool
}

// Allows reports whether role may move a ticket from one status to another.
func (p TransitionPolicy) Allows(role domain.Role, from, to domain.TicketStatus) bool {
	if from == to || !p.Strict || role == domain.RoleAdmin {
		return true
	}
	for _, candidate := range forwardTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// applyStatus moves the ticket into next. resolvedAt and closedAt are
// stamped only on the first entry into their status.
func applyStatus(ticket *domain.Ticket, next domain.TicketStatus, now time.Time) {
	ticket.Status = next
	switch next {
	case domain.TicketStatusResolved:
		if ticket.ResolvedAt == nil {
			at := now
			ticket.ResolvedAt = &at
		}
	case domain.TicketStatusClosed:
		if ticket.ClosedAt == nil {
			at := now
			ticket.ClosedAt = &at
		}
	}
}

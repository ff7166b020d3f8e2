package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketUpdated    EventType = "ticket_updated"
	EventTicketAssigned   EventType = "ticket_assigned"
	EventTicketCommented  EventType = "ticket_commented"
	EventUserRegistered   EventType = "user_registered"
	EventArticlePublished EventType = "article_published"
)

// Actor identifies who triggered an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// IsStaff reports whether the actor is support or admin.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RelatedID string      `json:"related_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
	ClientID string                `json:"client_id"`
}

// TicketUpdatedPayload lists the fields a staff edit changed.
type TicketUpdatedPayload struct {
	ClientID       string                `json:"client_id"`
	Title          string                `json:"title"`
	OldStatus      domain.TicketStatus   `json:"old_status"`
	NewStatus      domain.TicketStatus   `json:"new_status"`
	OldPriority    domain.TicketPriority `json:"old_priority"`
	NewPriority    domain.TicketPriority `json:"new_priority"`
	AssigneeChange bool                  `json:"assignee_change"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	ClientID   string  `json:"client_id"`
	Title      string  `json:"title"`
	AssigneeID *string `json:"assignee_id,omitempty"`
	Claimed    bool    `json:"claimed"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	ClientID    string  `json:"client_id"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	Title       string  `json:"title"`
	CommentID   string  `json:"comment_id"`
	IsInternal  bool    `json:"is_internal"`
	BodyPreview string  `json:"body_preview"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// ArticlePublishedPayload payload.
type ArticlePublishedPayload struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

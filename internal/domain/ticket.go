package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusNew,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// ParseTicketStatus accepts both "in_progress" and "in-progress" spellings.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	for _, status := range TicketStatuses {
		if string(status) == normalized {
			return status, true
		}
	}
	return "", false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketPriorities lists every priority from lowest to highest.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// ParseTicketPriority validates a priority value.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, priority := range TicketPriorities {
		if string(priority) == normalized {
			return priority, true
		}
	}
	return "", false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	Category    string
	ClientID    string
	AssigneeID  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
	ClosedAt    *time.Time
	Comments    []Comment
}

// IsOwnedBy reports whether userID is the requester.
func (t *Ticket) IsOwnedBy(userID string) bool {
	return t.ClientID == userID
}

// Comment is a chronological entry in a ticket thread.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	Content    string
	IsInternal bool
	CreatedAt  time.Time
}

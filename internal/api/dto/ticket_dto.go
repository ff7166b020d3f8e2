package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NullableString tells an absent JSON field apart from an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON is only invoked when the field is present.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// CreateTicketRequest payload. ClientID is honored for staff only.
type CreateTicketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Category    string  `json:"category"`
	ClientID    *string `json:"clientId"`
}

// UpdateTicketRequest is a partial update; "assigneeId": null unassigns.
type UpdateTicketRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Category    *string        `json:"category"`
	Status      *string        `json:"status"`
	Priority    *string        `json:"priority"`
	AssigneeID  NullableString `json:"assigneeId"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"isInternal"`
}

// TicketSummary is the list representation.
type TicketSummary struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    string                `json:"category"`
	ClientID    string                `json:"clientId"`
	AssigneeID  *string               `json:"assigneeId"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
	ResolvedAt  *time.Time            `json:"resolvedAt"`
	ClosedAt    *time.Time            `json:"closedAt"`
}

// TicketDetailResponse adds the visible comment thread.
type TicketDetailResponse struct {
	TicketSummary
	Comments []CommentResponse `json:"comments"`
}

// CommentResponse represents a thread entry.
type CommentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticketId"`
	AuthorID   string    `json:"authorId"`
	Content    string    `json:"content"`
	IsInternal bool      `json:"isInternal"`
	CreatedAt  time.Time `json:"createdAt"`
}

package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateArticleRequest payload.
type CreateArticleRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	IsPublished bool     `json:"isPublished"`
}

// UpdateArticleRequest is a partial article update.
type UpdateArticleRequest struct {
	Title       *string   `json:"title"`
	Content     *string   `json:"content"`
	Category    *string   `json:"category"`
	Tags        *[]string `json:"tags"`
	IsPublished *bool     `json:"isPublished"`
}

// VoteRequest carries the reader's verdict.
type VoteRequest struct {
	IsHelpful *bool `json:"isHelpful"`
}

// ArticleResponse represents a knowledge-base article.
type ArticleResponse struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Content         string           `json:"content"`
	Category        string           `json:"category"`
	Tags            []string         `json:"tags"`
	AuthorID        string           `json:"authorId"`
	IsPublished     bool             `json:"isPublished"`
	Views           int64            `json:"views"`
	HelpfulCount    int64            `json:"helpfulCount"`
	NotHelpfulCount int64            `json:"notHelpfulCount"`
	UserVote        *domain.VoteKind `json:"userVote,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

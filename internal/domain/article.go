package domain

import "time"

// VoteKind is a reader's verdict on a knowledge-base article.
type VoteKind string

const (
	VoteHelpful    VoteKind = "helpful"
	VoteNotHelpful VoteKind = "not_helpful"
)

// VoteKindFor maps the boolean API input onto a VoteKind.
func VoteKindFor(isHelpful bool) VoteKind {
	if isHelpful {
		return VoteHelpful
	}
	return VoteNotHelpful
}

// Article is a knowledge-base entry with its vote counters.
type Article struct {
	ID              string
	Title           string
	Content         string
	Category        string
	Tags            []string
	AuthorID        string
	IsPublished     bool
	Views           int64
	HelpfulCount    int64
	NotHelpfulCount int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

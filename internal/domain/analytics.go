package domain

import "time"

// AnalyticsReport aggregates helpdesk activity for a time range.
type AnalyticsReport struct {
	TimeRange     string             `json:"timeRange"`
	Since         time.Time          `json:"since"`
	GeneratedAt   time.Time          `json:"generatedAt"`
	Tickets       TicketStats        `json:"tickets"`
	Users         UserStats          `json:"users"`
	TopCategories []CategoryStat     `json:"topCategories"`
	Team          []TeamMemberStat   `json:"team"`
	KnowledgeBase KnowledgeBaseStats `json:"knowledgeBase"`
}

// TicketStats counts tickets created in range.
type TicketStats struct {
	Total      int                    `json:"total"`
	ByStatus   map[TicketStatus]int   `json:"byStatus"`
	ByPriority map[TicketPriority]int `json:"byPriority"`
}

// UserStats counts accounts by role and activity.
type UserStats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Clients int `json:"clients"`
	Support int `json:"support"`
	Admins  int `json:"admins"`
}

// CategoryStat is one row of the top categories table.
type CategoryStat struct {
	Category    string  `json:"category"`
	TicketCount int     `json:"ticketCount"`
	Percentage  float64 `json:"percentage"`
}

// TeamMemberStat summarizes a staff member's workload.
type TeamMemberStat struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Assigned   int    `json:"assigned"`
	Resolved   int    `json:"resolved"`
	Efficiency int    `json:"efficiency"`
}

// KnowledgeBaseStats sums published article counters.
type KnowledgeBaseStats struct {
	TotalArticles        int   `json:"totalArticles"`
	PublishedArticles    int   `json:"publishedArticles"`
	TotalViews           int64 `json:"totalViews"`
	TotalHelpfulVotes    int64 `json:"totalHelpfulVotes"`
	TotalNotHelpfulVotes int64 `json:"totalNotHelpfulVotes"`
}

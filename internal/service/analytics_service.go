package service

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	defaultTimeRange     = "30d"
	topCategoryLimit     = 5
	uncategorized        = "uncategorized"
	analyticsCachePrefix = "helpdesk:analytics:"
)

var timeRanges = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
}

// SnapshotCache stores serialized reports. persistence.Redis satisfies it.
type SnapshotCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// AnalyticsService builds admin dashboards from tickets, users and articles.
type AnalyticsService struct {
	tickets  repository.TicketRepository
	users    repository.UserRepository
	articles repository.ArticleRepository
	cache    SnapshotCache
	cacheTTL time.Duration
	clock    clock.Clock
	logger   *zap.Logger
}

// AnalyticsDependencies bundles collaborators. Cache may be nil.
type AnalyticsDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	ArticleRepo repository.ArticleRepository
	Cache       SnapshotCache
	CacheTTL    time.Duration
	Clock       clock.Clock
	Logger      *zap.Logger
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(deps AnalyticsDependencies) *AnalyticsService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		tickets:  deps.TicketRepo,
		users:    deps.UserRepo,
		articles: deps.ArticleRepo,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		clock:    clk,
		logger:   logger,
	}
}

// Report returns the dashboard for timeRange (7d, 30d, 90d or 1y; empty means 30d).
func (s *AnalyticsService) Report(ctx context.Context, actor *domain.User, timeRange string) (*domain.AnalyticsReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	timeRange = strings.TrimSpace(timeRange)
	if timeRange == "" {
		timeRange = defaultTimeRange
	}
	window, ok := timeRanges[timeRange]
	if !ok {
		return nil, apperrors.NewFieldValidationError(map[string]string{
			"timeRange": "must be one of 7d, 30d, 90d, 1y",
		})
	}

	key := analyticsCachePrefix + timeRange
	if report := s.cached(ctx, key); report != nil {
		return report, nil
	}

	report, err := s.build(ctx, timeRange, window)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, report)
	return report, nil
}

func (s *AnalyticsService) build(ctx context.Context, timeRange string, window time.Duration) (*domain.AnalyticsReport, error) {
	now := s.clock.Now()
	since := now.Add(-window)

	tickets, err := s.tickets.List(ctx, repository.TicketFilter{CreatedFrom: &since})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	users, err := s.users.List(ctx, repository.UserFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	articles, err := s.articles.List(ctx, repository.ArticleFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &domain.AnalyticsReport{
		TimeRange:     timeRange,
		Since:         since,
		GeneratedAt:   now,
		Tickets:       ticketStats(tickets),
		Users:         userStats(users),
		TopCategories: topCategories(tickets, topCategoryLimit),
		Team:          teamStats(users, tickets),
		KnowledgeBase: knowledgeStats(articles),
	}, nil
}

func (s *AnalyticsService) cached(ctx context.Context, key string) *domain.AnalyticsReport {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	var report domain.AnalyticsReport
	if err := json.Unmarshal(raw, &report); err != nil {
		s.logger.Warn("discarding unreadable analytics snapshot", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &report
}

func (s *AnalyticsService) store(ctx context.Context, key string, report *domain.AnalyticsReport) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		s.logger.Warn("failed to encode analytics snapshot", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache analytics snapshot", zap.String("key", key), zap.Error(err))
	}
}

func ticketStats(tickets []domain.Ticket) domain.TicketStats {
	stats := domain.TicketStats{
		Total:      len(tickets),
		ByStatus:   make(map[domain.TicketStatus]int, len(domain.TicketStatuses)),
		ByPriority: make(map[domain.TicketPriority]int, len(domain.TicketPriorities)),
	}
	for _, status := range domain.TicketStatuses {
		stats.ByStatus[status] = 0
	}
	for _, priority := range domain.TicketPriorities {
		stats.ByPriority[priority] = 0
	}
	for _, t := range tickets {
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
	}
	return stats
}

func userStats(users []domain.User) domain.UserStats {
	stats := domain.UserStats{Total: len(users)}
	for _, u := range users {
		if u.IsActive {
			stats.Active++
		}
		switch u.Role {
		case domain.RoleClient:
			stats.Clients++
		case domain.RoleSupport:
			stats.Support++
		case domain.RoleAdmin:
			stats.Admins++
		}
	}
	return stats
}

// topCategories ranks categories by ticket count, ties broken by name.
func topCategories(tickets []domain.Ticket, limit int) []domain.CategoryStat {
	counts := make(map[string]int)
	for _, t := range tickets {
		category := strings.TrimSpace(t.Category)
		if category == "" {
			category = uncategorized
		}
		counts[category]++
	}
	out := make([]domain.CategoryStat, 0, len(counts))
	for category, n := range counts {
		out = append(out, domain.CategoryStat{
			Category:    category,
			TicketCount: n,
			Percentage:  math.Round(float64(n)*1000/float64(len(tickets))) / 10,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TicketCount != out[j].TicketCount {
			return out[i].TicketCount > out[j].TicketCount
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// teamStats reports every active support or admin user, including idle ones.
func teamStats(users []domain.User, tickets []domain.Ticket) []domain.TeamMemberStat {
	type tally struct{ assigned, resolved int }
	byAssignee := make(map[string]*tally)
	for _, t := range tickets {
		if t.AssigneeID == nil {
			continue
		}
		entry := byAssignee[*t.AssigneeID]
		if entry == nil {
			entry = &tally{}
			byAssignee[*t.AssigneeID] = entry
		}
		entry.assigned++
		if t.Status == domain.TicketStatusResolved || t.Status == domain.TicketStatusClosed {
			entry.resolved++
		}
	}

	out := make([]domain.TeamMemberStat, 0)
	for i := range users {
		u := &users[i]
		if !u.IsActive || !u.Role.IsStaff() {
			continue
		}
		stat := domain.TeamMemberStat{UserID: u.ID, Name: u.FullName()}
		if entry := byAssignee[u.ID]; entry != nil {
			stat.Assigned = entry.assigned
			stat.Resolved = entry.resolved
			stat.Efficiency = int(math.Round(float64(entry.resolved) * 100 / float64(entry.assigned)))
		}
		out = append(out, stat)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Resolved != out[j].Resolved {
			return out[i].Resolved > out[j].Resolved
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func knowledgeStats(articles []domain.Article) domain.KnowledgeBaseStats {
	stats := domain.KnowledgeBaseStats{TotalArticles: len(articles)}
	for _, a := range articles {
		if !a.IsPublished {
			continue
		}
		stats.PublishedArticles++
		stats.TotalViews += a.Views
		stats.TotalHelpfulVotes += a.HelpfulCount
		stats.TotalNotHelpfulVotes += a.NotHelpfulCount
	}
	return stats
}

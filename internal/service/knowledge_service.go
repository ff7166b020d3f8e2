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

// KnowledgeService manages knowledge-base articles and their vote ledger.
type KnowledgeService struct {
	articles repository.ArticleRepository
	clock    clock.Clock
	events   eventPublisher
}

// KnowledgeDependencies bundles collaborators.
type KnowledgeDependencies struct {
	ArticleRepo repository.ArticleRepository
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
}

// ArticleListFilter narrows article listings. Drafts are only returned to staff.
type ArticleListFilter struct {
	Search        *string
	Category      *string
	IncludeDrafts bool
}

// ArticleInput describes a new article.
type ArticleInput struct {
	Title       string
	Content     string
	Category    string
	Tags        []string
	IsPublished bool
}

// ArticlePatch is a partial article update.
type ArticlePatch struct {
	Title       *string
	Content     *string
	Category    *string
	Tags        *[]string
	IsPublished *bool
}

// ArticleView is an article together with the caller's vote, if any.
type ArticleView struct {
	Article  *domain.Article
	UserVote *domain.VoteKind
}

// NewKnowledgeService constructs the service.
func NewKnowledgeService(deps KnowledgeDependencies) *KnowledgeService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &KnowledgeService{
		articles: deps.ArticleRepo,
		clock:    clk,
		events:   eventPublisher{dispatcher: deps.Dispatcher, clock: clk, logger: deps.Logger},
	}
}

// ListArticles returns published articles, plus drafts when staff ask for them.
func (s *KnowledgeService) ListArticles(ctx context.Context, actor *domain.User, filter ArticleListFilter) ([]domain.Article, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	list, err := s.articles.List(ctx, repository.ArticleFilter{
		Search:        trimmedPtr(filter.Search),
		Category:      trimmedPtr(filter.Category),
		PublishedOnly: !(filter.IncludeDrafts && actor.Role.IsStaff()),
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if list == nil {
		list = []domain.Article{}
	}
	return list, nil
}

// GetArticle loads an article for reading and counts the view.
func (s *KnowledgeService) GetArticle(ctx context.Context, actor *domain.User, articleID string) (*ArticleView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	article, err := s.loadReadable(ctx, actor, articleID)
	if err != nil {
		return nil, err
	}
	views, err := s.articles.IncrementViews(ctx, article.ID)
	if err != nil {
		return nil, notFoundOr(err, "article", map[string]any{"article_id": articleID})
	}
	article.Views = views

	view := &ArticleView{Article: article}
	kind, voted, err := s.articles.UserVote(ctx, article.ID, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if voted {
		view.UserVote = &kind
	}
	return view, nil
}

// CreateArticle adds an article. Support and admin only.
func (s *KnowledgeService) CreateArticle(ctx context.Context, actor *domain.User, input ArticleInput) (*domain.Article, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only support staff can write articles")
	}
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	fields := map[string]string{}
	if title == "" {
		fields["title"] = "required"
	}
	if content == "" {
		fields["content"] = "required"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldValidationError(fields)
	}

	now := s.clock.Now()
	article := &domain.Article{
		ID:          uuid.NewString(),
		Title:       title,
		Content:     content,
		Category:    strings.TrimSpace(input.Category),
		Tags:        normalizeTags(input.Tags),
		AuthorID:    actor.ID,
		IsPublished: input.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, apperrors.MapError(err)
	}
	if article.IsPublished {
		s.publishArticle(ctx, actor, article)
	}
	return article, nil
}

// UpdateArticle edits an article. Only its author or an admin may edit.
func (s *KnowledgeService) UpdateArticle(ctx context.Context, actor *domain.User, articleID string, patch ArticlePatch) (*domain.Article, error) {
	article, err := s.loadEditable(ctx, actor, articleID)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		fields["title"] = "must not be empty"
	}
	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		fields["content"] = "must not be empty"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldValidationError(fields)
	}

	wasPublished := article.IsPublished
	if patch.Title != nil {
		article.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		article.Content = strings.TrimSpace(*patch.Content)
	}
	if patch.Category != nil {
		article.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Tags != nil {
		article.Tags = normalizeTags(*patch.Tags)
	}
	if patch.IsPublished != nil {
		article.IsPublished = *patch.IsPublished
	}
	article.UpdatedAt = s.clock.Now()

	if err := s.articles.Update(ctx, article); err != nil {
		return nil, notFoundOr(err, "article", map[string]any{"article_id": articleID})
	}
	if article.IsPublished && !wasPublished {
		s.publishArticle(ctx, actor, article)
	}
	return article, nil
}

// DeleteArticle removes an article and its votes. Only its author or an admin may delete.
func (s *KnowledgeService) DeleteArticle(ctx context.Context, actor *domain.User, articleID string) error {
	if _, err := s.loadEditable(ctx, actor, articleID); err != nil {
		return err
	}
	if err := s.articles.Delete(ctx, articleID); err != nil {
		return notFoundOr(err, "article", map[string]any{"article_id": articleID})
	}
	return nil
}

// Vote records the caller's helpful or not-helpful verdict. Each user votes
// once per article, ever; a repeat is rejected with ALREADY_VOTED and the
// counters stay untouched.
func (s *KnowledgeService) Vote(ctx context.Context, actor *domain.User, articleID string, isHelpful bool) (*domain.Article, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := s.loadReadable(ctx, actor, articleID); err != nil {
		return nil, err
	}
	details := map[string]any{"article_id": articleID}
	article, err := s.articles.Vote(ctx, articleID, actor.ID, domain.VoteKindFor(isHelpful), s.clock.Now())
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyVoted) {
			return nil, apperrors.NewConflictWithCause(apperrors.CodeAlreadyVoted,
				"you have already voted on this article", err, details)
		}
		return nil, notFoundOr(err, "article", details)
	}
	return article, nil
}

// loadReadable hides drafts from clients.
func (s *KnowledgeService) loadReadable(ctx context.Context, actor *domain.User, articleID string) (*domain.Article, error) {
	details := map[string]any{"article_id": articleID}
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return nil, notFoundOr(err, "article", details)
	}
	if !article.IsPublished && !actor.Role.IsStaff() {
		return nil, apperrors.NewNotFound("article", details)
	}
	return article, nil
}

func (s *KnowledgeService) loadEditable(ctx context.Context, actor *domain.User, articleID string) (*domain.Article, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	article, err := s.loadReadable(ctx, actor, articleID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only support staff can edit articles")
	}
	if actor.Role != domain.RoleAdmin && article.AuthorID != actor.ID {
		return nil, apperrors.NewForbidden("only the author or an admin can change this article")
	}
	return article, nil
}

func (s *KnowledgeService) publishArticle(ctx context.Context, actor *domain.User, article *domain.Article) {
	s.events.publish(ctx, events.Event{
		Type:      events.EventArticlePublished,
		RelatedID: article.ID,
		Actor:     actorOf(actor),
		Payload: events.ArticlePublishedPayload{
			Title:    article.Title,
			Category: article.Category,
		},
	})
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

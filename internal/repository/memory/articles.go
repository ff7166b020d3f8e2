package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// ArticleRepository is the in-memory knowledge-base table.
type ArticleRepository struct {
	s *Store
}

func cloneArticle(a domain.Article) domain.Article {
	if a.Tags != nil {
		a.Tags = append([]string(nil), a.Tags...)
	}
	return a
}

func voteKey(articleID, userID string) string {
	return articleID + "|" + userID
}

func (r *ArticleRepository) Create(_ context.Context, a *domain.Article) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := cloneArticle(*a)
	stored.Views, stored.HelpfulCount, stored.NotHelpfulCount = 0, 0, 0
	r.s.articles[a.ID] = stored
	return nil
}

func (r *ArticleRepository) Update(_ context.Context, a *domain.Article) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.articles[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Title = a.Title
	existing.Content = a.Content
	existing.Category = a.Category
	existing.Tags = append([]string(nil), a.Tags...)
	existing.IsPublished = a.IsPublished
	existing.UpdatedAt = a.UpdatedAt
	r.s.articles[a.ID] = existing
	return nil
}

func (r *ArticleRepository) GetByID(_ context.Context, id string) (*domain.Article, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.articles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneArticle(a)
	return &out, nil
}

func (r *ArticleRepository) List(_ context.Context, filter repository.ArticleFilter) ([]domain.Article, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var term, category string
	if filter.Search != nil {
		term = strings.ToLower(strings.TrimSpace(*filter.Search))
	}
	if filter.Category != nil {
		category = strings.TrimSpace(*filter.Category)
	}

	var result []domain.Article
	for _, a := range r.s.articles {
		if filter.PublishedOnly && !a.IsPublished {
			continue
		}
		if category != "" && !strings.EqualFold(a.Category, category) {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(a.Title), term) &&
			!strings.Contains(strings.ToLower(a.Content), term) &&
			!strings.Contains(strings.ToLower(a.Category), term) {
			continue
		}
		result = append(result, cloneArticle(a))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (r *ArticleRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.articles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.articles, id)
	prefix := id + "|"
	for key := range r.s.votes {
		if strings.HasPrefix(key, prefix) {
			delete(r.s.votes, key)
		}
	}
	return nil
}

func (r *ArticleRepository) IncrementViews(_ context.Context, id string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.articles[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	a.Views++
	r.s.articles[id] = a
	return a.Views, nil
}

func (r *ArticleRepository) Vote(_ context.Context, articleID, userID string, kind domain.VoteKind, _ time.Time) (*domain.Article, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.articles[articleID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	key := voteKey(articleID, userID)
	if _, voted := r.s.votes[key]; voted {
		return nil, repository.ErrAlreadyVoted
	}
	r.s.votes[key] = kind
	if kind == domain.VoteHelpful {
		a.HelpfulCount++
	} else {
		a.NotHelpfulCount++
	}
	r.s.articles[articleID] = a

	out := cloneArticle(a)
	return &out, nil
}

func (r *ArticleRepository) UserVote(_ context.Context, articleID, userID string) (domain.VoteKind, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kind, ok := r.s.votes[voteKey(articleID, userID)]
	return kind, ok, nil
}

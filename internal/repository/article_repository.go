package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ArticleFilter captures knowledge-base search parameters.
type ArticleFilter struct {
	Search        *string
	Category      *string
	PublishedOnly bool
}

// ArticleRepository persists knowledge-base articles and their vote ledger.
type ArticleRepository interface {
	Create(ctx context.Context, article *domain.Article) error
	Update(ctx context.Context, article *domain.Article) error
	GetByID(ctx context.Context, id string) (*domain.Article, error)
	List(ctx context.Context, filter ArticleFilter) ([]domain.Article, error)
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) (int64, error)
	// Vote records userID's verdict and bumps the matching counter atomically.
	// A second vote by the same user returns ErrAlreadyVoted and changes nothing.
	Vote(ctx context.Context, articleID, userID string, kind domain.VoteKind, at time.Time) (*domain.Article, error)
	UserVote(ctx context.Context, articleID, userID string) (domain.VoteKind, bool, error)
}

const articleColumns = `id, title, content, category, tags, author_id, is_published, views,
       helpful_count, not_helpful_count, created_at, updated_at`

type articleRepository struct {
	pool *pgxpool.Pool
}

// NewArticleRepository returns a Postgres-backed implementation.
func NewArticleRepository(pool *pgxpool.Pool) ArticleRepository {
	return &articleRepository{pool: pool}
}

func (r *articleRepository) Create(ctx context.Context, a *domain.Article) error {
	const query = `
        INSERT INTO articles (id, title, content, category, tags, author_id, is_published, views,
            helpful_count, not_helpful_count, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,0,0,0,$8,$9)`
	_, err := r.pool.Exec(ctx, query, a.ID, a.Title, a.Content, a.Category, a.Tags, a.AuthorID, a.IsPublished, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *articleRepository) Update(ctx context.Context, a *domain.Article) error {
	const query = `
        UPDATE articles SET title=$1, content=$2, category=$3, tags=$4, is_published=$5, updated_at=$6
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query, a.Title, a.Content, a.Category, a.Tags, a.IsPublished, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *articleRepository) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	return scanArticle(r.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id=$1`, id))
}

func (r *articleRepository) List(ctx context.Context, filter ArticleFilter) ([]domain.Article, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.PublishedOnly {
		clauses = append(clauses, "is_published=TRUE")
	}
	if filter.Category != nil && strings.TrimSpace(*filter.Category) != "" {
		args = append(args, strings.ToLower(strings.TrimSpace(*filter.Category)))
		clauses = append(clauses, fmt.Sprintf("LOWER(category)=$%d", len(args)))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.Search))+"%")
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(content) LIKE %s OR LOWER(category) LIKE %s)", p, p, p))
	}

	query := fmt.Sprintf(`SELECT %s FROM articles WHERE %s ORDER BY updated_at DESC`, articleColumns, strings.Join(clauses, " AND "))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *articleRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM articles WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *articleRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	var views int64
	err := r.pool.QueryRow(ctx, `UPDATE articles SET views=views+1 WHERE id=$1 RETURNING views`, id).Scan(&views)
	return views, err
}

func (r *articleRepository) Vote(ctx context.Context, articleID, userID string, kind domain.VoteKind, at time.Time) (*domain.Article, error) {
	counter := "helpful_count"
	if kind == domain.VoteNotHelpful {
		counter = "not_helpful_count"
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, `
        INSERT INTO article_votes (article_id, user_id, kind, created_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (article_id, user_id) DO NOTHING`, articleID, userID, kind, at)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, ErrAlreadyVoted
	}

	query := fmt.Sprintf(`UPDATE articles SET %s=%s+1 WHERE id=$1 RETURNING %s`, counter, counter, articleColumns)
	article, err := scanArticle(tx.QueryRow(ctx, query, articleID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return article, nil
}

func (r *articleRepository) UserVote(ctx context.Context, articleID, userID string) (domain.VoteKind, bool, error) {
	var kind domain.VoteKind
	err := r.pool.QueryRow(ctx, `SELECT kind FROM article_votes WHERE article_id=$1 AND user_id=$2`, articleID, userID).Scan(&kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return kind, true, nil
}

func scanArticle(row rowScanner) (*domain.Article, error) {
	var a domain.Article
	if err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Content,
		&a.Category,
		&a.Tags,
		&a.AuthorID,
		&a.IsPublished,
		&a.Views,
		&a.HelpfulCount,
		&a.NotHelpfulCount,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

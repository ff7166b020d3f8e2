package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NotificationRepository persists in-app notifications. includeBroadcast
// widens every read to rows addressed to domain.BroadcastRecipient.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListForUser(ctx context.Context, userID string, includeBroadcast, unreadOnly bool, limit int) ([]domain.Notification, error)
	// MarkRead is idempotent; it returns ErrNotFound when the notification is not visible to userID.
	MarkRead(ctx context.Context, id, userID string, includeBroadcast bool) error
	MarkAllRead(ctx context.Context, userID string, includeBroadcast bool) (int64, error)
	CountUnread(ctx context.Context, userID string, includeBroadcast bool) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository returns a Postgres-backed implementation.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func recipientClause(includeBroadcast bool) string {
	if includeBroadcast {
		return fmt.Sprintf("(user_id=$1 OR user_id='%s')", domain.BroadcastRecipient)
	}
	return "user_id=$1"
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (id, user_id, type, title, message, related_id, is_read, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Message, n.RelatedID, n.IsRead, n.CreatedAt)
	return err
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string, includeBroadcast, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `SELECT id, user_id, type, title, message, related_id, is_read, created_at
              FROM notifications WHERE ` + recipientClause(includeBroadcast)
	if unreadOnly {
		query += ` AND is_read=FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.RelatedID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string, includeBroadcast bool) error {
	query := `UPDATE notifications SET is_read=TRUE WHERE id=$2 AND ` + recipientClause(includeBroadcast)
	cmd, err := r.pool.Exec(ctx, query, userID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string, includeBroadcast bool) (int64, error) {
	query := `UPDATE notifications SET is_read=TRUE WHERE is_read=FALSE AND ` + recipientClause(includeBroadcast)
	cmd, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string, includeBroadcast bool) (int64, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE is_read=FALSE AND ` + recipientClause(includeBroadcast)
	var count int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

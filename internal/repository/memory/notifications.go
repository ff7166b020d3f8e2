package memory

import (
	"context"
	"sort"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// NotificationRepository is the in-memory notification table.
type NotificationRepository struct {
	s *Store
}

func visibleTo(n domain.Notification, userID string, includeBroadcast bool) bool {
	return n.UserID == userID || (includeBroadcast && n.IsBroadcast())
}

func (r *NotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r *NotificationRepository) ListForUser(_ context.Context, userID string, includeBroadcast, unreadOnly bool, limit int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []domain.Notification
	for _, n := range r.s.notifications {
		if !visibleTo(n, userID, includeBroadcast) || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, n)
	}
	// Newest first; insertion order breaks timestamp ties.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, id, userID string, includeBroadcast bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.notifications {
		n := &r.s.notifications[i]
		if n.ID == id && visibleTo(*n, userID, includeBroadcast) {
			n.IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, userID string, includeBroadcast bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var changed int64
	for i := range r.s.notifications {
		n := &r.s.notifications[i]
		if !n.IsRead && visibleTo(*n, userID, includeBroadcast) {
			n.IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (r *NotificationRepository) CountUnread(_ context.Context, userID string, includeBroadcast bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	for _, n := range r.s.notifications {
		if !n.IsRead && visibleTo(n, userID, includeBroadcast) {
			count++
		}
	}
	return count, nil
}

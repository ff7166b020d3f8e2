package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// NotificationService turns domain events into in-app notifications and
// serves the recipient's read API.
type NotificationService struct {
	dispatcher    events.Dispatcher
	notifications repository.NotificationRepository
	users         repository.UserRepository
	clock         clock.Clock
	logger        *zap.Logger
	cfg           config.NotificationConfig
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher       events.Dispatcher
	NotificationRepo repository.NotificationRepository
	// UserRepo, when set, lets article notices reach clients, who do not see broadcasts.
	UserRepo         repository.UserRepository
	Clock            clock.Clock
	Logger           *zap.Logger
	Config           config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:    deps.Dispatcher,
		notifications: deps.NotificationRepo,
		users:         deps.UserRepo,
		clock:         clk,
		logger:        logger,
		cfg:           deps.Config,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleTicketUpdated)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketCommented, n.handleTicketCommented)
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventArticlePublished, n.handleArticlePublished)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.RelatedID), zap.String("priority", string(payload.Priority)))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return n.notify(ctx, domain.BroadcastRecipient, domain.NotificationTicketCreated,
		"New ticket",
		fmt.Sprintf("%s: %s (%s priority)", event.RelatedID, payload.Title, payload.Priority),
		event.RelatedID)
}

func (n *NotificationService) handleTicketUpdated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketUpdatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketUpdated", zap.String("ticket_id", event.RelatedID),
		zap.String("old_status", string(payload.OldStatus)), zap.String("new_status", string(payload.NewStatus)))
	n.sendWebhookNotificationStub(ctx, event)
	if !event.Actor.IsStaff() || payload.ClientID == event.Actor.UserID {
		return nil
	}

	var changes []string
	if payload.OldStatus != payload.NewStatus {
		changes = append(changes, fmt.Sprintf("status is now %s", payload.NewStatus))
	}
	if payload.OldPriority != payload.NewPriority {
		changes = append(changes, fmt.Sprintf("priority is now %s", payload.NewPriority))
	}
	if payload.AssigneeChange {
		changes = append(changes, "assignee changed")
	}
	if len(changes) == 0 {
		return nil
	}
	return n.notify(ctx, payload.ClientID, domain.NotificationTicketUpdated,
		"Ticket updated",
		fmt.Sprintf("%s: %s", event.RelatedID, strings.Join(changes, ", ")),
		event.RelatedID)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.RelatedID), zap.Bool("claimed", payload.Claimed))
	n.sendWebhookNotificationStub(ctx, event)

	if payload.AssigneeID != nil && *payload.AssigneeID != event.Actor.UserID {
		if err := n.notify(ctx, *payload.AssigneeID, domain.NotificationTicketUpdated,
			"Ticket assigned to you",
			fmt.Sprintf("%s: %s", event.RelatedID, payload.Title),
			event.RelatedID); err != nil {
			return err
		}
	}
	// A claim moves the ticket to in_progress without a separate update event.
	if payload.Claimed && payload.ClientID != event.Actor.UserID {
		return n.notify(ctx, payload.ClientID, domain.NotificationTicketUpdated,
			"Ticket in progress",
			fmt.Sprintf("%s: a support specialist has taken your ticket", event.RelatedID),
			event.RelatedID)
	}
	return nil
}

func (n *NotificationService) handleTicketCommented(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCommentedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketCommented", zap.String("ticket_id", event.RelatedID), zap.Bool("internal", payload.IsInternal))
	n.sendEmailNotificationStub(ctx, event)

	switch {
	case event.Actor.IsStaff() && !payload.IsInternal && payload.ClientID != event.Actor.UserID:
		return n.notify(ctx, payload.ClientID, domain.NotificationTicketUpdated,
			"New reply on your ticket",
			fmt.Sprintf("%s: %s", event.RelatedID, payload.BodyPreview),
			event.RelatedID)
	case !event.Actor.IsStaff() && payload.AssigneeID != nil:
		return n.notify(ctx, *payload.AssigneeID, domain.NotificationTicketUpdated,
			"Client replied",
			fmt.Sprintf("%s: %s", event.RelatedID, payload.BodyPreview),
			event.RelatedID)
	}
	return nil
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserRegisteredPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("UserRegistered", zap.String("user_id", payload.UserID))
	n.sendEmailNotificationStub(ctx, event)
	return n.notify(ctx, domain.BroadcastRecipient, domain.NotificationUserRegistered,
		"New user approved",
		fmt.Sprintf("%s (%s) can now sign in", payload.FullName, payload.Email),
		payload.UserID)
}

func (n *NotificationService) handleArticlePublished(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ArticlePublishedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("ArticlePublished", zap.String("article_id", event.RelatedID))
	const title = "Knowledge base article published"
	if err := n.notify(ctx, domain.BroadcastRecipient, domain.NotificationArticlePublished,
		title, payload.Title, event.RelatedID); err != nil {
		return err
	}
	if n.users == nil {
		return nil
	}
	role, active := domain.RoleClient, true
	clients, err := n.users.List(ctx, repository.UserFilter{Role: &role, Active: &active})
	if err != nil {
		return err
	}
	var errs []error
	for _, client := range clients {
		if err := n.notify(ctx, client.ID, domain.NotificationArticlePublished,
			title, payload.Title, event.RelatedID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *NotificationService) notify(ctx context.Context, userID string, kind domain.NotificationType, title, message, relatedID string) error {
	if n.notifications == nil {
		return nil
	}
	return n.notifications.Create(ctx, &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
		CreatedAt: n.clock.Now(),
	})
}

// ListNotifications returns the caller's notifications newest first. Support
// and admin users also see broadcasts.
func (n *NotificationService) ListNotifications(ctx context.Context, actor *domain.User, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	list, err := n.notifications.ListForUser(ctx, actor.ID, actor.Role.IsStaff(), unreadOnly, clampLimit(limit))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return list, nil
}

// UnreadCount returns how many visible notifications are unread.
func (n *NotificationService) UnreadCount(ctx context.Context, actor *domain.User) (int64, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	count, err := n.notifications.CountUnread(ctx, actor.ID, actor.Role.IsStaff())
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// MarkRead marks one notification read. Repeating the call is a no-op.
func (n *NotificationService) MarkRead(ctx context.Context, actor *domain.User, notificationID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := n.notifications.MarkRead(ctx, notificationID, actor.ID, actor.Role.IsStaff()); err != nil {
		return notFoundOr(err, "notification", map[string]any{"notification_id": notificationID})
	}
	return nil
}

// MarkAllRead marks every notification addressed to the caller, plus
// broadcasts for staff, as read. It returns how many changed.
func (n *NotificationService) MarkAllRead(ctx context.Context, actor *domain.User) (int64, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	changed, err := n.notifications.MarkAllRead(ctx, actor.ID, actor.Role.IsStaff())
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return changed, nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("related_id", event.RelatedID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("related_id", event.RelatedID),
		zap.String("event_type", string(event.Type)))
}

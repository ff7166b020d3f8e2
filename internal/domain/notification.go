package domain

import "time"

// BroadcastRecipient addresses a notification to every support and admin user.
const BroadcastRecipient = "all"

// NotificationType enumerates notification kinds.
type NotificationType string

const (
	NotificationTicketCreated    NotificationType = "ticket_created"
	NotificationTicketUpdated    NotificationType = "ticket_updated"
	NotificationUserRegistered   NotificationType = "user_registered"
	NotificationArticlePublished NotificationType = "article_published"
)

// Notification is an in-app message polled by its recipient.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	RelatedID string
	IsRead    bool
	CreatedAt time.Time
}

// IsBroadcast reports whether the notification targets all staff.
func (n *Notification) IsBroadcast() bool {
	return n.UserID == BroadcastRecipient
}

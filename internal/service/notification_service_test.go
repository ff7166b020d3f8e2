package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func (e *testEnv) inbox(t *testing.T, user *domain.User) []domain.Notification {
	t.Helper()
	list, err := e.notifications.ListNotifications(context.Background(), user, false, 0)
	if err != nil {
		t.Fatalf("ListNotifications(%s) error = %v", user.ID, err)
	}
	return list
}

func TestTicketCreatedIsBroadcastToStaff(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.createTicket(t, env.client, "Projector")

	for _, staff := range []*domain.User{env.support, env.admin} {
		inbox := env.inbox(t, staff)
		if len(inbox) != 1 {
			t.Fatalf("%s inbox has %d notifications, want 1", staff.ID, len(inbox))
		}
		n := inbox[0]
		if n.UserID != domain.BroadcastRecipient || n.Type != domain.NotificationTicketCreated || n.RelatedID != ticket.ID {
			t.Fatalf("notification = %+v", n)
		}
	}
	if inbox := env.inbox(t, env.client); len(inbox) != 0 {
		t.Fatalf("client inbox = %+v, want empty", inbox)
	}
}

func TestStaffChangesNotifyClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t, env.client, "Scanner")

	if _, err := env.assignment.TakeTicket(ctx, env.support, ticket.ID); err != nil {
		t.Fatalf("TakeTicket() error = %v", err)
	}
	if _, err := env.tickets.UpdateTicket(ctx, env.support, ticket.ID, TicketPatch{Status: ptr(domain.TicketStatusResolved)}); err != nil {
		t.Fatalf("UpdateTicket() error = %v", err)
	}
	// Title-only edits are not worth a notification.
	if _, err := env.tickets.UpdateTicket(ctx, env.support, ticket.ID, TicketPatch{Title: ptr("Scanner (3rd floor)")}); err != nil {
		t.Fatalf("UpdateTicket(title) error = %v", err)
	}

	inbox := env.inbox(t, env.client)
	if len(inbox) != 2 {
		t.Fatalf("client inbox has %d notifications, want 2: %+v", len(inbox), inbox)
	}
	for _, n := range inbox {
		if n.UserID != env.client.ID || n.Type != domain.NotificationTicketUpdated || n.RelatedID != ticket.ID {
			t.Fatalf("unexpected notification %+v", n)
		}
	}
}

func TestCommentNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t, env.client, "Headset")
	if _, err := env.assignment.TakeTicket(ctx, env.support, ticket.ID); err != nil {
		t.Fatalf("TakeTicket() error = %v", err)
	}
	before := len(env.inbox(t, env.client))

	if _, err := env.tickets.AddComment(ctx, env.support, ticket.ID, "internal note", true); err != nil {
		t.Fatalf("AddComment(internal) error = %v", err)
	}
	if got := len(env.inbox(t, env.client)); got != before {
		t.Fatalf("internal comment notified client: %d -> %d", before, got)
	}
	if _, err := env.tickets.AddComment(ctx, env.support, ticket.ID, "please reboot", false); err != nil {
		t.Fatalf("AddComment(public) error = %v", err)
	}
	if got := len(env.inbox(t, env.client)); got != before+1 {
		t.Fatalf("client inbox = %d, want %d", got, before+1)
	}

	if _, err := env.tickets.AddComment(ctx, env.client, ticket.ID, "rebooted, still broken", false); err != nil {
		t.Fatalf("AddComment(client) error = %v", err)
	}
	var direct int
	for _, n := range env.inbox(t, env.support) {
		if n.UserID == env.support.ID {
			direct++
		}
	}
	if direct != 1 {
		t.Fatalf("assignee direct notifications = %d, want 1", direct)
	}
}

func TestCommentPreviewKeepsCharactersWhole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t, env.client, "Printer")
	if _, err := env.assignment.TakeTicket(ctx, env.support, ticket.ID); err != nil {
		t.Fatalf("TakeTicket() error = %v", err)
	}

	// The leading ASCII byte puts every Cyrillic rune at an odd offset.
	body := "x" + strings.Repeat("Принтер не печатает ", 10)
	if _, err := env.tickets.AddComment(ctx, env.support, ticket.ID, body, false); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	var found bool
	for _, n := range env.inbox(t, env.client) {
		if n.Type != domain.NotificationTicketUpdated || !strings.Contains(n.Message, "Принтер") {
			continue
		}
		found = true
		if !utf8.ValidString(n.Message) {
			t.Fatalf("reply notification is not valid UTF-8: %q", n.Message)
		}
		if !strings.HasSuffix(n.Message, "...") {
			t.Errorf("message = %q, want truncated preview", n.Message)
		}
	}
	if !found {
		t.Fatal("client did not get the reply notification")
	}
}

func TestStringPreview(t *testing.T) {
	tests := []struct {
		body string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"  padded  ", 6, "padded"},
		{"abcdefghij", 8, "abcde..."},
		{"xПривет", 5, "x..."},
		{"xПривет", 6, "xП..."},
		{"xПривет", 7, "xП..."},
		{"Привет", 3, "П"},
	}
	for _, tc := range tests {
		got := stringPreview(tc.body, tc.max)
		if got != tc.want {
			t.Errorf("stringPreview(%q, %d) = %q, want %q", tc.body, tc.max, got, tc.want)
		}
		if !utf8.ValidString(got) || len(got) > tc.max {
			t.Errorf("stringPreview(%q, %d) = %q: invalid or too long", tc.body, tc.max, got)
		}
	}
}

func TestMarkReadAndMarkAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createTicket(t, env.client, "One")
	env.createTicket(t, env.client, "Two")

	inbox := env.inbox(t, env.support)
	if len(inbox) != 2 {
		t.Fatalf("inbox = %d, want 2", len(inbox))
	}
	if err := env.notifications.MarkRead(ctx, env.support, inbox[0].ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if err := env.notifications.MarkRead(ctx, env.support, inbox[0].ID); err != nil {
		t.Fatalf("second MarkRead() error = %v", err)
	}
	if n, _ := env.notifications.UnreadCount(ctx, env.support); n != 1 {
		t.Fatalf("unread = %d, want 1", n)
	}

	// Broadcasts are invisible to clients, so marking one is masked.
	wantCode(t, env.notifications.MarkRead(ctx, env.client, inbox[1].ID), apperrors.CodeNotFound)
	wantCode(t, env.notifications.MarkRead(ctx, env.support, "missing"), apperrors.CodeNotFound)

	changed, err := env.notifications.MarkAllRead(ctx, env.admin)
	if err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	if changed != 1 {
		t.Fatalf("MarkAllRead changed %d, want 1", changed)
	}
	// Broadcast read state is shared by all staff.
	if n, _ := env.notifications.UnreadCount(ctx, env.support); n != 0 {
		t.Fatalf("support unread = %d, want 0", n)
	}

	unread, err := env.notifications.ListNotifications(ctx, env.support, true, 0)
	if err != nil {
		t.Fatalf("ListNotifications(unread) error = %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("unread list = %d, want 0", len(unread))
	}
}

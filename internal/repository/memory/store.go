// Package memory provides in-process repositories used when no Postgres DSN
// is configured and in tests. A single mutex guards every table so the
// claim and vote operations keep the same atomicity as their SQL versions.
package memory

import (
	"sync"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// Compile-time interface checks.
var (
	_ repository.TicketRepository       = (*TicketRepository)(nil)
	_ repository.CommentRepository      = (*CommentRepository)(nil)
	_ repository.UserRepository         = (*UserRepository)(nil)
	_ repository.PendingUserRepository  = (*PendingUserRepository)(nil)
	_ repository.NotificationRepository = (*NotificationRepository)(nil)
	_ repository.ArticleRepository      = (*ArticleRepository)(nil)
)

// Store holds every table in memory.
type Store struct {
	mu sync.Mutex

	ticketSeq     int
	tickets       map[string]domain.Ticket
	comments      map[string][]domain.Comment // key: ticket id, insertion order
	users         map[string]domain.User
	pendingUsers  map[string]domain.PendingUser
	notifications []domain.Notification
	articles      map[string]domain.Article
	votes         map[string]domain.VoteKind // key: "article|user"
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tickets:      make(map[string]domain.Ticket),
		comments:     make(map[string][]domain.Comment),
		users:        make(map[string]domain.User),
		pendingUsers: make(map[string]domain.PendingUser),
		articles:     make(map[string]domain.Article),
		votes:        make(map[string]domain.VoteKind),
	}
}

// Tickets returns the ticket repository view.
func (s *Store) Tickets() *TicketRepository { return &TicketRepository{s: s} }

// Comments returns the comment repository view.
func (s *Store) Comments() *CommentRepository { return &CommentRepository{s: s} }

// Users returns the user repository view.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// PendingUsers returns the registration repository view.
func (s *Store) PendingUsers() *PendingUserRepository { return &PendingUserRepository{s: s} }

// Notifications returns the notification repository view.
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s: s} }

// Articles returns the knowledge-base repository view.
func (s *Store) Articles() *ArticleRepository { return &ArticleRepository{s: s} }

func copyStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

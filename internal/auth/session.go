package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// SessionStore tracks live login sessions so logout can revoke a token
// before it expires.
type SessionStore interface {
	Create(ctx context.Context, session domain.Session) error
	Exists(ctx context.Context, id string) (bool, error)
	Revoke(ctx context.Context, id string) error
}

const sessionKeyPrefix = "helpdesk:session:"

// RedisSessionStore keeps sessions as expiring Redis keys.
type RedisSessionStore struct {
	client *redis.Client
	clock  clock.Clock
}

// NewRedisSessionStore builds a store on an existing client.
func NewRedisSessionStore(client *redis.Client, clk clock.Clock) *RedisSessionStore {
	return &RedisSessionStore{client: client, clock: clk}
}

func (s *RedisSessionStore) Create(ctx context.Context, session domain.Session) error {
	ttl := session.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, sessionKeyPrefix+session.ID, session.UserID, ttl).Err()
}

func (s *RedisSessionStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKeyPrefix+id).Err()
}

// MemorySessionStore is the in-process fallback when Redis is unavailable.
type MemorySessionStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	sessions map[string]domain.Session
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore(clk clock.Clock) *MemorySessionStore {
	return &MemorySessionStore{clock: clk, sessions: make(map[string]domain.Session)}
}

func (s *MemorySessionStore) Create(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.clock.Now())
	s.sessions[session.ID] = session
	return nil
}

func (s *MemorySessionStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return false, nil
	}
	if !s.clock.Now().Before(session.ExpiresAt) {
		delete(s.sessions, id)
		return false, nil
	}
	return true, nil
}

func (s *MemorySessionStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// sweep drops expired sessions.
func (s *MemorySessionStore) sweep(now time.Time) {
	for id, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

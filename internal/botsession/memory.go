package botsession

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore is the single-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, sessions: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, chatID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[chatID]
	if !ok {
		return Session{}, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.sessions, chatID)
		return Session{}, nil
	}
	return entry.session, nil
}

func (s *MemoryStore) Set(_ context.Context, chatID string, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.State == StateIdle {
		delete(s.sessions, chatID)
		return nil
	}
	s.sessions[chatID] = memoryEntry{session: session, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
	return nil
}

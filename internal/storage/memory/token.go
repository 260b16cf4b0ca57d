package memory

import (
	"context"
	"sync"
	"time"
)

type InMemoryTokenStorage struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewTokenStorage() *InMemoryTokenStorage {
	return &InMemoryTokenStorage{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *InMemoryTokenStorage) InvalidateToken(_ context.Context, token string, expiration time.Duration) error {
	if expiration <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked[token] = s.now().Add(expiration)
	return nil
}

func (s *InMemoryTokenStorage) IsTokenInvalidated(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.revoked[token]
	if !ok {
		return false, nil
	}
	if !s.now().Before(until) {
		delete(s.revoked, token)
		return false, nil
	}
	return true, nil
}

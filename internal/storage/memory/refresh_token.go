package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/storage"
)

type InMemoryRefreshTokenManager struct {
	mu      sync.RWMutex
	records map[string]models.RefreshTokenRecord
	log     *zap.SugaredLogger
}

func NewRefreshTokenRepository(log *zap.SugaredLogger) *InMemoryRefreshTokenManager {
	return &InMemoryRefreshTokenManager{
		records: make(map[string]models.RefreshTokenRecord),
		log:     log,
	}
}

func (m *InMemoryRefreshTokenManager) UpsertRefreshToken(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[userID] = models.RefreshTokenRecord{
		UserID:    userID,
		Token:     token,
		UpdatedAt: time.Now().UTC(),
	}
	m.log.Debugw("Refresh token stored", "userID", userID)

	return nil
}

func (m *InMemoryRefreshTokenManager) RotateRefreshToken(_ context.Context, userID, oldToken, newToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[userID]
	if !ok || record.Token != oldToken {
		return storage.ErrRefreshTokenNotFound
	}

	m.records[userID] = models.RefreshTokenRecord{
		UserID:    userID,
		Token:     newToken,
		UpdatedAt: time.Now().UTC(),
	}
	m.log.Debugw("Refresh token rotated", "userID", userID)

	return nil
}

func (m *InMemoryRefreshTokenManager) FindMatchingRefreshToken(
	_ context.Context,
	userID, token string,
) (*models.RefreshTokenRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[userID]
	if !ok || record.Token != token {
		m.log.Debugw("Refresh token not found", "userID", userID)
		return nil, storage.ErrRefreshTokenNotFound
	}

	return &record, nil
}

func (m *InMemoryRefreshTokenManager) DeleteRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, record := range m.records {
		if record.Token == token {
			delete(m.records, userID)
		}
	}

	return nil
}

// Get returns the current record for userID, if any.
func (m *InMemoryRefreshTokenManager) Get(userID string) (models.RefreshTokenRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[userID]
	return record, ok
}

// Count returns the number of stored records.
func (m *InMemoryRefreshTokenManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}

var _ storage.RefreshTokenRepository = (*InMemoryRefreshTokenManager)(nil)

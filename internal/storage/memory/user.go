package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/storage"
)

type InMemoryUserManager struct {
	mu         sync.RWMutex
	users      map[string]models.User
	byUsername map[string]string
	byEmail    map[string]string
}

func NewUserRepository() *InMemoryUserManager {
	return &InMemoryUserManager{
		users:      make(map[string]models.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (m *InMemoryUserManager) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *InMemoryUserManager) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byUsername[username]
	return ok, nil
}

// CreateUser enforces uniqueness itself, like the unique indexes in postgres.
func (m *InMemoryUserManager) CreateUser(_ context.Context, user models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUsername[user.Username]; ok {
		return nil, storage.ErrUserExists
	}
	if _, ok := m.byEmail[user.Email]; ok {
		return nil, storage.ErrUserExists
	}
	if _, ok := m.users[user.ID]; ok {
		return nil, storage.ErrUserExists
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	m.users[user.ID] = user
	m.byUsername[user.Username] = user.ID
	m.byEmail[user.Email] = user.ID

	return &user, nil
}

func (m *InMemoryUserManager) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	user := m.users[id]
	return &user, nil
}

func (m *InMemoryUserManager) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &user, nil
}

// Count returns the number of stored users.
func (m *InMemoryUserManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.users)
}

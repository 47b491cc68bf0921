package identity

import (
	"context"
	"strings"
	"sync"
)

// UserStore handles persistence of users.
type UserStore interface {
	// InsertUser persists a new user. Fails with ErrPhoneTaken if the
	// phone number is already registered.
	InsertUser(ctx context.Context, user User) error

	// GetUser returns the user with the given ID, or ErrUserNotFound.
	GetUser(ctx context.Context, id UserID) (*User, error)

	// GetUserByPhone returns the user registered under the phone
	// number, or ErrUserNotFound.
	GetUserByPhone(ctx context.Context, phone string) (*User, error)

	// UpdateUser overwrites the mutable fields (name, phone) of an
	// existing user.
	UpdateUser(ctx context.Context, user User) error
}

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type MemoryStore struct {
	mu    sync.RWMutex
	users map[UserID]User
	phone map[string]UserID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[UserID]User),
		phone: make(map[string]UserID),
	}
}

func (m *MemoryStore) InsertUser(_ context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := phoneKey(user.Phone)
	if _, taken := m.phone[key]; taken {
		return ErrPhoneTaken
	}
	m.users[user.ID] = user
	m.phone[key] = user.ID
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id UserID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (m *MemoryStore) GetUserByPhone(_ context.Context, phone string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.phone[phoneKey(phone)]
	if !ok {
		return nil, ErrUserNotFound
	}
	user := m.users[id]
	return &user, nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}

	newKey := phoneKey(user.Phone)
	if id, taken := m.phone[newKey]; taken && id != user.ID {
		return ErrPhoneTaken
	}

	delete(m.phone, phoneKey(existing.Phone))
	m.phone[newKey] = user.ID
	m.users[user.ID] = user
	return nil
}

func phoneKey(phone string) string {
	return strings.TrimSpace(phone)
}

package identity

import (
	"context"
	"strings"
	"time"
)

// Registry validates and orchestrates user operations over a UserStore.
type Registry struct {
	Store UserStore
	Now   func() time.Time
}

func NewRegistry(store UserStore) *Registry {
	return &Registry{Store: store, Now: time.Now}
}

// Register creates a new user from a name and phone number.
func (r *Registry) Register(ctx context.Context, name, phone string) (*User, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)

	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	if phone == "" {
		return nil, &ValidationError{Field: "phone", Message: "phone is required"}
	}

	user := NewUser(name, phone, r.Now())
	if err := r.Store.InsertUser(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Get returns a user by ID.
func (r *Registry) Get(ctx context.Context, id UserID) (*User, error) {
	return r.Store.GetUser(ctx, id)
}

// FindByPhone returns the user registered under a phone number.
func (r *Registry) FindByPhone(ctx context.Context, phone string) (*User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, &ValidationError{Field: "phone", Message: "phone is required"}
	}
	return r.Store.GetUserByPhone(ctx, phone)
}

// Update overwrites a user's name and phone.
func (r *Registry) Update(ctx context.Context, id UserID, name, phone string) (*User, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)

	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	if phone == "" {
		return nil, &ValidationError{Field: "phone", Message: "phone is required"}
	}

	existing, err := r.Store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = name
	updated.Phone = phone
	updated.UpdatedAt = r.Now()

	if err := r.Store.UpdateUser(ctx, updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

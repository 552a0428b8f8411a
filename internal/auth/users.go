package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// User is an account that may log in.
type User struct {
	ID                    int64     `json:"id"`
	Username              string    `json:"username"`
	PasswordHash          string    `json:"-"`
	Role                  Role      `json:"role"`
	StationID             int64     `json:"station_id,omitempty"`
	StationAcronym        string    `json:"station_acronym,omitempty"`
	StationNormalizedName string    `json:"station_normalized_name,omitempty"`
	Active                bool      `json:"active"`
	CreatedAt             time.Time `json:"created_at"`
}

// Validate checks user invariants.
func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("user: empty username")
	}
	if _, ok := NormalizeRole(string(u.Role)); !ok {
		return errors.New("user: invalid role")
	}
	if u.Role == RoleStation && u.StationID <= 0 {
		return errors.New("user: station role requires a station")
	}
	if u.PasswordHash == "" {
		return errors.New("user: empty password hash")
	}
	return nil
}

// UserRepository loads and stores accounts. FindUser returns nil, nil when
// the username is unknown.
type UserRepository interface {
	FindUser(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
}

// MemoryUserRepository is an in-process UserRepository.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[string]User
}

// NewMemoryUserRepository constructs an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]User)}
}

// FindUser loads a user by username.
func (r *MemoryUserRepository) FindUser(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[username]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// CreateUser stores a new user.
func (r *MemoryUserRepository) CreateUser(_ context.Context, user *User) error {
	if user == nil {
		return errors.New("user repo: nil user")
	}
	if err := user.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Username]; exists {
		return errors.New("user repo: username taken")
	}
	r.nextID++
	user.ID = r.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.users[user.Username] = *user
	return nil
}

// ABOUTME: Fixed catalog of internal users known to the bridge
// ABOUTME: Provides lookup by id, email, and display name for correlation

package directory

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUserNotFound indicates the requested user is not in the catalog.
var ErrUserNotFound = errors.New("user not found")

// User is an internal identity the bridge relays messages for.
// Users are loaded once at startup and never change at runtime.
type User struct {
	ID    string `toml:"id"`
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// Registry is the read-only catalog of known users.
type Registry struct {
	byID    map[string]User
	byEmail map[string]User
	byName  map[string]User
	users   []User
}

// NewRegistry builds a registry from a user list.
// The list must be non-empty, with unique ids, names, and emails.
func NewRegistry(users []User) (*Registry, error) {
	if len(users) == 0 {
		return nil, errors.New("user catalog is empty")
	}

	r := &Registry{
		byID:    make(map[string]User, len(users)),
		byEmail: make(map[string]User, len(users)),
		byName:  make(map[string]User, len(users)),
		users:   make([]User, 0, len(users)),
	}

	for _, u := range users {
		if u.ID == "" || u.Name == "" || u.Email == "" {
			return nil, fmt.Errorf("user %+v: id, name, and email are all required", u)
		}
		if _, dup := r.byID[u.ID]; dup {
			return nil, fmt.Errorf("duplicate user id %q", u.ID)
		}
		nameKey := strings.ToLower(u.Name)
		if _, dup := r.byName[nameKey]; dup {
			return nil, fmt.Errorf("duplicate user name %q", u.Name)
		}
		emailKey := strings.ToLower(u.Email)
		if _, dup := r.byEmail[emailKey]; dup {
			return nil, fmt.Errorf("duplicate user email %q", u.Email)
		}

		r.byID[u.ID] = u
		r.byName[nameKey] = u
		r.byEmail[emailKey] = u
		r.users = append(r.users, u)
	}

	return r, nil
}

// ByID looks up a user by internal id.
func (r *Registry) ByID(id string) (User, error) {
	u, ok := r.byID[id]
	if !ok {
		return User{}, fmt.Errorf("%w: %q", ErrUserNotFound, id)
	}
	return u, nil
}

// ByEmail looks up a user by contact address. Matching is case-insensitive.
func (r *Registry) ByEmail(email string) (User, error) {
	u, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return User{}, fmt.Errorf("%w: %q", ErrUserNotFound, email)
	}
	return u, nil
}

// ByName looks up a user by display name. Matching is case-insensitive,
// which is what the mention correlation fallback relies on.
func (r *Registry) ByName(name string) (User, error) {
	u, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return User{}, fmt.Errorf("%w: %q", ErrUserNotFound, name)
	}
	return u, nil
}

// Users returns a copy of the catalog in load order.
func (r *Registry) Users() []User {
	out := make([]User, len(r.users))
	copy(out, r.users)
	return out
}

// Len returns the number of users in the catalog.
func (r *Registry) Len() int {
	return len(r.users)
}

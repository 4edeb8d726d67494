package session

import (
	"encoding/json"
	"fmt"
)

// User types
const (
	TypeEmployee = "Employee"
	TypeAdmin    = "Admin"
)

// userKey is the store entry holding the logged-in identity
const userKey = "user"

// Session is the logged-in identity
type Session struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

// Store defines the interface for persisted session storage
type Store interface {
	// Get returns the value for a key, or "" if absent
	Get(key string) (string, error)

	// Set stores a value under a key
	Set(key, value string) error

	// Remove deletes a key
	Remove(key string) error
}

// Context gives routers and controllers explicit access to the current
// identity instead of ambient global state. It is constructed once at
// application start.
type Context struct {
	store Store
}

// NewContext creates a session Context backed by a Store
func NewContext(store Store) *Context {
	return &Context{store: store}
}

// Current returns the logged-in session, or nil when nobody is logged in
func (c *Context) Current() (*Session, error) {
	raw, err := c.store.Get(userKey)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if raw == "" {
		return nil, nil
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &sess, nil
}

// Login stores the identity under the user key
func (c *Context) Login(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := c.store.Set(userKey, string(data)); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Logout removes the stored identity
func (c *Context) Logout() error {
	if err := c.store.Remove(userKey); err != nil {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}

package session

import (
	"encoding/json"
	"errors"
	"strings"
)

// Status is the authentication state of the current visitor
type Status int

const (
	// StatusUnknown is the initial state, before any verification
	StatusUnknown Status = iota
	// StatusVerifying means a verification, login, register or logout call is in flight
	StatusVerifying
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusVerifying:
		return "verifying"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "invalid"
	}
}

// Settled reports whether the state is final until the next operation
func (s Status) Settled() bool {
	return s == StatusAuthenticated || s == StatusUnauthenticated
}

// User is the authenticated principal's profile
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	Phone     string `json:"phone,omitempty"`
	IsAdmin   bool   `json:"isAdmin,omitempty"`
}

// DisplayName prefers the explicit name, then first/last, then email
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return u.Email
}

// Snapshot is an immutable view of the store. User is non-nil iff Status is
// StatusAuthenticated; Error is only ever set with StatusUnauthenticated.
type Snapshot struct {
	Status Status
	User   *User
	Error  string
}

var errMissingUser = errors.New("response carried no user")

// decodeUser accepts both {"user": {...}} and a bare user object
func decodeUser(raw json.RawMessage) (*User, error) {
	var envelope struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.User != nil {
		return envelope.User, nil
	}

	var bare User
	if err := json.Unmarshal(raw, &bare); err == nil && (bare.ID != "" || bare.Email != "") {
		return &bare, nil
	}

	return nil, errMissingUser
}

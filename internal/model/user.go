package model

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for local users.
// Implementations must enforce uniqueness of ExternalID and Email and
// report violations as ErrDuplicate.
type UserStore interface {
	FindByExternalID(ctx context.Context, externalID string) (User, error)
	Create(ctx context.Context, user User) (User, error)
	Update(ctx context.Context, user User) (User, error)
	Ping(ctx context.Context) error
}

// Role is an authorization role of a local user.
type Role string

const (
	// RoleUser is assigned to every newly mirrored user.
	RoleUser Role = "user"
	// RoleAdmin is granted administratively, never by sync.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the persisted mirror of an identity authority account.
type User struct {
	ID          uuid.UUID `json:"id"`
	ExternalID  string    `json:"externalId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewUser builds a user for a first-seen external identity.
func NewUser(identity ExternalIdentity, now time.Time) User {
	return User{
		ID:          uuid.New(),
		ExternalID:  identity.ExternalID,
		Email:       NormalizeEmail(identity.Email),
		DisplayName: NormalizeDisplayName(identity.DisplayName),
		Role:        RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SyncProfile copies email and display name from identity into u.
// Empty authority values keep what is stored. It reports whether
// anything changed.
func (u *User) SyncProfile(identity ExternalIdentity) bool {
	email := NormalizeEmail(identity.Email)
	name := NormalizeDisplayName(identity.DisplayName)

	changed := false
	if email != "" && email != u.Email {
		u.Email = email
		changed = true
	}
	if name != "" && name != u.DisplayName {
		u.DisplayName = name
		changed = true
	}

	return changed
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeDisplayName trims a display name.
func NormalizeDisplayName(name string) string {
	return strings.TrimSpace(name)
}

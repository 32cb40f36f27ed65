// Package authctx carries the authenticated local user in a request context.
package authctx

import (
	"context"

	"github.com/keil-app/keil-server/internal/model"
)

// userKey is unexported so no other package can collide with it.
type userKey struct{}

// Manager stores the resolved user in a context.
// It implements model.ContextManager.
type Manager struct{}

var _ model.ContextManager = (*Manager)(nil)

// NewManager creates a new context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetUserToContext returns a child context carrying user.
func (m *Manager) SetUserToContext(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// GetUserFromContext returns the user stored by SetUserToContext.
func (m *Manager) GetUserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(userKey{}).(model.User)
	return user, ok
}

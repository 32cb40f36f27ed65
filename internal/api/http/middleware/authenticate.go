package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/keil-app/keil-server/internal/api/http/handler"
	"github.com/keil-app/keil-server/internal/model"
)

// Authenticator resolves the local user from an Authorization header value.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (model.User, error)
}

// Authenticate runs the identity gate and puts the user into the request context.
type Authenticate struct {
	gate           Authenticator
	contextManager model.ContextManager
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(gate Authenticator, contextManager model.ContextManager) *Authenticate {
	return &Authenticate{gate: gate, contextManager: contextManager}
}

// Handle rejects the request with 401 or 500, or continues with the user attached.
func (m *Authenticate) Handle(c *gin.Context) {
	user, err := m.gate.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		handler.AbortWithError(c, err)
		return
	}

	c.Request = c.Request.WithContext(m.contextManager.SetUserToContext(c.Request.Context(), user))
	c.Next()
}

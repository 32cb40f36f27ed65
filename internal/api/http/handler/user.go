package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keil-app/keil-server/internal/logger"
	"github.com/keil-app/keil-server/internal/model"
)

// User serves the current user's profile.
type User struct {
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewUser(contextManager model.ContextManager, logger *logger.Logger) *User {
	return &User{contextManager: contextManager, logger: logger}
}

// Me returns the user resolved by the authentication middleware.
func (h *User) Me(c *gin.Context) {
	user, ok := h.contextManager.GetUserFromContext(c.Request.Context())
	if !ok {
		h.logger.Error("User handler: no user in context", "path", c.Request.URL.Path)
		AbortWithError(c, errors.New("user missing from request context"))
		return
	}

	RespondWithData(c, http.StatusOK, user, "")
}

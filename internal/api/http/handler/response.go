package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keil-app/keil-server/internal/model"
	"github.com/keil-app/keil-server/internal/service"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Fallback client messages.
const (
	MessageInternal = "internal server error"
	MessageNotFound = "route not found"
)

// RespondWithData writes a successful envelope.
func RespondWithData(c *gin.Context, statusCode int, data any, message string) {
	c.JSON(statusCode, Response{Success: true, Data: data, Message: message})
}

// AbortWithError writes a failure envelope for err and stops the chain.
// Only client-safe messages reach the body.
func AbortWithError(c *gin.Context, err error) {
	statusCode, message := errorStatus(err)
	c.AbortWithStatusJSON(statusCode, Response{Success: false, Message: message})
}

func errorStatus(err error) (int, string) {
	var authErr *model.AuthError
	if errors.As(err, &authErr) {
		switch authErr.Kind {
		case model.AuthUnauthorized:
			return http.StatusUnauthorized, authErr.Message
		case model.AuthInternal:
			return http.StatusInternalServerError, service.MessageInternal
		}
	}

	return http.StatusInternalServerError, MessageInternal
}

// NotFound answers unknown routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{Success: false, Message: MessageNotFound})
}

// Welcome answers the root route.
func Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Keil-App Backend API"})
}

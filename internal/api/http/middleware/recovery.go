package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/keil-app/keil-server/internal/api/http/handler"
	"github.com/keil-app/keil-server/internal/logger"
)

// Recovery turns panics into the 500 envelope and logs them.
func Recovery(logger *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("HTTP handler panicked",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", fmt.Sprint(recovered))
		handler.AbortWithError(c, fmt.Errorf("panic: %v", recovered))
	})
}

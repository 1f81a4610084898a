package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragops/pkg/errors"
)

// Recovery returns a middleware that recovers from panics, logs the stack
// and replies with the unified error format.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("panic recovered",
					"panic", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", GetRequestID(c),
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":       errors.ErrInternal.Code,
					"message":    errors.ErrInternal.Message,
					"request_id": GetRequestID(c),
				})
			}
		}()
		c.Next()
	}
}

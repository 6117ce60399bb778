package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "teymia/internal/errors"
	"teymia/internal/logger"
)

// ErrorHandler turns errors attached with c.Error into the JSON error
// envelope. A response the handler already wrote is left alone. Anything
// that is not an *AppError is logged with the request ID and reported as
// INTERNAL_ERROR.
func ErrorHandler() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		// The last error is the most relevant in a middleware chain.
		err := c.Errors.Last().Err
		requestID := c.GetString(requestIDKey)

		var appErr *apperrors.AppError
		switch {
		case !errors.As(err, &appErr):
			log.Errorw("unexpected error",
				"error", err.Error(),
				"request_id", requestID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			appErr = apperrors.ErrInternalServer
		case appErr.Internal != nil:
			log.Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"request_id", requestID,
				"path", c.Request.URL.Path,
			)
		}

		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}

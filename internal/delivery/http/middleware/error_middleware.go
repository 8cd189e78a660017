package middleware

import (
	"errors"
	"net/http"

	"go-panelworks-backend/internal/delivery/http/response"
	"go-panelworks-backend/pkg/apperror"
	"go-panelworks-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler translates errors attached to the context into the canonical
// JSON envelope. Internal details are logged server-side and never exposed
// to clients.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if appErr.Err != nil {
				logger.Log.Error("request failed",
					"status", appErr.Code, "message", appErr.Message, "error", appErr.Err)
			}
			response.Error(c, appErr.Code, appErr.Message)
			return
		}

		logger.Log.Error("unhandled error", "error", err)
		response.Error(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.")
	}
}

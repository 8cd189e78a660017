package response

import (
	"github.com/gin-gonic/gin"
)

// Response is the canonical JSON envelope. Success responses carry a
// message, failures carry an error string; the request ID travels on the
// X-Request-ID header rather than in the body.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Success sends a success response.
func Success(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Success: true,
		Message: message,
	})
}

// Error sends an error response.
func Error(c *gin.Context, code int, errMsg string) {
	c.JSON(code, Response{
		Success: false,
		Error:   errMsg,
	})
}

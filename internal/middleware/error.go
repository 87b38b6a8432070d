package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler turns errors attached with c.Error into a JSON error response
// when the handler did not write one itself.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		log.Printf("[%s] Error: %v", RequestID(c), c.Errors.Last())
		c.JSON(status, ErrorResponse{Error: c.Errors.Last().Error()})
	}
}

// Recovery recovers from panics, records them on the request span and
// responds with a generic 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				span := trace.SpanFromContext(c.Request.Context())
				span.RecordError(fmt.Errorf("panic: %v", err))
				span.SetStatus(codes.Error, "panic recovered")

				log.Printf("[%s] PANIC: %v\n%s", RequestID(c), err, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal Server Error"})
			}
		}()

		c.Next()
	}
}

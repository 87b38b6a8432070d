package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDKey is the gin context key of the request id.
const RequestIDKey = "request_id"

var tracer = otel.Tracer("recipe-search")

// Tracing starts a server span per request and tags it with a KSUID request
// id, which is also returned in X-Request-ID. A request id sent by the
// client is kept.
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = ksuid.New().String()
		}

		ctx, span := tracer.Start(c.Request.Context(), fmt.Sprintf("%s %s", c.Request.Method, c.FullPath()),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.url", c.Request.URL.Path),
				attribute.String("http.user_agent", c.Request.UserAgent()),
				attribute.String("request.id", requestID),
			),
		)
		defer span.End()

		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int64("http.response_time_ms", duration.Milliseconds()),
		)
		if status >= 400 {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		log.Printf("[%s] %s %s - %d (%dms)", requestID, c.Request.Method, c.Request.URL.Path, status, duration.Milliseconds())
	}
}

// RequestID returns the id Tracing assigned to the request.
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

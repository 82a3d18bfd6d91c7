package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader is echoed on every response
	CorrelationIDHeader = "X-Correlation-ID"

	// CorrelationIDKey stores the correlation ID on the gin context
	CorrelationIDKey = "correlation_id"
)

type correlationCtxKey struct{}

// CorrelationID tags each request with the caller's X-Correlation-ID or a fresh UUID.
// The ID is stored on both the gin context and the request context.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		c.Header(CorrelationIDHeader, correlationID)
		c.Set(CorrelationIDKey, correlationID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), correlationCtxKey{}, correlationID))

		c.Next()
	}
}

// GetCorrelationID returns the request's correlation ID, or "" outside the middleware
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(CorrelationIDKey)
}

// CorrelationIDFromContext reads the correlation ID carried by a request context
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationCtxKey{}).(string)
	return id
}

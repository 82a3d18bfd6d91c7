package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader carries the opaque authenticated user id set by the upstream auth layer
	UserIDHeader = "X-User-ID"

	// UserIDKey stores the user id on the gin context
	UserIDKey = "user_id"

	maxUserIDLength = 128
)

// UserIdentity rejects requests without a usable X-User-ID with 401
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" || len(userID) > maxUserIDLength {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":          "unauthorized",
				"message":        "missing or invalid " + UserIDHeader + " header",
				"correlation_id": GetCorrelationID(c),
			})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the caller set by UserIdentity, or ""
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

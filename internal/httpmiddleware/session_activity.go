package httpmiddleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"classroom/internal/auth"
	"classroom/internal/session"
)

// SessionActivity treats every authenticated request as an activity event:
// it runs the session's eager tick and resets its inactivity clock. Requests
// whose session has lapsed are rejected so the client redirects to login.
// Must run after auth.Bearer.
func SessionActivity(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		if claims.SessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no session"})
			return
		}
		if err := mgr.Touch(c.Request.Context(), claims.SessionID); err != nil {
			if errors.Is(err, session.ErrSessionExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session check failed"})
			return
		}
		c.Next()
	}
}

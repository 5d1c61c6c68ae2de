package middleware

import (
	"net/http"
	"strings"

	"profitpilot/utils"

	"github.com/gin-gonic/gin"
)

// SessionIDKey is the gin context key holding the wizard session id.
const SessionIDKey = "wizardSessionID"

// SessionHeader carries the session token for clients that cannot set Authorization.
const SessionHeader = "X-Wizard-Session"

func sessionToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return strings.TrimSpace(c.GetHeader(SessionHeader))
}

// WizardSessionMiddleware resolves the session token into SessionIDKey. With optional
// set, a missing token lets the request through so a new session can be started;
// a token that is present but invalid is always rejected.
func WizardSessionMiddleware(optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := sessionToken(c)
		if tokenString == "" {
			if optional {
				c.Next()
				return
			}
			utils.JSONError(c, http.StatusUnauthorized, "Missing session token", "")
			return
		}

		sessionID, err := utils.ExtractSessionID(tokenString)
		if err != nil {
			utils.JSONError(c, http.StatusUnauthorized, "Invalid session token", err.Error())
			return
		}
		c.Set(SessionIDKey, sessionID)
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strings"

	"task-manager/api/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey = "user_id"

	notAuthenticated = "Not authenticated"
)

type TokenVerifier interface {
	Verify(token string, kind services.TokenType) (string, error)
}

// RequireAccessToken admits requests carrying "Authorization: Bearer <access token>"
// and stores the token subject under UserIDKey. Every rejection is the same 401.
func RequireAccessToken(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c)
			return
		}

		userID, err := verifier.Verify(token, services.TokenTypeAccess)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated subject set by RequireAccessToken.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}

	token := header[len(prefix):]
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

func abortUnauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": notAuthenticated})
}

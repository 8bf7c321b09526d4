package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// callerKey is the gin context key holding the verified caller's user ID.
const callerKey = "callerUserID"

// ErrUnverified is returned by a Verifier when the credential is bad.
var ErrUnverified = errors.New("credential not verified")

// Verifier is the external identity collaborator: given a bearer credential,
// it returns the verified user ID or fails.
type Verifier interface {
	VerifyCredential(ctx context.Context, token string) (string, error)
}

// Auth returns middleware that verifies the Authorization bearer token and
// stores the caller's user ID on the request context. The core never looks
// at ambient session state; handlers pass the verified ID explicitly.
func Auth(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := verifier.VerifyCredential(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}

		c.Set(callerKey, userID)
		c.Next()
	}
}

// CallerID returns the verified caller user ID set by Auth.
func CallerID(c *gin.Context) string {
	id, _ := c.Get(callerKey)
	s, _ := id.(string)
	return s
}

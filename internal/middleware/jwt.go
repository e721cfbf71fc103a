package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/bodycam/backend/internal/auth"
	"github.com/bodycam/backend/pkg/response"
)

// ContextIdentity is the key for the verified caller (*auth.Identity) in gin context.
const ContextIdentity = "identity"

// Bearer returns a middleware that verifies the Authorization header and sets the
// caller identity in context.
func Bearer(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		id, err := verifier.Verify(header)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextIdentity, id)
		c.Next()
	}
}

// Identity returns the caller set by Bearer, or nil when the route is unauthenticated.
func Identity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxWriterClaims = "hashledger_writer_claims"

// RequireWriter is a Gin middleware that rejects requests without a valid
// writer bearer token. When tokens is nil every request passes.
func RequireWriter(tokens *TokenIssuer) gin.HandlerFunc {
	if tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}

		c.Set(ctxWriterClaims, claims)
		c.Next()
	}
}

// WriterFromCtx returns the subject of the writer token injected by
// RequireWriter, or "" when the route is open.
func WriterFromCtx(c *gin.Context) string {
	v, _ := c.Get(ctxWriterClaims)
	claims, ok := v.(*WriterClaims)
	if !ok {
		return ""
	}
	return claims.Subject
}
